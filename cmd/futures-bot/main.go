package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/drakos74/futures-bot/infra/config"
	"github.com/drakos74/futures-bot/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "infra/config/futures-bot.yaml", "path to the configuration file")
	mode := flag.String("mode", "", "run mode, overrides the configuration [live|backtest]")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("could not load config")
	}
	if *mode != "" {
		cfg.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Str("mode", *mode).Msg("invalid mode")
		}
	}
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("could not set up logging")
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fuser, err := newFuser(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up the predictors")
	}

	switch cfg.Mode {
	case config.Backtest:
		err = backtest(ctx, cfg, fuser)
	default:
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, merr := metrics.NewMetrics(registry)
		if merr != nil {
			log.Fatal().Err(merr).Msg("could not register metrics")
		}
		if cfg.Metrics.Enabled {
			go func() {
				if err := metrics.Serve(ctx, cfg.Metrics.Port, registry); err != nil {
					log.Error().Err(err).Msg("metrics")
				}
			}()
		}
		err = live(ctx, cfg, fuser, m)
	}
	if err != nil {
		log.Fatal().Err(err).Str("mode", cfg.Mode).Msg("bot stopped")
	}
	log.Info().Str("mode", cfg.Mode).Msg("bot stopped")
}
