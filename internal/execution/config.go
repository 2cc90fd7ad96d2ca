package execution

import (
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/retry"
)

// Config defines the execution algorithms parameters.
type Config struct {
	Algorithm    model.Algorithm `yaml:"algorithm" default:"smart" validate:"oneof=immediate smart twap vwap"`
	SmartSlices  int             `yaml:"smart_slices" default:"5" validate:"min=1"`
	SmartPause   time.Duration   `yaml:"smart_pause" default:"200ms"`
	TWAPSlices   int             `yaml:"twap_slices" default:"10" validate:"min=1"`
	TWAPDuration time.Duration   `yaml:"twap_duration" default:"1h"`
	VWAPInterval api.Interval    `yaml:"vwap_interval" default:"1m"`
	VWAPBuckets  int             `yaml:"vwap_buckets" default:"60" validate:"min=1"`
	Precision    int32           `yaml:"precision" default:"8" validate:"min=0"`
	Protect      bool            `yaml:"protect" default:"true"`
	Retry        retry.Policy    `yaml:"retry"`
}

// DefaultConfig returns the standard execution parameters.
func DefaultConfig() Config {
	policy := retry.DefaultPolicy()
	policy.Attempts = 5
	return Config{
		Algorithm:    model.Smart,
		SmartSlices:  5,
		SmartPause:   200 * time.Millisecond,
		TWAPSlices:   10,
		TWAPDuration: time.Hour,
		VWAPInterval: "1m",
		VWAPBuckets:  60,
		Precision:    8,
		Protect:      true,
		Retry:        policy,
	}
}
