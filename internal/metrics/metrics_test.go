package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(t, err)

	m.Cycle("BTCUSDT", "hold")
	m.Cycle("BTCUSDT", "hold")
	m.Rejection("BTCUSDT", "ATR non-positive")
	m.State("BTCUSDT", "FETCHING")
	m.State("BTCUSDT", "IDLE")
	m.Realized("BTCUSDT", 10)
	m.Realized("BTCUSDT", -4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.prometheus.Cycles.WithLabelValues("BTCUSDT", "hold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prometheus.Rejections.WithLabelValues("BTCUSDT", "ATR non-positive")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.prometheus.State.WithLabelValues("BTCUSDT", "FETCHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prometheus.State.WithLabelValues("BTCUSDT", "IDLE")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.prometheus.PnL.WithLabelValues("BTCUSDT")))

	// registering twice on the same registry fails
	_, err = NewMetrics(registry)
	assert.Error(t, err)
}
