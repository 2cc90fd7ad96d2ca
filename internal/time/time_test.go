package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMilli(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 8e6, time.UTC)
	assert.Equal(t, int64(1614834367008), ToMilli(ts))
	assert.Equal(t, ts, FromMilli(ToMilli(ts)))
}

func TestClosed(t *testing.T) {

	open := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	type test struct {
		now    time.Time
		closed bool
	}

	tests := map[string]test{
		"open": {
			now: open.Add(30 * time.Second),
		},
		"at-close": {
			now:    open.Add(time.Minute),
			closed: true,
		},
		"after-close": {
			now:    open.Add(time.Hour),
			closed: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.closed, Closed(open, time.Minute, tt.now))
		})
	}
}
