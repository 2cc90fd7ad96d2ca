package buffer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtrema_Push(t *testing.T) {

	type test struct {
		size int
		gen  func(i int) float64
	}

	tests := map[string]test{
		"increasing": {
			size: 5,
			gen: func(i int) float64 {
				return float64(i)
			},
		},
		"decreasing": {
			size: 5,
			gen: func(i int) float64 {
				return -float64(i)
			},
		},
		"constant": {
			size: 3,
			gen: func(i int) float64 {
				return 7
			},
		},
		"random": {
			size: 14,
			gen: func(i int) float64 {
				return rand.Float64() * 100
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := NewExtrema(tt.size)
			values := make([]float64, 0)
			for i := 0; i < 200; i++ {
				v := tt.gen(i)
				e.Push(v+1, v-1)
				values = append(values, v)
				max, ok := e.Max()
				if i < tt.size-1 {
					assert.False(t, ok)
					continue
				}
				assert.True(t, ok)
				h, l := -math.MaxFloat64, math.MaxFloat64
				for _, x := range values[len(values)-tt.size:] {
					h = math.Max(h, x+1)
					l = math.Min(l, x-1)
				}
				min, _ := e.Min()
				assert.Equal(t, h, max)
				assert.Equal(t, l, min)
				r, _ := e.Range()
				assert.Equal(t, h-l, r)
			}
		})
	}
}
