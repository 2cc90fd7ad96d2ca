package buffer

import (
	"math"
)

// Window is a fixed size queue of floats keeping a running sum of its values.
// NaN values are accepted and mark the window as invalid until they are evicted.
type Window struct {
	size    int
	index   int
	count   int
	invalid int
	sum     float64
	values  []float64
}

// NewWindow creates a new window of the given size.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:   size,
		values: make([]float64, size),
	}
}

// Push adds an element to the window.
// It returns the evicted element, if the window was already full.
func (w *Window) Push(v float64) (float64, bool) {
	var evicted float64
	full := w.Full()
	if full {
		evicted = w.values[w.index]
		if math.IsNaN(evicted) {
			w.invalid--
		} else {
			w.sum -= evicted
		}
	}
	w.values[w.index] = v
	if math.IsNaN(v) {
		w.invalid++
	} else {
		w.sum += v
	}
	w.index = (w.index + 1) % w.size
	if w.count < w.size {
		w.count++
	}
	if w.index == 0 {
		// re-sum on every full turn to stop floating point drift
		w.resum()
	}
	return evicted, full
}

func (w *Window) resum() {
	sum := 0.0
	for i := 0; i < w.count; i++ {
		if !math.IsNaN(w.values[i]) {
			sum += w.values[i]
		}
	}
	w.sum = sum
}

// Len returns the number of elements in the window.
func (w *Window) Len() int {
	return w.count
}

// Size returns the capacity of the window.
func (w *Window) Size() int {
	return w.size
}

// Full checks if the window has reached its capacity.
func (w *Window) Full() bool {
	return w.count == w.size
}

// Valid checks if the window is full and holds no invalid values.
func (w *Window) Valid() bool {
	return w.Full() && w.invalid == 0
}

// Sum returns the sum of the window elements.
func (w *Window) Sum() (float64, bool) {
	if !w.Valid() {
		return 0, false
	}
	return w.sum, true
}

// Mean returns the average of the window elements.
func (w *Window) Mean() (float64, bool) {
	if !w.Valid() {
		return 0, false
	}
	return w.sum / float64(w.size), true
}

// SampleStDev returns the sample standard deviation of the window elements.
func (w *Window) SampleStDev() (float64, bool) {
	if !w.Valid() || w.size < 2 {
		return 0, false
	}
	mean := w.sum / float64(w.size)
	dSquared := 0.0
	for _, v := range w.values {
		d := v - mean
		dSquared += d * d
	}
	return math.Sqrt(dSquared / float64(w.size-1)), true
}

// Ago returns the element pushed k pushes before the last one.
// Ago(0) is the last element.
func (w *Window) Ago(k int) (float64, bool) {
	if k < 0 || k >= w.count {
		return 0, false
	}
	i := (w.index - 1 - k + 2*w.size) % w.size
	v := w.values[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Get returns the window elements in the order they were added.
func (w *Window) Get() []float64 {
	vv := make([]float64, w.count)
	start := 0
	if w.Full() {
		start = w.index
	}
	for i := 0; i < w.count; i++ {
		vv[i] = w.values[(start+i)%w.size]
	}
	return vv
}
