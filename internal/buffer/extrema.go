package buffer

type indexed struct {
	i int
	v float64
}

// deque is a monotonic queue of indexed values.
type deque struct {
	items []indexed
	less  func(a, b float64) bool
}

func (d *deque) push(i int, v float64, window int) {
	// drop the dominated tail
	for len(d.items) > 0 && !d.less(v, d.items[len(d.items)-1].v) {
		d.items = d.items[:len(d.items)-1]
	}
	d.items = append(d.items, indexed{i: i, v: v})
	// drop what fell out of the window
	for len(d.items) > 0 && d.items[0].i <= i-window {
		d.items = d.items[1:]
	}
}

func (d *deque) head() float64 {
	return d.items[0].v
}

// Extrema tracks the maximum and minimum over a sliding window in amortized constant time.
type Extrema struct {
	size  int
	count int
	max   *deque
	min   *deque
}

// NewExtrema creates a new sliding extrema tracker for the given window size.
func NewExtrema(size int) *Extrema {
	if size < 1 {
		size = 1
	}
	return &Extrema{
		size: size,
		// max keeps a decreasing queue
		max: &deque{
			items: make([]indexed, 0, size),
			less:  func(a, b float64) bool { return a < b },
		},
		// min keeps an increasing queue
		min: &deque{
			items: make([]indexed, 0, size),
			less:  func(a, b float64) bool { return a > b },
		},
	}
}

// Push adds the high and low values of the next element.
func (e *Extrema) Push(high, low float64) {
	e.max.push(e.count, high, e.size)
	e.min.push(e.count, low, e.size)
	e.count++
}

// Full checks if the window has seen enough elements.
func (e *Extrema) Full() bool {
	return e.count >= e.size
}

// Max returns the maximum of the window.
func (e *Extrema) Max() (float64, bool) {
	if !e.Full() {
		return 0, false
	}
	return e.max.head(), true
}

// Min returns the minimum of the window.
func (e *Extrema) Min() (float64, bool) {
	if !e.Full() {
		return 0, false
	}
	return e.min.head(), true
}

// Mid returns the midpoint of the window range.
func (e *Extrema) Mid() (float64, bool) {
	h, ok := e.Max()
	if !ok {
		return 0, false
	}
	l, _ := e.Min()
	return (h + l) / 2, true
}

// Range returns the difference between the maximum and minimum.
func (e *Extrema) Range() (float64, bool) {
	h, ok := e.Max()
	if !ok {
		return 0, false
	}
	l, _ := e.Min()
	return h - l, true
}
