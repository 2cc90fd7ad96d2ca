package buffer

// EMA is an exponential moving average seeded with the first value.
// It becomes ready after span values, but its state is updated from the first one.
type EMA struct {
	span  int
	alpha float64
	count int
	value float64
}

// NewEMA creates a new exponential moving average for the given span.
func NewEMA(span int) *EMA {
	return &EMA{
		span:  span,
		alpha: 2 / (float64(span) + 1),
	}
}

// Push adds a value to the average.
func (e *EMA) Push(v float64) {
	if e.count == 0 {
		e.value = v
	} else {
		e.value = e.alpha*v + (1-e.alpha)*e.value
	}
	e.count++
}

// Value returns the current average.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.count >= e.span
}

// Count returns the number of values pushed.
func (e *EMA) Count() int {
	return e.count
}

// Wilder is the smoothed moving average of Welles Wilder.
// The first value is the simple average of the first period values.
type Wilder struct {
	period int
	count  int
	sum    float64
	value  float64
}

// NewWilder creates a new wilder average for the given period.
func NewWilder(period int) *Wilder {
	return &Wilder{period: period}
}

// Push adds a value to the average.
func (w *Wilder) Push(v float64) {
	w.count++
	switch {
	case w.count < w.period:
		w.sum += v
	case w.count == w.period:
		w.sum += v
		w.value = w.sum / float64(w.period)
	default:
		w.value = (w.value*float64(w.period-1) + v) / float64(w.period)
	}
}

// Value returns the current average.
func (w *Wilder) Value() (float64, bool) {
	if w.count < w.period {
		return 0, false
	}
	return w.value, true
}
