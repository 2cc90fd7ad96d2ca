package signal

// Predictor maps an input vector to a trade vote of -1, 0 or 1.
type Predictor interface {
	Predict(x []float64) (int, error)
}

// PredictorFunc adapts a function to a Predictor.
type PredictorFunc func(x []float64) (int, error)

// Predict calls the underlying function.
func (f PredictorFunc) Predict(x []float64) (int, error) {
	return f(x)
}

// Source is a named predictor, so that every decision can be attributed.
type Source struct {
	ID        string
	Predictor Predictor
}

func (s Source) ok() bool {
	return s.Predictor != nil
}
