package api

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable signals that market data could not be fetched.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrFeatureNotReady signals that the required features are still warming up.
	ErrFeatureNotReady = errors.New("feature not ready")
	// ErrRiskRejected signals that the risk gate rejected the decision.
	ErrRiskRejected = errors.New("risk rejected")
	// ErrExecutionPartial signals that only part of a plan got filled.
	ErrExecutionPartial = errors.New("execution partial")
	// ErrExecutionFailed signals that nothing of a plan got filled.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrGatewayTerminal signals a gateway failure that must not be retried.
	ErrGatewayTerminal = errors.New("gateway terminal error")
	// ErrPositionExists signals that the instrument already has an open position.
	ErrPositionExists = errors.New("position exists")
	// ErrPositionNotFound signals that the instrument has no open position.
	ErrPositionNotFound = errors.New("position not found")
	// ErrRetriesExhausted signals that a retried operation never succeeded.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

type retryable struct {
	err error
}

func (r retryable) Error() string {
	return fmt.Sprintf("retryable: %s", r.err.Error())
}

func (r retryable) Unwrap() error {
	return r.err
}

// Retryable marks the error as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryable{err: err}
}

// Terminal marks the error as non-retryable gateway failure.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGatewayTerminal, err.Error())
}

// IsRetryable checks if the error is a transient one.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r)
}
