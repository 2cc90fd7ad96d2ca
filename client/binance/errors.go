package binance

import (
	"context"
	"errors"

	"github.com/adshao/go-binance/v2/common"
	"github.com/drakos74/futures-bot/internal/api"
)

// binance api error codes
const (
	codeUnknown          = -1000
	codeDisconnected     = -1001
	codeTooManyRequests  = -1003
	codeUnexpectedResp   = -1006
	codeTimeout          = -1007
	codeServerBusy       = -1008
	codeInvalidTimestamp = -1021
	codeUnknownOrder     = -2011
	codeNoSuchOrder      = -2013
	codeDuplicateOrder   = -4116
)

var transient = map[int64]bool{
	codeUnknown:          true,
	codeDisconnected:     true,
	codeTooManyRequests:  true,
	codeUnexpectedResp:   true,
	codeTimeout:          true,
	codeServerBusy:       true,
	codeInvalidTimestamp: true,
}

// classify marks the exchange error as retryable or terminal.
// Errors without an api code are transport failures and can be retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return api.Retryable(err)
	}
	if transient[apiErr.Code] {
		return api.Retryable(err)
	}
	return api.Terminal(err)
}

func isDuplicate(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeDuplicateOrder
}

// isGone checks if the order no longer exists, because it was filled, expired or cancelled.
func isGone(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && (apiErr.Code == codeUnknownOrder || apiErr.Code == codeNoSuchOrder)
}
