package service

import (
	"context"
	"errors"

	"fiatsend/internal/convert"
	"fiatsend/internal/ledger"
	"fiatsend/internal/oracle"
)

var (
	// ErrInvalidAmount is returned for a zero fiat amount.
	ErrInvalidAmount = errors.New("fiat amount must be greater than zero")
	// ErrZeroAmount is returned when the converted amount truncates to zero
	// base units and zero transfers are disallowed.
	ErrZeroAmount = errors.New("converted amount is zero base units")
	// ErrInvalidDestination is returned when no destination account is given.
	ErrInvalidDestination = errors.New("destination account is required")
	// ErrMissingSource is returned when neither the request nor config names a payer.
	ErrMissingSource = errors.New("source account is required")
)

// Kind maps an error from Quote or Send to a stable label used by logs,
// metrics and the HTTP surface.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrInvalidDestination):
		return "invalid_destination"
	case errors.Is(err, ErrMissingSource):
		return "missing_source"
	case errors.Is(err, ledger.ErrTransferUnconfirmed):
		return "transfer_unconfirmed"
	case errors.Is(err, ledger.ErrTransferRejected):
		return "transfer_rejected"
	case errors.Is(err, oracle.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, oracle.ErrInvalidFeedFormat):
		return "invalid_feed_format"
	case errors.Is(err, oracle.ErrUnknownFeed):
		return "unknown_feed"
	case errors.Is(err, oracle.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, convert.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, convert.ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// rejectionCause narrows a transfer rejection to the ledger's reason.
func rejectionCause(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrInvalidDestination):
		return "invalid_destination"
	case errors.Is(err, ledger.ErrUnauthorizedSource):
		return "unauthorized_source"
	default:
		return "rejected"
	}
}
