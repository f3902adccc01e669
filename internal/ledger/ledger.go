package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrTransferRejected wraps every failure reported by the ledger.
	ErrTransferRejected = errors.New("transfer rejected")

	// ErrInsufficientBalance is reported when the source cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidDestination is reported for an unusable destination account.
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrUnauthorizedSource is reported when the ledger cannot sign for the source.
	ErrUnauthorizedSource = errors.New("source not authorized")
	// ErrTransferUnconfirmed is reported when a transfer was submitted but its
	// outcome is not known yet. The Result carries the submitted reference and
	// the transfer may still commit.
	ErrTransferUnconfirmed = errors.New("transfer submitted but unconfirmed")
)

// Account is an opaque ledger account identifier.
type Account string

// Intent moves AmountBaseUnits from Source to Destination.
type Intent struct {
	Source          Account
	Destination     Account
	AmountBaseUnits uint64
}

// Result describes a committed transfer.
type Result struct {
	Reference   string
	CommittedAt time.Time
}

// Ledger is the native value-movement primitive. Transfer is atomic: it either
// commits the whole amount or nothing.
type Ledger interface {
	Transfer(ctx context.Context, intent Intent) (Result, error)
}

// History lists committed transfers, newest first.
type History interface {
	ListRecentTransfers(ctx context.Context, limit int) ([]Transfer, error)
}

// Authorizer issues exactly one transfer per call.
type Authorizer struct {
	ledger Ledger
	logger zerolog.Logger
}

// NewAuthorizer wraps a Ledger.
func NewAuthorizer(l Ledger, logger zerolog.Logger) *Authorizer {
	return &Authorizer{ledger: l, logger: logger.With().Str("component", "transfer_authorizer").Logger()}
}

// Authorize delegates to the ledger once. Failures are not retried. An
// unconfirmed submission is returned as is, never as a rejection.
func (a *Authorizer) Authorize(ctx context.Context, intent Intent) (Result, error) {
	res, err := a.ledger.Transfer(ctx, intent)
	if errors.Is(err, ErrTransferUnconfirmed) {
		a.logger.Warn().Err(err).
			Str("destination", string(intent.Destination)).
			Uint64("amount_base_units", intent.AmountBaseUnits).
			Str("reference", res.Reference).
			Msg("transfer submitted without confirmation")
		return res, err
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}

	a.logger.Info().
		Str("source", string(intent.Source)).
		Str("destination", string(intent.Destination)).
		Uint64("amount_base_units", intent.AmountBaseUnits).
		Str("reference", res.Reference).
		Msg("transfer committed")
	return res, nil
}
