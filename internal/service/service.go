package service

//go:generate mockgen -destination=mock_source_test.go -package=service fiatsend/internal/oracle Source
//go:generate mockgen -destination=mock_ledger_test.go -package=service fiatsend/internal/ledger Ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatsend/internal/alerting"
	"fiatsend/internal/convert"
	"fiatsend/internal/ledger"
	"fiatsend/internal/metrics"
	"fiatsend/internal/oracle"
)

// PriceAcquirer returns a validated observation for a feed.
type PriceAcquirer interface {
	GetPrice(ctx context.Context, feed oracle.FeedID, now time.Time, maxAge time.Duration, mode oracle.Mode) (oracle.Observation, error)
}

// TransferAuthorizer moves base units between ledger accounts.
type TransferAuthorizer interface {
	Authorize(ctx context.Context, intent ledger.Intent) (ledger.Result, error)
}

// Options carry the per-deployment conversion policy.
type Options struct {
	FeedID           oracle.FeedID
	MaxAge           time.Duration
	BaseUnitScale    uint64
	RejectZeroAmount bool
	// Payer is used when a request names no source account.
	Payer    ledger.Account
	Channels []string
}

// Request asks for FiatAmount whole fiat units to be paid to Destination.
type Request struct {
	FiatAmount  uint64
	Mode        oracle.Mode
	Source      ledger.Account
	Destination ledger.Account
}

// Quote is a priced conversion that has not moved any value.
type Quote struct {
	Feed            oracle.FeedID
	Mode            oracle.Mode
	FiatAmount      uint64
	Observation     oracle.Observation
	Age             time.Duration
	AmountBaseUnits uint64
	QuotedAt        time.Time
	scale           uint64
}

// Amount renders AmountBaseUnits in whole coins.
func (q Quote) Amount() decimal.Decimal {
	return convert.Coins(q.AmountBaseUnits, q.scale)
}

// Receipt describes a committed conversion and transfer.
type Receipt struct {
	Quote
	Source      ledger.Account
	Destination ledger.Account
	Reference   string
	CommittedAt time.Time
}

// Service runs the acquire, convert, authorize flow for both quote modes.
type Service struct {
	opts       Options
	acquirer   PriceAcquirer
	authorizer TransferAuthorizer
	clock      oracle.Clock
	notifier   alerting.Notifier
	logger     zerolog.Logger
}

// New constructs the conversion service. notifier may be nil.
func New(opts Options, acquirer PriceAcquirer, authorizer TransferAuthorizer, clock oracle.Clock, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = oracle.SystemClock{}
	}
	return &Service{
		opts:       opts,
		acquirer:   acquirer,
		authorizer: authorizer,
		clock:      clock,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// Quote prices fiatAmount without transferring anything.
func (s *Service) Quote(ctx context.Context, fiatAmount uint64, mode oracle.Mode) (Quote, error) {
	q, err := s.quote(ctx, fiatAmount, mode)
	metrics.RecordConversion(mode.Label(), Kind(err))
	if err != nil {
		s.logger.Error().Err(err).Str("kind", Kind(err)).Str("mode", mode.String()).Uint64("fiat_amount", fiatAmount).Msg("quote failed")
		return Quote{}, err
	}
	return q, nil
}

func (s *Service) quote(ctx context.Context, fiatAmount uint64, mode oracle.Mode) (Quote, error) {
	if fiatAmount == 0 {
		return Quote{}, ErrInvalidAmount
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("read clock: %w", err)
	}

	obs, err := s.acquirer.GetPrice(ctx, s.opts.FeedID, now, s.opts.MaxAge, mode)
	if err != nil {
		return Quote{}, err
	}

	units, err := convert.BaseUnits(fiatAmount, obs.Price, s.opts.BaseUnitScale)
	if err != nil {
		return Quote{}, fmt.Errorf("convert %d at %s: %w", fiatAmount, obs.Price, err)
	}

	age := obs.Age(now)
	metrics.ObserveQuoteAge(mode.Label(), age)

	return Quote{
		Feed:            s.opts.FeedID,
		Mode:            mode,
		FiatAmount:      fiatAmount,
		Observation:     obs,
		Age:             age,
		AmountBaseUnits: units,
		QuotedAt:        now,
		scale:           s.opts.BaseUnitScale,
	}, nil
}

// Send converts req.FiatAmount at a freshly validated quote and issues one
// transfer. Any failure aborts the remaining steps. A transfer that was
// submitted but not confirmed returns a Receipt carrying its reference together
// with an error matching ledger.ErrTransferUnconfirmed.
func (s *Service) Send(ctx context.Context, req Request) (Receipt, error) {
	destination := ledger.Account(strings.TrimSpace(string(req.Destination)))
	if destination == "" {
		return Receipt{}, ErrInvalidDestination
	}
	source := ledger.Account(strings.TrimSpace(string(req.Source)))
	if source == "" {
		source = s.opts.Payer
	}
	if source == "" {
		return Receipt{}, ErrMissingSource
	}

	q, err := s.Quote(ctx, req.FiatAmount, req.Mode)
	if err != nil {
		return Receipt{}, err
	}
	if q.AmountBaseUnits == 0 && s.opts.RejectZeroAmount {
		return Receipt{}, fmt.Errorf("%w: %d at %s", ErrZeroAmount, req.FiatAmount, q.Observation.Price)
	}

	res, err := s.authorizer.Authorize(ctx, ledger.Intent{
		Source:          source,
		Destination:     destination,
		AmountBaseUnits: q.AmountBaseUnits,
	})
	if errors.Is(err, ledger.ErrTransferUnconfirmed) {
		metrics.RecordTransfer("unconfirmed", q.AmountBaseUnits)
		s.logger.Warn().Err(err).
			Str("destination", string(destination)).
			Uint64("amount_base_units", q.AmountBaseUnits).
			Str("reference", res.Reference).
			Msg("transfer submitted, confirmation pending")
		return Receipt{
			Quote:       q,
			Source:      source,
			Destination: destination,
			Reference:   res.Reference,
		}, err
	}
	if err != nil {
		metrics.RecordTransfer(rejectionCause(err), q.AmountBaseUnits)
		s.logger.Error().Err(err).
			Str("kind", Kind(err)).
			Str("destination", string(destination)).
			Uint64("amount_base_units", q.AmountBaseUnits).
			Msg("transfer failed")
		return Receipt{}, err
	}
	metrics.RecordTransfer("ok", q.AmountBaseUnits)

	receipt := Receipt{
		Quote:       q,
		Source:      source,
		Destination: destination,
		Reference:   res.Reference,
		CommittedAt: res.CommittedAt,
	}

	s.logger.Info().
		Uint64("fiat_amount", req.FiatAmount).
		Str("mode", req.Mode.String()).
		Str("price", q.Observation.Price.String()).
		Dur("quote_age", q.Age).
		Uint64("amount_base_units", q.AmountBaseUnits).
		Str("reference", res.Reference).
		Msg("conversion settled")

	s.notify(ctx, receipt)
	return receipt, nil
}

func (s *Service) notify(ctx context.Context, r Receipt) {
	if s.notifier == nil {
		return
	}
	note := alerting.Notification{
		CommittedAt:     r.CommittedAt,
		FiatAmount:      r.FiatAmount,
		Price:           r.Observation.Price.Decimal(),
		Mode:            r.Mode.String(),
		Amount:          r.Amount(),
		AmountBaseUnits: r.AmountBaseUnits,
		Source:          string(r.Source),
		Destination:     string(r.Destination),
		Reference:       r.Reference,
		Channels:        s.opts.Channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("reference", r.Reference).Msg("failed to dispatch transfer notification")
	}
}
