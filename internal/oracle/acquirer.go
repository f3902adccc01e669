package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxWindow is the longest TWAP window Hermes serves.
const DefaultMaxWindow = 600 * time.Second

// Acquirer validates observations against the freshness bound and mode rules.
type Acquirer struct {
	source    Source
	maxWindow time.Duration
	logger    zerolog.Logger
}

// NewAcquirer wraps a Source. maxWindow <= 0 selects DefaultMaxWindow.
func NewAcquirer(source Source, maxWindow time.Duration, logger zerolog.Logger) *Acquirer {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return &Acquirer{
		source:    source,
		maxWindow: maxWindow,
		logger:    logger.With().Str("component", "quote_acquirer").Logger(),
	}
}

// GetPrice returns an observation for feed that is no older than maxAge at now.
// The age limit is inclusive.
func (a *Acquirer) GetPrice(ctx context.Context, feed FeedID, now time.Time, maxAge time.Duration, mode Mode) (Observation, error) {
	var (
		obs Observation
		err error
	)

	switch mode.Kind {
	case ModeInstant:
		obs, err = a.source.LatestPrice(ctx, feed)
	case ModeWindowed:
		maxSeconds := uint64(a.maxWindow / time.Second)
		if mode.WindowSeconds == 0 || mode.WindowSeconds > maxSeconds {
			return Observation{}, fmt.Errorf("%w: %ds (supported 1..%ds)", ErrInvalidWindow, mode.WindowSeconds, maxSeconds)
		}
		obs, err = a.source.LatestTWAP(ctx, feed, mode.Window())
	default:
		return Observation{}, fmt.Errorf("unsupported quote mode %d", mode.Kind)
	}
	if err != nil {
		return Observation{}, fmt.Errorf("fetch %s price for %s: %w", mode.Label(), feed, err)
	}

	if obs.Feed != feed {
		return Observation{}, fmt.Errorf("%w: oracle answered for %s, requested %s", ErrUnknownFeed, obs.Feed, feed)
	}

	if mode.Kind == ModeWindowed && !obs.WindowStart.IsZero() && !obs.ObservedAt.After(obs.WindowStart) {
		return Observation{}, fmt.Errorf("%w: window end %s not after start %s", ErrInvalidWindow,
			obs.ObservedAt.Format(time.RFC3339), obs.WindowStart.Format(time.RFC3339))
	}

	age := obs.Age(now)
	if age > maxAge {
		return Observation{}, fmt.Errorf("%w: observed %s ago, limit %s", ErrStalePrice, age, maxAge)
	}

	a.logger.Debug().
		Str("feed", feed.Hex()).
		Str("mode", mode.String()).
		Str("price", obs.Price.String()).
		Dur("age", age).
		Msg("quote accepted")

	return obs, nil
}
