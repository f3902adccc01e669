package oracle

import (
	"context"
	"time"

	"fiatsend/internal/convert"
)

// Observation is a single price reading for a feed.
type Observation struct {
	Feed FeedID
	convert.Price
	// ObservedAt is the publish time, or the window end for a TWAP.
	ObservedAt time.Time
	// WindowStart is set for TWAP observations only.
	WindowStart time.Time
}

// Age reports how old the observation is at now. Observations stamped in the
// future count as fresh.
func (o Observation) Age(now time.Time) time.Duration {
	age := now.Sub(o.ObservedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Source retrieves raw observations from a price oracle. Implementations wrap
// ErrUnknownFeed when the feed id is not served.
type Source interface {
	LatestPrice(ctx context.Context, feed FeedID) (Observation, error)
	LatestTWAP(ctx context.Context, feed FeedID, window time.Duration) (Observation, error)
}

// Clock supplies the current time used for freshness checks.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now(context.Context) (time.Time, error) {
	return time.Now().UTC(), nil
}

var _ Clock = SystemClock{}
