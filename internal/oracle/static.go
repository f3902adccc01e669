package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StaticSource serves fixed observations. It backs the `static` oracle driver
// for local runs and the flow tests.
type StaticSource struct {
	mu      sync.RWMutex
	prices  map[FeedID]Observation
	twaps   map[FeedID]Observation
	nowFunc func() time.Time
}

// NewStaticSource returns an empty source. nowFunc stamps observations stored
// without a timestamp; nil uses time.Now.
func NewStaticSource(nowFunc func() time.Time) *StaticSource {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &StaticSource{
		prices:  make(map[FeedID]Observation),
		twaps:   make(map[FeedID]Observation),
		nowFunc: nowFunc,
	}
}

// Put stores an instant observation as-is.
func (s *StaticSource) Put(obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[obs.Feed] = obs
}

// PutTWAP stores a windowed observation as-is.
func (s *StaticSource) PutTWAP(obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.twaps[obs.Feed] = obs
}

// LatestPrice returns the stored observation. Observations with a zero
// timestamp are stamped with the current time.
func (s *StaticSource) LatestPrice(_ context.Context, feed FeedID) (Observation, error) {
	s.mu.RLock()
	obs, ok := s.prices[feed]
	s.mu.RUnlock()
	if !ok {
		return Observation{}, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = s.nowFunc().UTC()
	}
	return obs, nil
}

// LatestTWAP returns the stored TWAP, falling back to the instant price
// averaged over a flat window when no TWAP was stored.
func (s *StaticSource) LatestTWAP(ctx context.Context, feed FeedID, window time.Duration) (Observation, error) {
	s.mu.RLock()
	obs, ok := s.twaps[feed]
	s.mu.RUnlock()
	if !ok {
		var err error
		obs, err = s.LatestPrice(ctx, feed)
		if err != nil {
			return Observation{}, err
		}
		obs.WindowStart = obs.ObservedAt.Add(-window)
		return obs, nil
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = s.nowFunc().UTC()
		obs.WindowStart = obs.ObservedAt.Add(-window)
	}
	return obs, nil
}

var _ Source = (*StaticSource)(nil)
