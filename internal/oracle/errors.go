package oracle

import "errors"

var (
	// ErrUnknownFeed indicates the feed id does not resolve to a known series.
	ErrUnknownFeed = errors.New("unknown feed")
	// ErrInvalidFeedFormat indicates a malformed feed id string.
	ErrInvalidFeedFormat = errors.New("invalid feed id format")
	// ErrStalePrice indicates the observation is older than the freshness bound.
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidWindow indicates a zero or unsupported averaging window.
	ErrInvalidWindow = errors.New("invalid twap window")
)
