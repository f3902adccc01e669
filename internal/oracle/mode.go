package oracle

import (
	"fmt"
	"time"
)

// ModeKind selects how a quote is sourced.
type ModeKind uint8

const (
	// ModeInstant uses the latest published price.
	ModeInstant ModeKind = iota
	// ModeWindowed uses a time-weighted average over a trailing window.
	ModeWindowed
)

// Mode is the quote sourcing mode threaded through to the acquirer.
type Mode struct {
	Kind          ModeKind
	WindowSeconds uint64
}

// Instant selects the latest price.
func Instant() Mode {
	return Mode{Kind: ModeInstant}
}

// Windowed selects the TWAP over the trailing windowSeconds.
func Windowed(windowSeconds uint64) Mode {
	return Mode{Kind: ModeWindowed, WindowSeconds: windowSeconds}
}

// Window returns the averaging window; zero for instant quotes.
func (m Mode) Window() time.Duration {
	if m.Kind != ModeWindowed {
		return 0
	}
	return time.Duration(m.WindowSeconds) * time.Second
}

// Label is the low-cardinality name used for logs and metrics.
func (m Mode) Label() string {
	if m.Kind == ModeWindowed {
		return "twap"
	}
	return "instant"
}

func (m Mode) String() string {
	if m.Kind == ModeWindowed {
		return fmt.Sprintf("twap(%ds)", m.WindowSeconds)
	}
	return "instant"
}
