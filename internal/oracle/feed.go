package oracle

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FeedID identifies a price series. Feeds are 32-byte ids written as hex.
type FeedID common.Hash

// ResolveFeedID parses a 64 digit hex feed id, with or without a 0x prefix.
func ResolveFeedID(s string) (FeedID, error) {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	if len(raw) != 2+2*common.HashLength {
		return FeedID{}, fmt.Errorf("%w: %q must be %d hex digits", ErrInvalidFeedFormat, s, 2*common.HashLength)
	}

	b, err := hexutil.Decode(raw)
	if err != nil {
		return FeedID{}, fmt.Errorf("%w: %q: %v", ErrInvalidFeedFormat, s, err)
	}
	return FeedID(common.BytesToHash(b)), nil
}

// Hex returns the 0x-prefixed lower-case form.
func (id FeedID) Hex() string {
	return common.Hash(id).Hex()
}

// Bare returns the hex form without prefix, as oracle APIs expect it.
func (id FeedID) Bare() string {
	return strings.TrimPrefix(id.Hex(), "0x")
}

func (id FeedID) String() string {
	return id.Hex()
}
