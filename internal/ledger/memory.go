package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local ledger used for dry runs and tests.
type Memory struct {
	mu       sync.Mutex
	balances map[Account]uint64
	history  []Transfer
}

// Transfer is a committed movement recorded by a ledger.
type Transfer struct {
	ID              string
	Source          Account
	Destination     Account
	AmountBaseUnits uint64
	CreatedAt       time.Time
}

// NewMemory returns a ledger seeded with the given balances.
func NewMemory(balances map[Account]uint64) *Memory {
	seeded := make(map[Account]uint64, len(balances))
	for acct, bal := range balances {
		seeded[acct] = bal
	}
	return &Memory{balances: seeded}
}

// Transfer moves funds between in-memory accounts. Unknown destinations are
// created on first credit, like a chain account.
func (m *Memory) Transfer(_ context.Context, intent Intent) (Result, error) {
	if strings.TrimSpace(string(intent.Destination)) == "" {
		return Result{}, ErrInvalidDestination
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[intent.Source]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown account %q", ErrUnauthorizedSource, intent.Source)
	}
	if balance < intent.AmountBaseUnits {
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, intent.AmountBaseUnits)
	}

	credited := m.balances[intent.Destination]
	if intent.Destination != intent.Source && credited+intent.AmountBaseUnits < credited {
		return Result{}, fmt.Errorf("%w: destination balance would overflow", ErrInvalidDestination)
	}

	m.balances[intent.Source] = balance - intent.AmountBaseUnits
	m.balances[intent.Destination] += intent.AmountBaseUnits

	rec := Transfer{
		ID:              uuid.NewString(),
		Source:          intent.Source,
		Destination:     intent.Destination,
		AmountBaseUnits: intent.AmountBaseUnits,
		CreatedAt:       time.Now().UTC(),
	}
	m.history = append(m.history, rec)

	return Result{Reference: rec.ID, CommittedAt: rec.CreatedAt}, nil
}

// Balance returns the current balance of acct.
func (m *Memory) Balance(acct Account) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[acct]
}

// ListRecentTransfers returns up to limit transfers, newest first.
func (m *Memory) ListRecentTransfers(_ context.Context, limit int) ([]Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transfer, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

var (
	_ Ledger  = (*Memory)(nil)
	_ History = (*Memory)(nil)
)
