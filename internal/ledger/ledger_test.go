package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestAuthorizeCommits(t *testing.T) {
	mem := NewMemory(map[Account]uint64{"payer": 1_000})
	auth := NewAuthorizer(mem, zerolog.Nop())

	res, err := auth.Authorize(context.Background(), Intent{Source: "payer", Destination: "shop", AmountBaseUnits: 400})
	if err != nil {
		t.Fatalf("transfer within balance should commit: %v", err)
	}
	if res.Reference == "" {
		t.Fatal("committed transfer should carry a reference")
	}
	if mem.Balance("payer") != 600 || mem.Balance("shop") != 400 {
		t.Fatalf("unexpected balances payer=%d shop=%d", mem.Balance("payer"), mem.Balance("shop"))
	}
}

func TestAuthorizeRejections(t *testing.T) {
	cases := []struct {
		name   string
		intent Intent
		cause  error
	}{
		{"insufficient balance", Intent{Source: "payer", Destination: "shop", AmountBaseUnits: 1_001}, ErrInsufficientBalance},
		{"empty destination", Intent{Source: "payer", Destination: " ", AmountBaseUnits: 1}, ErrInvalidDestination},
		{"unknown source", Intent{Source: "stranger", Destination: "shop", AmountBaseUnits: 1}, ErrUnauthorizedSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := NewMemory(map[Account]uint64{"payer": 1_000})
			_, err := NewAuthorizer(mem, zerolog.Nop()).Authorize(context.Background(), tc.intent)
			if !errors.Is(err, ErrTransferRejected) {
				t.Fatalf("expected ErrTransferRejected, got %v", err)
			}
			if !errors.Is(err, tc.cause) {
				t.Fatalf("cause %v should stay in the chain, got %v", tc.cause, err)
			}
			if mem.Balance("payer") != 1_000 {
				t.Fatal("rejected transfer must not move funds")
			}
		})
	}
}

func TestAuthorizeDoesNotRetry(t *testing.T) {
	l := &countingLedger{err: errors.New("node unavailable")}
	if _, err := NewAuthorizer(l, zerolog.Nop()).Authorize(context.Background(), Intent{Source: "a", Destination: "b", AmountBaseUnits: 1}); err == nil {
		t.Fatal("ledger failure must surface")
	}
	if l.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", l.calls)
	}
}

func TestMemoryConcurrentTransfersConserveFunds(t *testing.T) {
	mem := NewMemory(map[Account]uint64{"payer": 100})
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mem.Transfer(context.Background(), Intent{Source: "payer", Destination: "shop", AmountBaseUnits: 1})
		}()
	}
	wg.Wait()

	if mem.Balance("payer") != 0 || mem.Balance("shop") != 100 {
		t.Fatalf("funds not conserved: payer=%d shop=%d", mem.Balance("payer"), mem.Balance("shop"))
	}
	recent, err := mem.ListRecentTransfers(context.Background(), 5)
	if err != nil || len(recent) != 5 {
		t.Fatalf("expected 5 recent transfers, got %d (%v)", len(recent), err)
	}
}

func TestAuthorizeUnconfirmedIsNotRejected(t *testing.T) {
	l := &countingLedger{res: Result{Reference: "0xfeed"}, err: fmt.Errorf("%w: not mined", ErrTransferUnconfirmed)}
	res, err := NewAuthorizer(l, zerolog.Nop()).Authorize(context.Background(), Intent{Source: "a", Destination: "b", AmountBaseUnits: 1})
	if !errors.Is(err, ErrTransferUnconfirmed) {
		t.Fatalf("expected ErrTransferUnconfirmed, got %v", err)
	}
	if errors.Is(err, ErrTransferRejected) {
		t.Fatalf("submitted transfer reported as rejected: %v", err)
	}
	if res.Reference != "0xfeed" {
		t.Fatalf("reference should survive, got %q", res.Reference)
	}
}

type countingLedger struct {
	calls int
	res   Result
	err   error
}

func (c *countingLedger) Transfer(context.Context, Intent) (Result, error) {
	c.calls++
	return c.res, c.err
}
