package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fiatsend/internal/ledger"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	debitAccountSQL = `UPDATE ledger_accounts
    SET balance = balance - $2::numeric, updated_at = now()
    WHERE id = $1
      AND balance >= $2::numeric
    RETURNING balance::text;`

	accountExistsSQL = `SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE id = $1);`

	creditAccountSQL = `INSERT INTO ledger_accounts (id, balance)
    VALUES ($1, $2::numeric)
    ON CONFLICT (id) DO UPDATE
    SET balance    = ledger_accounts.balance + EXCLUDED.balance,
        updated_at = now();`

	insertTransferSQL = `INSERT INTO ledger_transfers (
        id,
        source,
        destination,
        amount_base_units
    ) VALUES (
        $1::uuid,$2,$3,$4::numeric
    )
    RETURNING created_at;`

	listRecentTransfersSQL = `SELECT
        id::text,
        source,
        destination,
        amount_base_units::text,
        created_at
    FROM ledger_transfers
    ORDER BY created_at DESC
    LIMIT $1;`

	balanceSQL = `SELECT balance::text FROM ledger_accounts WHERE id = $1;`
)

// Ledger keeps account balances in Postgres and moves funds in a single
// transaction, so a transfer is all-or-nothing.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger wires a pgx pool into a Ledger.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

func (l *Ledger) getPool() (*pgxpool.Pool, error) {
	if l == nil || l.pool == nil {
		return nil, ErrNotConfigured
	}
	return l.pool, nil
}

// Transfer debits the source and credits the destination atomically.
func (l *Ledger) Transfer(ctx context.Context, intent ledger.Intent) (ledger.Result, error) {
	pool, err := l.getPool()
	if err != nil {
		return ledger.Result{}, err
	}
	if strings.TrimSpace(string(intent.Destination)) == "" {
		return ledger.Result{}, ledger.ErrInvalidDestination
	}

	amount := strconv.FormatUint(intent.AmountBaseUnits, 10)
	id := uuid.NewString()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return ledger.Result{}, fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var remaining string
	if err := tx.QueryRow(ctx, debitAccountSQL, string(intent.Source), amount).Scan(&remaining); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return ledger.Result{}, fmt.Errorf("debit source: %w", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, accountExistsSQL, string(intent.Source)).Scan(&exists); err != nil {
			return ledger.Result{}, fmt.Errorf("lookup source: %w", err)
		}
		if !exists {
			return ledger.Result{}, fmt.Errorf("%w: unknown account %q", ledger.ErrUnauthorizedSource, intent.Source)
		}
		return ledger.Result{}, fmt.Errorf("%w: %s cannot cover %s", ledger.ErrInsufficientBalance, intent.Source, amount)
	}

	if _, err := tx.Exec(ctx, creditAccountSQL, string(intent.Destination), amount); err != nil {
		return ledger.Result{}, fmt.Errorf("credit destination: %w", err)
	}

	var createdAt time.Time
	if err := tx.QueryRow(ctx, insertTransferSQL, id, string(intent.Source), string(intent.Destination), amount).Scan(&createdAt); err != nil {
		return ledger.Result{}, fmt.Errorf("record transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Result{}, fmt.Errorf("commit transfer: %w", err)
	}

	return ledger.Result{Reference: id, CommittedAt: createdAt.UTC()}, nil
}

// Balance returns the balance of acct in base units.
func (l *Ledger) Balance(ctx context.Context, acct ledger.Account) (uint64, error) {
	pool, err := l.getPool()
	if err != nil {
		return 0, err
	}
	var raw string
	if err := pool.QueryRow(ctx, balanceSQL, string(acct)).Scan(&raw); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseBaseUnits(raw)
}

// ListRecentTransfers lists the most recent transfers, newest first.
func (l *Ledger) ListRecentTransfers(ctx context.Context, limit int) ([]ledger.Transfer, error) {
	pool, err := l.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTransfersSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transfers: %w", queryErr)
	}
	defer rows.Close()

	transfers := make([]ledger.Transfer, 0, limit)
	for rows.Next() {
		rec, scanErr := scanTransfer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transfers = append(transfers, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return transfers, nil
}

func scanTransfer(rows pgx.Rows) (ledger.Transfer, error) {
	var (
		id          string
		source      string
		destination string
		amountStr   string
		createdAt   time.Time
	)
	if err := rows.Scan(&id, &source, &destination, &amountStr, &createdAt); err != nil {
		return ledger.Transfer{}, err
	}

	amount, err := parseBaseUnits(amountStr)
	if err != nil {
		return ledger.Transfer{}, err
	}

	return ledger.Transfer{
		ID:              id,
		Source:          ledger.Account(source),
		Destination:     ledger.Account(destination),
		AmountBaseUnits: amount,
		CreatedAt:       createdAt.UTC(),
	}, nil
}

func parseBaseUnits(raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse base units %q: %w", raw, err)
	}
	return v, nil
}

var (
	_ ledger.Ledger  = (*Ledger)(nil)
	_ ledger.History = (*Ledger)(nil)
)
