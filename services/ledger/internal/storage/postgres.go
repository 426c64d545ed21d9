package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ApplySettlement records the event and changes the balance in one
// transaction. A replayed event id commits nothing and reports
// AlreadyProcessed with the current balance.
func (s *Store) ApplySettlement(ctx context.Context, st Settlement) (*SettlementResult, error) {
	if st.EventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if st.Type != TypeDeposit && st.Type != TypeWithdrawal {
		return nil, fmt.Errorf("invalid transaction type %q", st.Type)
	}
	if !st.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	inserted, err := insertProcessedEvent(ctx, tx, st)
	if err != nil {
		return nil, err
	}

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT balance FROM users WHERE id = $1 FOR UPDATE
	`, st.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, st.UserID)
		}
		return nil, err
	}

	result := &SettlementResult{UserID: st.UserID, Delta: st.Delta(), Balance: balance}
	if !inserted {
		result.AlreadyProcessed = true
		return result, nil
	}

	next := balance.Add(result.Delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("%w: user %s balance %s debit %s", ErrInsufficientBalance, st.UserID, balance, st.Amount)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET balance = $2, updated_at = now() WHERE id = $1
	`, st.UserID, next)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	result.Balance = next
	return result, nil
}

// insertProcessedEvent also marks the transaction as applied, which releases
// a completed withdrawal from the account service's reservation.
func insertProcessedEvent(ctx context.Context, tx pgx.Tx, st Settlement) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, transaction_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, st.EventID, st.TransactionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)
	`, eventID).Scan(&exists)
	return exists, err
}
