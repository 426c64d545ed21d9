package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/faisalantu/tradebridge-systems/services/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}
	pool, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	t.Cleanup(func() {
		_ = testutil.CleanupTestData(context.Background(), pool)
		pool.Close()
	})
	return New(pool), pool
}

func insertUser(t *testing.T, pool *pgxpool.Pool, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, password_hash, full_name, currency, status, balance, reference_code)
		VALUES ($1, $2, 'hash', 'Ledger User', 'USD', 'active', $3, $4)
	`, id, fmt.Sprintf("ledger-%s@example.com", id), balance, "TB-"+id.String()[:8])
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func TestApplySettlementOnceIntegration(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()
	userID := insertUser(t, pool, "10.00")

	st := Settlement{
		EventID:       uuid.NewString(),
		TransactionID: uuid.New(),
		UserID:        userID,
		Type:          TypeDeposit,
		Amount:        decimal.RequireFromString("25.50"),
	}
	first, err := store.ApplySettlement(ctx, st)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if first.AlreadyProcessed || !first.Balance.Equal(decimal.RequireFromString("35.50")) {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := store.ApplySettlement(ctx, st)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.AlreadyProcessed || !second.Balance.Equal(first.Balance) {
		t.Fatalf("expected replay to be a no-op, got %+v", second)
	}

	processed, err := store.IsProcessed(ctx, st.EventID)
	if err != nil || !processed {
		t.Fatalf("expected event recorded, got %v %v", processed, err)
	}
}

func TestApplySettlementRejectsOverdraftIntegration(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()
	userID := insertUser(t, pool, "10.00")

	st := Settlement{
		EventID:       uuid.NewString(),
		TransactionID: uuid.New(),
		UserID:        userID,
		Type:          TypeWithdrawal,
		Amount:        decimal.NewFromInt(11),
	}
	if _, err := store.ApplySettlement(ctx, st); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// the failed event must not be marked processed
	processed, err := store.IsProcessed(ctx, st.EventID)
	if err != nil || processed {
		t.Fatalf("expected event not recorded, got %v %v", processed, err)
	}
}

func TestApplySettlementUnknownUserIntegration(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.ApplySettlement(context.Background(), Settlement{
		EventID:       uuid.NewString(),
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
		Type:          TypeDeposit,
		Amount:        decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
