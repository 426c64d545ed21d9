package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	demoUserID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	adminUserID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

type account struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FullName  string
	Role      string
	Reference string
	Balance   decimal.Decimal
}

var fixedAccounts = []account{
	{demoUserID, "demo@tradebridge.com", "demo1234", "Demo User", "user", "TB-DEMO0001", decimal.NewFromInt(25000)},
	{adminUserID, "admin@tradebridge.com", "admin1234", "TradeBridge Admin", "admin", "TB-ADMN0002", decimal.Zero},
}

type seeder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	params argon2Params
}

// seedAccounts upserts the demo and admin logins. Passwords and roles are
// reset on every run; balances are only set on first insert.
func (s *seeder) seedAccounts(ctx context.Context) error {
	now := time.Now().UTC()
	for _, a := range fixedAccounts {
		hash, err := hashPassword(a.Password, s.params)
		if err != nil {
			return fmt.Errorf("hash %s password: %w", a.Email, err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, full_name, phone_number, currency, address, role, status, balance, reference_code, created_at, updated_at)
			VALUES ($1, $2, $3, $4, '', 'USD', '', $5, 'active', $6, $7, $8, $8)
			ON CONFLICT (email) DO UPDATE
			SET password_hash = EXCLUDED.password_hash,
			    role = EXCLUDED.role,
			    status = EXCLUDED.status,
			    deleted_at = NULL,
			    updated_at = EXCLUDED.updated_at
		`, a.ID, a.Email, hash, a.FullName, a.Role, a.Balance, a.Reference, now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", a.Email, err)
		}
	}
	return nil
}

// seedMock inserts generated users with their transactions and spreads
// investments across them. Users whose email already exists are left alone,
// so reruns with the same seed are no-ops.
func (s *seeder) seedMock(ctx context.Context, gen *mockGenerator, users, investments, txPerUser int) (int, error) {
	var created []uuid.UUID
	for i := 1; i <= users; i++ {
		u := gen.User(i)
		txs, balance := gen.Transactions(u.ID, txPerUser)
		u.Balance = balance

		inserted, err := s.insertMockUser(ctx, u, txs)
		if err != nil {
			return len(created), err
		}
		if inserted {
			created = append(created, u.ID)
		}
	}
	if len(created) == 0 {
		s.logger.Info("mock users already present")
		return 0, nil
	}

	for i := 0; i < investments; i++ {
		inv := gen.Investment(created[gen.rng.IntN(len(created))])
		_, err := s.pool.Exec(ctx, `
			INSERT INTO investments (user_id, type, name, symbol, amount, start_date, end_date, initial_value, current_value, percentage_gain, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, inv.UserID, inv.Type, inv.Name, inv.Symbol, inv.Amount, inv.StartDate, inv.EndDate, inv.InitialValue, inv.CurrentValue, inv.PercentageGain, inv.Status)
		if err != nil {
			return len(created), fmt.Errorf("insert investment: %w", err)
		}
	}
	return len(created), nil
}

func (s *seeder) insertMockUser(ctx context.Context, u mockUser, txs []mockTransaction) (bool, error) {
	hash, err := hashPassword("password123", s.params)
	if err != nil {
		return false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, date_of_birth, phone_number, currency, address, role, status, balance, reference_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'user', $9, $10, $11, $12, $12)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`, u.ID, u.Email, hash, u.FullName, u.DateOfBirth, u.PhoneNumber, string(u.Currency), u.Address, u.Status, u.Balance, u.ReferenceCode, u.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", u.Email, err)
	}

	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(`
			INSERT INTO transactions (user_id, amount, type, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, t.UserID, t.Amount, t.Type, t.Status, t.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("insert transactions for %s: %w", u.Email, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
