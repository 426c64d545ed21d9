package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotPending          = errors.New("transaction is not pending")
	ErrUserNotActive       = errors.New("user is not active")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// reservedWithdrawals is the total a user has committed to withdraw but the
// ledger has not yet debited: pending requests plus completed ones whose
// settlement event is still in flight.
const reservedWithdrawals = `
	SELECT COALESCE(SUM(t.amount), 0)
	FROM transactions t
	WHERE t.user_id = $1 AND t.type = 'withdrawal'
	  AND (t.status = 'pending'
	       OR (t.status = 'completed' AND NOT EXISTS (
	           SELECT 1 FROM processed_events pe WHERE pe.transaction_id = t.id)))
`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `id, email, full_name, date_of_birth, phone_number, currency, address, role, status, balance, reference_code, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.DateOfBirth, &u.PhoneNumber, &u.Currency, &u.Address, &u.Role, &u.Status, &u.Balance, &u.ReferenceCode, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Currency = strings.TrimSpace(u.Currency)
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
}

// SearchUsers matches search case-insensitively against full name and email.
func (s *Store) SearchUsers(ctx context.Context, search string, limit int) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR full_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, escapeLike(search), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, upd UserUpdate) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		UPDATE users
		SET balance = COALESCE($2, balance),
		    status = COALESCE($3, status),
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+userColumns, id, upd.Balance, upd.Status))
}

// DeleteUser soft-deletes the user and revokes every refresh token.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET deleted_at = now(), status = 'suspended', email = email || '.deleted.' || id::text, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Totals(ctx context.Context, userID uuid.UUID) (Totals, error) {
	var t Totals
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit' AND status = 'completed'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal' AND status = 'completed'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal' AND status = 'pending'), 0)
		FROM transactions
		WHERE user_id = $1
	`, userID).Scan(&t.Deposits, &t.Withdrawals, &t.PendingWithdrawals)
	if err != nil {
		return Totals{}, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(current_value), 0)
		FROM investments
		WHERE user_id = $1 AND status = 'active'
	`, userID).Scan(&t.InvestedValue)
	if err != nil {
		return Totals{}, err
	}
	return t, nil
}

const txColumns = `id, user_id, amount, type, status, created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns newest first with keyset pagination.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, string, error) {
	limit := clampLimit(f.Limit)

	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Cursor != "" {
		ts, id, err := decodeCursor(f.Cursor)
		if err != nil {
			return nil, "", err
		}
		args = append(args, ts, id)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	items := make([]Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, "", err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(items) > limit {
		items = items[:limit]
		last := items[limit-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return items, nextCursor, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
}

// CreateWithdrawal locks the user row so concurrent requests cannot both pass
// the available balance check.
func (s *Store) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var status string
	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT status, balance FROM users WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, userID).Scan(&status, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != UserActive {
		return nil, ErrUserNotActive
	}

	var reserved decimal.Decimal
	if err := tx.QueryRow(ctx, reservedWithdrawals, userID).Scan(&reserved); err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance.Sub(reserved)) {
		return nil, ErrInsufficientBalance
	}

	t, err := scanTransaction(tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, type, status, created_at, updated_at)
		VALUES ($1, $2, 'withdrawal', 'pending', now(), now())
		RETURNING `+txColumns, userID, amount))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, type, status, created_at, updated_at)
		SELECT id, $2, 'deposit', 'pending', now(), now()
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+txColumns, userID, amount))
}

// SettleTransaction moves a pending transaction to completed or rejected.
// Completing a withdrawal re-checks that the balance still covers it.
func (s *Store) SettleTransaction(ctx context.Context, id uuid.UUID, status string) (*Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if current.Status != TxPending {
		return nil, ErrNotPending
	}

	if status == TxCompleted && current.Type == TxWithdrawal {
		var balance decimal.Decimal
		if err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, current.UserID).Scan(&balance); err != nil {
			return nil, err
		}
		var reserved decimal.Decimal
		if err := tx.QueryRow(ctx, reservedWithdrawals, current.UserID).Scan(&reserved); err != nil {
			return nil, err
		}
		// reserved already includes this pending request
		if reserved.GreaterThan(balance) {
			return nil, ErrInsufficientBalance
		}
	}

	settled, err := scanTransaction(tx.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+txColumns, id, status))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return settled, nil
}

const investmentColumns = `i.id, i.user_id, COALESCE(u.full_name, ''), i.type, i.name, i.symbol, i.amount, i.start_date, i.end_date,
	i.initial_value, i.current_value, i.percentage_gain, i.status, i.created_at, i.updated_at`

func scanInvestment(row pgx.Row) (*Investment, error) {
	var inv Investment
	if err := row.Scan(&inv.ID, &inv.UserID, &inv.OwnerName, &inv.Type, &inv.Name, &inv.Symbol, &inv.Amount, &inv.StartDate, &inv.EndDate,
		&inv.InitialValue, &inv.CurrentValue, &inv.PercentageGain, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *Store) queryInvestments(ctx context.Context, query string, args ...any) ([]Investment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *Store) ListInvestments(ctx context.Context, userID uuid.UUID) ([]Investment, error) {
	return s.queryInvestments(ctx, `
		SELECT `+investmentColumns+`
		FROM investments i
		JOIN users u ON u.id = i.user_id
		WHERE i.user_id = $1
		ORDER BY i.status, i.start_date DESC, i.id
	`, userID)
}

// SearchInvestments matches name, symbol or owner name.
func (s *Store) SearchInvestments(ctx context.Context, search string, limit int) ([]Investment, error) {
	return s.queryInvestments(ctx, `
		SELECT `+investmentColumns+`
		FROM investments i
		JOIN users u ON u.id = i.user_id
		WHERE $1 = '' OR i.name ILIKE '%' || $1 || '%' OR i.symbol ILIKE '%' || $1 || '%' OR u.full_name ILIKE '%' || $1 || '%'
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT $2
	`, escapeLike(search), clampLimit(limit))
}

func (s *Store) GetInvestment(ctx context.Context, id uuid.UUID) (*Investment, error) {
	return scanInvestment(s.pool.QueryRow(ctx, `
		SELECT `+investmentColumns+`
		FROM investments i
		JOIN users u ON u.id = i.user_id
		WHERE i.id = $1
	`, id))
}

func (s *Store) CreateInvestment(ctx context.Context, inv Investment) (*Investment, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO investments (user_id, type, name, symbol, amount, start_date, end_date, initial_value, current_value, percentage_gain, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING id
	`, inv.UserID, inv.Type, inv.Name, inv.Symbol, inv.Amount, inv.StartDate, inv.EndDate, inv.InitialValue, inv.CurrentValue, inv.PercentageGain, inv.Status).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetInvestment(ctx, id)
}

func (s *Store) UpdateInvestment(ctx context.Context, inv Investment) (*Investment, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE investments
		SET user_id = $2, type = $3, name = $4, symbol = $5, amount = $6, start_date = $7, end_date = $8,
		    initial_value = $9, current_value = $10, percentage_gain = $11, status = $12, updated_at = now()
		WHERE id = $1
	`, inv.ID, inv.UserID, inv.Type, inv.Name, inv.Symbol, inv.Amount, inv.StartDate, inv.EndDate, inv.InitialValue, inv.CurrentValue, inv.PercentageGain, inv.Status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetInvestment(ctx, inv.ID)
}

func (s *Store) GetBankDetails(ctx context.Context, userID uuid.UUID) (*BankAccount, error) {
	var acc BankAccount
	var cur string
	d := &acc.Details
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, currency, account_name, account_number, sort_code, bsb, institution_number,
		       branch_transit_number, bic, bank_address, routing_number, updated_at
		FROM bank_details
		WHERE user_id = $1
	`, userID).Scan(&acc.UserID, &cur, &d.AccountName, &d.AccountNumber, &d.SortCode, &d.BSB, &d.InstitutionNumber,
		&d.BranchTransitNumber, &d.BIC, &d.BankAddress, &d.RoutingNumber, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Currency = currency.Currency(strings.TrimSpace(cur))
	return &acc, nil
}

func (s *Store) UpsertBankDetails(ctx context.Context, userID uuid.UUID, d bankdetails.BankDetails) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bank_details (user_id, currency, account_name, account_number, sort_code, bsb, institution_number,
		                          branch_transit_number, bic, bank_address, routing_number, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (user_id) DO UPDATE
		SET currency = EXCLUDED.currency,
		    account_name = EXCLUDED.account_name,
		    account_number = EXCLUDED.account_number,
		    sort_code = EXCLUDED.sort_code,
		    bsb = EXCLUDED.bsb,
		    institution_number = EXCLUDED.institution_number,
		    branch_transit_number = EXCLUDED.branch_transit_number,
		    bic = EXCLUDED.bic,
		    bank_address = EXCLUDED.bank_address,
		    routing_number = EXCLUDED.routing_number,
		    updated_at = EXCLUDED.updated_at
	`, userID, d.Currency.String(), d.AccountName, d.AccountNumber, d.SortCode, d.BSB, d.InstitutionNumber,
		d.BranchTransitNumber, d.BIC, d.BankAddress, d.RoutingNumber)
	return err
}

func (s *Store) InsertAudit(ctx context.Context, log AuditLog) error {
	details := log.Details
	if details == nil {
		details = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, log.ActorID, log.Action, log.EntityType, log.EntityID, details)
	return err
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{UsersByStatus: map[string]int{UserPending: 0, UserActive: 0, UserSuspended: 0}}
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM users WHERE deleted_at IS NULL AND role = 'user' GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return Stats{}, err
		}
		stats.UsersByStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM investments WHERE status = 'active'),
			(SELECT COUNT(*) FROM transactions WHERE status = 'pending')
	`).Scan(&stats.ActiveInvestments, &stats.PendingTransactions)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func escapeLike(s string) string {
	s = strings.TrimSpace(s)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
