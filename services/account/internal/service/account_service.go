package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*storage.User, error)
	SearchUsers(ctx context.Context, search string, limit int) ([]storage.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, upd storage.UserUpdate) (*storage.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Totals(ctx context.Context, userID uuid.UUID) (storage.Totals, error)

	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]storage.Transaction, string, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*storage.Transaction, error)
	CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error)
	CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error)
	SettleTransaction(ctx context.Context, id uuid.UUID, status string) (*storage.Transaction, error)

	ListInvestments(ctx context.Context, userID uuid.UUID) ([]storage.Investment, error)
	SearchInvestments(ctx context.Context, search string, limit int) ([]storage.Investment, error)
	GetInvestment(ctx context.Context, id uuid.UUID) (*storage.Investment, error)
	CreateInvestment(ctx context.Context, inv storage.Investment) (*storage.Investment, error)
	UpdateInvestment(ctx context.Context, inv storage.Investment) (*storage.Investment, error)

	GetBankDetails(ctx context.Context, userID uuid.UUID) (*storage.BankAccount, error)
	UpsertBankDetails(ctx context.Context, userID uuid.UUID, d bankdetails.BankDetails) error

	InsertAudit(ctx context.Context, log storage.AuditLog) error
	Stats(ctx context.Context) (storage.Stats, error)
}

type Options struct {
	PlatformAccounts map[currency.Currency]bankdetails.BankDetails
	SearchLimit      int
}

type AccountService struct {
	store     Store
	publisher kafka.Publisher
	logger    *slog.Logger
	metrics   *Metrics
	platform  map[currency.Currency]bankdetails.BankDetails
	limit     int
}

func NewAccountService(store Store, publisher kafka.Publisher, logger *slog.Logger, metrics *Metrics, opts Options) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	return &AccountService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		platform:  opts.PlatformAccounts,
		limit:     opts.SearchLimit,
	}
}

// Summary is the dashboard portfolio overview. Amounts are in the user's
// account currency.
type Summary struct {
	Currency            currency.Currency
	TotalDeposits       decimal.Decimal
	TotalWithdrawals    decimal.Decimal
	PendingWithdrawals  decimal.Decimal
	CashBalance         decimal.Decimal
	InvestedValue       decimal.Decimal
	CurrentBalance      decimal.Decimal
	TotalGainPercentage float64
}

type WalletDetails struct {
	Details bankdetails.BankDetails
	Fields  []bankdetails.Field
}

func (s *AccountService) Profile(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "user")
	}
	return user, nil
}

func (s *AccountService) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	totals, err := s.store.Totals(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("portfolio totals: %w", err)
	}
	return summarize(user, totals), nil
}

func summarize(user *storage.User, totals storage.Totals) Summary {
	sum := Summary{
		Currency:           currency.Currency(user.Currency),
		TotalDeposits:      totals.Deposits,
		TotalWithdrawals:   totals.Withdrawals,
		PendingWithdrawals: totals.PendingWithdrawals,
		CashBalance:        user.Balance,
		InvestedValue:      totals.InvestedValue,
		CurrentBalance:     user.Balance.Add(totals.InvestedValue),
	}
	net := totals.Deposits.Sub(totals.Withdrawals)
	if net.IsPositive() {
		gain := sum.CurrentBalance.Sub(net).Div(net).Mul(decimal.NewFromInt(100))
		sum.TotalGainPercentage = gain.Round(4).InexactFloat64()
	}
	return sum
}

func (s *AccountService) Transactions(ctx context.Context, f storage.TransactionFilter) ([]storage.Transaction, string, error) {
	if f.Type != "" && !storage.ValidTxType(f.Type) {
		return nil, "", apperr.Field("type", "must be deposit or withdrawal")
	}
	if f.Status != "" && !storage.ValidTxStatus(f.Status) {
		return nil, "", apperr.Field("status", "must be pending, completed or rejected")
	}
	items, next, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, "", mapStoreErr(err, "transactions")
	}
	return items, next, nil
}

// RequestWithdrawal records a pending withdrawal. The amount must be covered
// by the balance left after other outstanding withdrawals.
func (s *AccountService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if !amount.IsPositive() {
		s.metrics.withdrawal("invalid")
		return nil, apperr.Field("amount", "must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		s.metrics.withdrawal("invalid")
		return nil, apperr.Field("amount", "must have at most 2 decimal places")
	}

	tx, err := s.store.CreateWithdrawal(ctx, userID, amount)
	if err != nil {
		s.metrics.withdrawal("rejected")
		return nil, mapStoreErr(err, "user")
	}
	s.metrics.withdrawal("accepted")
	s.logger.Info("withdrawal requested",
		slog.String("user_id", userID.String()),
		slog.String("transaction_id", tx.ID.String()),
		slog.String("amount", amount.StringFixed(2)),
	)
	return tx, nil
}

// Wallet returns the platform account for the user's currency with the
// user's reference code filled in.
func (s *AccountService) Wallet(ctx context.Context, userID uuid.UUID) (WalletDetails, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return WalletDetails{}, err
	}
	c, err := currency.Parse(user.Currency)
	if err != nil {
		return WalletDetails{}, fmt.Errorf("user %s: %w", user.ID, err)
	}
	acc, ok := s.platform[c]
	if !ok {
		return WalletDetails{}, fmt.Errorf("no platform account configured for %s", c)
	}
	acc.Reference = user.ReferenceCode
	return WalletDetails{Details: acc, Fields: bankdetails.Fields(c)}, nil
}

func (s *AccountService) Investments(ctx context.Context, userID uuid.UUID) ([]storage.Investment, error) {
	items, err := s.store.ListInvestments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	return items, nil
}

func mapStoreErr(err error, what string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, storage.ErrInsufficientBalance):
		return apperr.Conflict("INSUFFICIENT_BALANCE", "amount exceeds available balance")
	case errors.Is(err, storage.ErrUserNotActive):
		return apperr.Forbidden("only active accounts can withdraw")
	case errors.Is(err, storage.ErrNotPending):
		return apperr.Conflict("", "transaction is not pending")
	case errors.Is(err, storage.ErrInvalidCursor):
		return apperr.Field("cursor", "is invalid")
	default:
		return err
	}
}
