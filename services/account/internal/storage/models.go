package storage

import (
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	UserPending   = "pending"
	UserActive    = "active"
	UserSuspended = "suspended"

	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"

	TxPending   = "pending"
	TxCompleted = "completed"
	TxRejected  = "rejected"

	InvestmentActive = "active"
	InvestmentClosed = "closed"
)

var investmentTypes = map[string]bool{"stock": true, "crypto": true, "forex": true, "commodity": true}

func ValidInvestmentType(t string) bool { return investmentTypes[t] }

func ValidUserStatus(s string) bool {
	return s == UserPending || s == UserActive || s == UserSuspended
}

func ValidTxType(t string) bool { return t == TxDeposit || t == TxWithdrawal }

func ValidTxStatus(s string) bool {
	return s == TxPending || s == TxCompleted || s == TxRejected
}

type User struct {
	ID            uuid.UUID
	Email         string
	FullName      string
	DateOfBirth   *time.Time
	PhoneNumber   string
	Currency      string
	Address       string
	Role          string
	Status        string
	Balance       decimal.Decimal
	ReferenceCode string
	CreatedAt     time.Time
}

type Transaction struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Investment is a holding managed by an admin. CurrentValue is always derived
// from InitialValue and PercentageGain; use NewInvestment or Recompute.
type Investment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	OwnerName      string
	Type           string
	Name           string
	Symbol         string
	Amount         decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	InitialValue   decimal.Decimal
	CurrentValue   decimal.Decimal
	PercentageGain decimal.Decimal
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type InvestmentInput struct {
	UserID         uuid.UUID
	Type           string
	Name           string
	Symbol         string
	Amount         decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	InitialValue   decimal.Decimal
	PercentageGain decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ValidateInvestment checks the admin form rules shared by create and edit.
func ValidateInvestment(in InvestmentInput) error {
	var v apperr.Validator
	v.Check(in.UserID != uuid.Nil, "userId", "is required")
	v.Check(ValidInvestmentType(in.Type), "type", "must be stock, crypto, forex or commodity")
	v.Check(in.Name != "", "name", "is required")
	v.Check(in.Symbol != "", "symbol", "is required")
	v.Check(in.Amount.IsPositive(), "amount", "must be greater than 0")
	v.Check(in.InitialValue.IsPositive(), "initialValue", "must be greater than 0")
	v.Check(in.PercentageGain.GreaterThanOrEqual(hundred.Neg()), "percentageGain", "must be at least -100")
	v.Check(!in.StartDate.IsZero(), "startDate", "is required")
	v.Check(!in.EndDate.IsZero(), "endDate", "is required")
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() {
		v.Check(!in.EndDate.Before(in.StartDate), "endDate", "must not be before startDate")
	}
	return v.Err()
}

func NewInvestment(in InvestmentInput) (Investment, error) {
	if err := ValidateInvestment(in); err != nil {
		return Investment{}, err
	}
	inv := Investment{
		UserID:         in.UserID,
		Status:         InvestmentActive,
		Type:           in.Type,
		Name:           in.Name,
		Symbol:         in.Symbol,
		Amount:         in.Amount,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		InitialValue:   in.InitialValue,
		PercentageGain: in.PercentageGain,
	}
	inv.Recompute()
	return inv, nil
}

// Apply overwrites the editable fields and recomputes the current value.
func (i *Investment) Apply(in InvestmentInput) error {
	if err := ValidateInvestment(in); err != nil {
		return err
	}
	i.UserID = in.UserID
	i.Type = in.Type
	i.Name = in.Name
	i.Symbol = in.Symbol
	i.Amount = in.Amount
	i.StartDate = in.StartDate
	i.EndDate = in.EndDate
	i.InitialValue = in.InitialValue
	i.PercentageGain = in.PercentageGain
	i.Recompute()
	return nil
}

// Recompute sets CurrentValue = InitialValue * (1 + PercentageGain/100),
// rounded to cents.
func (i *Investment) Recompute() {
	factor := decimal.NewFromInt(1).Add(i.PercentageGain.Div(hundred))
	i.CurrentValue = i.InitialValue.Mul(factor).Round(2)
}

type BankAccount struct {
	UserID    uuid.UUID
	Details   bankdetails.BankDetails
	UpdatedAt time.Time
}

type AuditLog struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Details    map[string]any
}

type TransactionFilter struct {
	UserID *uuid.UUID
	Type   string
	Status string
	Limit  int
	Cursor string
}

type UserUpdate struct {
	Balance *decimal.Decimal
	Status  *string
}

type Totals struct {
	Deposits           decimal.Decimal
	Withdrawals        decimal.Decimal
	PendingWithdrawals decimal.Decimal
	InvestedValue      decimal.Decimal
}

type Stats struct {
	UsersByStatus       map[string]int
	ActiveInvestments   int
	PendingTransactions int
}
