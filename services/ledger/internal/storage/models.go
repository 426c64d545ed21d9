package storage

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
)

// Settlement is one completed transaction to apply to a user's balance.
type Settlement struct {
	EventID       string
	TransactionID uuid.UUID
	UserID        uuid.UUID
	Type          string
	Amount        decimal.Decimal
}

// Delta is the signed balance change: credit for deposits, debit for
// withdrawals.
func (s Settlement) Delta() decimal.Decimal {
	if s.Type == TypeWithdrawal {
		return s.Amount.Neg()
	}
	return s.Amount
}

type SettlementResult struct {
	UserID           uuid.UUID
	Delta            decimal.Decimal
	Balance          decimal.Decimal
	AlreadyProcessed bool
}
