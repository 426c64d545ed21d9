package handlers

import (
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/format"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/service"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type userView struct {
	ID             uuid.UUID       `json:"id"`
	Email          string          `json:"email"`
	FullName       string          `json:"fullName"`
	DateOfBirth    string          `json:"dateOfBirth,omitempty"`
	PhoneNumber    string          `json:"phoneNumber"`
	Currency       string          `json:"currency"`
	Address        string          `json:"address"`
	Role           string          `json:"role"`
	Status         string          `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	BalanceDisplay string          `json:"balanceDisplay"`
	ReferenceCode  string          `json:"referenceCode"`
	CreatedAt      string          `json:"createdAt"`
}

func newUserView(u storage.User) userView {
	v := userView{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		PhoneNumber:    u.PhoneNumber,
		Currency:       u.Currency,
		Address:        u.Address,
		Role:           u.Role,
		Status:         u.Status,
		Balance:        u.Balance,
		BalanceDisplay: format.Currency(u.Balance, currency.Currency(u.Currency)),
		ReferenceCode:  u.ReferenceCode,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.DateOfBirth != nil {
		v.DateOfBirth = u.DateOfBirth.Format(dateLayout)
	}
	return v
}

type transactionView struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"userId"`
	Amount           decimal.Decimal `json:"amount"`
	AmountDisplay    string          `json:"amountDisplay,omitempty"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	CreatedAt        string          `json:"createdAt"`
	CreatedAtDisplay string          `json:"createdAtDisplay"`
	UpdatedAt        string          `json:"updatedAt"`
}

// newTransactionView renders t; the amount display is omitted when c is empty.
func newTransactionView(t storage.Transaction, c currency.Currency) transactionView {
	v := transactionView{
		ID:               t.ID,
		UserID:           t.UserID,
		Amount:           t.Amount,
		Type:             t.Type,
		Status:           t.Status,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
		CreatedAtDisplay: format.DateTime(t.CreatedAt),
		UpdatedAt:        t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if c != "" {
		v.AmountDisplay = format.Currency(t.Amount, c)
	}
	return v
}

func transactionViews(items []storage.Transaction, c currency.Currency) []transactionView {
	out := make([]transactionView, 0, len(items))
	for _, t := range items {
		out = append(out, newTransactionView(t, c))
	}
	return out
}

type investmentDisplay struct {
	InitialValue   string `json:"initialValue,omitempty"`
	CurrentValue   string `json:"currentValue,omitempty"`
	PercentageGain string `json:"percentageGain"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
}

type investmentView struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"userId"`
	OwnerName      string            `json:"ownerName,omitempty"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	Symbol         string            `json:"symbol"`
	Amount         decimal.Decimal   `json:"amount"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	InitialValue   decimal.Decimal   `json:"initialValue"`
	CurrentValue   decimal.Decimal   `json:"currentValue"`
	PercentageGain decimal.Decimal   `json:"percentageGain"`
	Status         string            `json:"status"`
	Display        investmentDisplay `json:"display"`
}

func newInvestmentView(inv storage.Investment, c currency.Currency) investmentView {
	v := investmentView{
		ID:             inv.ID,
		UserID:         inv.UserID,
		OwnerName:      inv.OwnerName,
		Type:           inv.Type,
		Name:           inv.Name,
		Symbol:         inv.Symbol,
		Amount:         inv.Amount,
		StartDate:      inv.StartDate.Format(dateLayout),
		EndDate:        inv.EndDate.Format(dateLayout),
		InitialValue:   inv.InitialValue,
		CurrentValue:   inv.CurrentValue,
		PercentageGain: inv.PercentageGain,
		Status:         inv.Status,
		Display: investmentDisplay{
			PercentageGain: format.PercentageDecimal(inv.PercentageGain),
			StartDate:      format.Date(inv.StartDate),
			EndDate:        format.Date(inv.EndDate),
		},
	}
	if c != "" {
		v.Display.InitialValue = format.Currency(inv.InitialValue, c)
		v.Display.CurrentValue = format.Currency(inv.CurrentValue, c)
	}
	return v
}

func investmentViews(items []storage.Investment, c currency.Currency) []investmentView {
	out := make([]investmentView, 0, len(items))
	for _, inv := range items {
		out = append(out, newInvestmentView(inv, c))
	}
	return out
}

type amountView struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

func amount(d decimal.Decimal, c currency.Currency) amountView {
	return amountView{Value: d.Round(2), Display: format.Currency(d, c)}
}

type summaryView struct {
	Currency            string     `json:"currency"`
	TotalDeposits       amountView `json:"totalDeposits"`
	TotalWithdrawals    amountView `json:"totalWithdrawals"`
	PendingWithdrawals  amountView `json:"pendingWithdrawals"`
	CashBalance         amountView `json:"cashBalance"`
	InvestedValue       amountView `json:"investedValue"`
	CurrentBalance      amountView `json:"currentBalance"`
	TotalGainPercentage float64    `json:"totalGainPercentage"`
	TotalGainDisplay    string     `json:"totalGainDisplay"`
}

func newSummaryView(s service.Summary) summaryView {
	return summaryView{
		Currency:            s.Currency.String(),
		TotalDeposits:       amount(s.TotalDeposits, s.Currency),
		TotalWithdrawals:    amount(s.TotalWithdrawals, s.Currency),
		PendingWithdrawals:  amount(s.PendingWithdrawals, s.Currency),
		CashBalance:         amount(s.CashBalance, s.Currency),
		InvestedValue:       amount(s.InvestedValue, s.Currency),
		CurrentBalance:      amount(s.CurrentBalance, s.Currency),
		TotalGainPercentage: s.TotalGainPercentage,
		TotalGainDisplay:    format.Percentage(s.TotalGainPercentage),
	}
}

type walletView struct {
	Details bankdetails.BankDetails `json:"details"`
	Fields  []bankdetails.Field     `json:"fields"`
	Labels  map[string]string       `json:"labels"`
}

func newWalletView(w service.WalletDetails) walletView {
	return walletView{
		Details: w.Details,
		Fields:  w.Fields,
		Labels:  bankdetails.Labels(w.Details.Currency),
	}
}

type bankAccountView struct {
	Details   bankdetails.BankDetails `json:"details"`
	Fields    []bankdetails.Field     `json:"fields"`
	UpdatedAt string                  `json:"updatedAt,omitempty"`
}

func newBankAccountView(d bankdetails.BankDetails, updatedAt time.Time) bankAccountView {
	v := bankAccountView{Details: d, Fields: bankdetails.Fields(d.Currency)}
	if !updatedAt.IsZero() {
		v.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	}
	return v
}
