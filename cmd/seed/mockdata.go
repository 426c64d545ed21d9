package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockUser struct {
	ID            uuid.UUID
	Email         string
	FullName      string
	DateOfBirth   time.Time
	PhoneNumber   string
	Currency      currency.Currency
	Address       string
	Status        string
	ReferenceCode string
	Balance       decimal.Decimal
	CreatedAt     time.Time
}

type mockInvestment struct {
	UserID         uuid.UUID
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
}

type mockTransaction struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      string
	Status    string
	CreatedAt time.Time
}

type mockHolding struct {
	Type   string
	Name   string
	Symbol string
}

var (
	firstNames = []string{"Olivia", "Noah", "Amelia", "Jack", "Isla", "Leo", "Ava", "Oscar", "Mia", "Harry", "Zara", "Ethan"}
	lastNames  = []string{"Smith", "Jones", "Taylor", "Brown", "Williams", "Wilson", "Khan", "Patel", "Martin", "Nguyen", "Walker", "Clarke"}
	streets    = []string{"High Street", "Station Road", "Church Lane", "Victoria Road", "King Street", "Park Avenue"}
	cities     = []string{"London", "Sydney", "Toronto", "New York", "Melbourne", "Vancouver", "Manchester"}

	holdings = []mockHolding{
		{"stock", "Apple Inc.", "AAPL"},
		{"stock", "Microsoft", "MSFT"},
		{"stock", "Tesla", "TSLA"},
		{"crypto", "Bitcoin", "BTC"},
		{"crypto", "Ethereum", "ETH"},
		{"crypto", "Solana", "SOL"},
		{"forex", "Euro / US Dollar", "EURUSD"},
		{"forex", "British Pound / US Dollar", "GBPUSD"},
		{"commodity", "Gold", "XAU"},
		{"commodity", "Crude Oil", "WTI"},
	}

	// completed is weighted three to one against each other status
	transactionStatuses = []string{"completed", "completed", "completed", "pending", "rejected"}
	userStatuses        = []string{"active", "active", "active", "pending", "suspended"}
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type mockGenerator struct {
	rng *rand.Rand
	now time.Time
}

func newMockGenerator(seed uint64, now time.Time) *mockGenerator {
	return &mockGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now}
}

func (g *mockGenerator) pick(items []string) string {
	return items[g.rng.IntN(len(items))]
}

// money returns a random amount in [min, max) rounded to cents.
func (g *mockGenerator) money(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + g.rng.Float64()*(max-min)).Round(2)
}

func (g *mockGenerator) daysAgo(maxDays int) time.Time {
	return g.now.Add(-time.Duration(g.rng.IntN(maxDays*24)) * time.Hour).Truncate(time.Hour)
}

func (g *mockGenerator) referenceCode() string {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = referenceAlphabet[g.rng.IntN(len(referenceAlphabet))]
	}
	return "TB-" + string(buf)
}

func (g *mockGenerator) User(n int) mockUser {
	first, last := g.pick(firstNames), g.pick(lastNames)
	currencies := currency.All()
	return mockUser{
		ID:            uuid.New(),
		Email:         fmt.Sprintf("mock-user-%02d@example.com", n),
		FullName:      first + " " + last,
		DateOfBirth:   time.Date(1960+g.rng.IntN(45), time.Month(1+g.rng.IntN(12)), 1+g.rng.IntN(28), 0, 0, 0, 0, time.UTC),
		PhoneNumber:   fmt.Sprintf("+1 555 %03d %04d", g.rng.IntN(1000), g.rng.IntN(10000)),
		Currency:      currencies[g.rng.IntN(len(currencies))],
		Address:       fmt.Sprintf("%d %s, %s", 1+g.rng.IntN(200), g.pick(streets), g.pick(cities)),
		Status:        g.pick(userStatuses),
		ReferenceCode: g.referenceCode(),
		Balance:       decimal.Zero,
		CreatedAt:     g.daysAgo(365),
	}
}

// Investment returns a holding whose current value is derived from its
// initial value and percentage gain.
func (g *mockGenerator) Investment(userID uuid.UUID) mockInvestment {
	h := holdings[g.rng.IntN(len(holdings))]
	start := g.daysAgo(365)
	end := start.AddDate(0, 1+g.rng.IntN(24), 0)
	initial := g.money(500, 50000)
	gain := decimal.NewFromFloat(-30 + g.rng.Float64()*80).Round(2)
	current := initial.Mul(decimal.NewFromInt(1).Add(gain.Div(decimal.NewFromInt(100)))).Round(2)

	status := "active"
	if end.Before(g.now) {
		status = "closed"
	}
	return mockInvestment{
		UserID:         userID,
		Type:           h.Type,
		Name:           h.Name,
		Symbol:         h.Symbol,
		Amount:         decimal.NewFromFloat(0.01 + g.rng.Float64()*100).Round(4),
		StartDate:      start,
		EndDate:        end,
		InitialValue:   initial,
		CurrentValue:   current,
		PercentageGain: gain,
		Status:         status,
	}
}

// Transactions returns n transactions in chronological order together with
// the balance they settle to. A completed withdrawal never exceeds the
// running balance; one that would is recorded as a deposit instead.
func (g *mockGenerator) Transactions(userID uuid.UUID, n int) ([]mockTransaction, decimal.Decimal) {
	at := g.now.AddDate(0, 0, -n*7)
	balance := decimal.Zero
	out := make([]mockTransaction, 0, n)
	for i := 0; i < n; i++ {
		at = at.Add(time.Duration(1+g.rng.IntN(7*24)) * time.Hour)
		tx := mockTransaction{
			UserID:    userID,
			Amount:    g.money(50, 5000),
			Type:      "deposit",
			Status:    g.pick(transactionStatuses),
			CreatedAt: at,
		}
		if g.rng.IntN(3) == 0 && tx.Amount.LessThanOrEqual(balance) {
			tx.Type = "withdrawal"
		}
		if tx.Status == "completed" {
			if tx.Type == "withdrawal" {
				balance = balance.Sub(tx.Amount)
			} else {
				balance = balance.Add(tx.Amount)
			}
		}
		out = append(out, tx)
	}
	return out, balance
}
