package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/service"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/faisalantu/tradebridge-systems/services/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testSecret = []byte("test-secret")

// fakeAccounts implements the methods these tests exercise; the embedded
// interface panics on anything else.
type fakeAccounts struct {
	Accounts

	user        *storage.User
	withdrawErr error
	withdrawn   decimal.Decimal
	filter      storage.TransactionFilter
	created     *storage.InvestmentInput
	settled     string
	actor       service.Actor
}

func (f *fakeAccounts) Profile(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, apperr.NotFound("user")
	}
	cp := *f.user
	return &cp, nil
}

func (f *fakeAccounts) Summary(ctx context.Context, userID uuid.UUID) (service.Summary, error) {
	return service.Summary{
		Currency:            currency.GBP,
		TotalDeposits:       decimal.RequireFromString("1000"),
		CashBalance:         decimal.RequireFromString("1234.5"),
		CurrentBalance:      decimal.RequireFromString("1234.5"),
		TotalGainPercentage: 23.45,
	}, nil
}

func (f *fakeAccounts) Transactions(ctx context.Context, filter storage.TransactionFilter) ([]storage.Transaction, string, error) {
	f.filter = filter
	now := time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)
	return []storage.Transaction{
		{ID: uuid.New(), UserID: f.user.ID, Amount: decimal.RequireFromString("250"), Type: storage.TxDeposit, Status: storage.TxCompleted, CreatedAt: now, UpdatedAt: now},
	}, "next-page", nil
}

func (f *fakeAccounts) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	f.withdrawn = amount
	return &storage.Transaction{ID: uuid.New(), UserID: userID, Amount: amount, Type: storage.TxWithdrawal, Status: storage.TxPending}, nil
}

func (f *fakeAccounts) Wallet(ctx context.Context, userID uuid.UUID) (service.WalletDetails, error) {
	return service.WalletDetails{
		Details: bankdetails.BankDetails{Currency: currency.AUD, AccountName: "TradeBridge Systems Ltd", BSB: "062-000", AccountNumber: "12345678", Reference: "TB-DEMO0001"},
		Fields:  bankdetails.Fields(currency.AUD),
	}, nil
}

func (f *fakeAccounts) Stats(ctx context.Context) (storage.Stats, error) {
	return storage.Stats{UsersByStatus: map[string]int{"active": 3, "pending": 2}, ActiveInvestments: 4, PendingTransactions: 1}, nil
}

func (f *fakeAccounts) CreateInvestment(ctx context.Context, actor service.Actor, in storage.InvestmentInput) (*storage.Investment, error) {
	f.actor = actor
	f.created = &in
	inv, err := storage.NewInvestment(in)
	if err != nil {
		return nil, err
	}
	inv.ID = uuid.New()
	return &inv, nil
}

func (f *fakeAccounts) SettleTransaction(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*storage.Transaction, error) {
	f.actor = actor
	f.settled = status
	return &storage.Transaction{ID: id, Status: status, Type: storage.TxDeposit}, nil
}

func setupRouter(accounts Accounts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(accounts, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r, testSecret)
	return r
}

func userToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	tok, err := testutil.GenerateJWT(id, testSecret, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func adminToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	tok, err := testutil.GenerateAdminJWT(id, testSecret, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func demoUser() *storage.User {
	return &storage.User{
		ID:            uuid.New(),
		Email:         "demo@tradebridge.com",
		FullName:      "Demo User",
		Currency:      "USD",
		Role:          "user",
		Status:        storage.UserActive,
		Balance:       decimal.RequireFromString("1234.5"),
		ReferenceCode: "TB-DEMO0001",
	}
}

func TestMeRequiresToken(t *testing.T) {
	r := setupRouter(&fakeAccounts{})
	if w := do(r, http.MethodGet, "/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMeFormatsBalance(t *testing.T) {
	user := demoUser()
	r := setupRouter(&fakeAccounts{user: user})

	w := do(r, http.MethodGet, "/me", userToken(t, user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["balance"] != "1234.5" || resp["balanceDisplay"] != "$1,234.50" {
		t.Fatalf("unexpected balance fields: %v", resp)
	}
	if resp["referenceCode"] != "TB-DEMO0001" {
		t.Fatalf("unexpected reference: %v", resp["referenceCode"])
	}
}

func TestPortfolioSummary(t *testing.T) {
	user := demoUser()
	r := setupRouter(&fakeAccounts{user: user})

	w := do(r, http.MethodGet, "/portfolio/summary", userToken(t, user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp summaryView
	decode(t, w, &resp)
	if resp.CurrentBalance.Display != "£1,234.50" {
		t.Fatalf("unexpected display %q", resp.CurrentBalance.Display)
	}
	if resp.TotalGainDisplay != "+23.45%" {
		t.Fatalf("unexpected gain display %q", resp.TotalGainDisplay)
	}
}

func TestTransactionsPassesFilter(t *testing.T) {
	user := demoUser()
	fake := &fakeAccounts{user: user}
	r := setupRouter(fake)

	w := do(r, http.MethodGet, "/transactions?type=deposit&status=completed&limit=5&cursor=abc", userToken(t, user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fake.filter.UserID == nil || *fake.filter.UserID != user.ID {
		t.Fatalf("expected filter scoped to caller")
	}
	if fake.filter.Type != "deposit" || fake.filter.Status != "completed" || fake.filter.Limit != 5 || fake.filter.Cursor != "abc" {
		t.Fatalf("unexpected filter %+v", fake.filter)
	}

	var resp transactionsResponse
	decode(t, w, &resp)
	if resp.NextCursor != "next-page" || len(resp.Transactions) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	tx := resp.Transactions[0]
	if tx.AmountDisplay != "$250.00" || tx.CreatedAtDisplay != "Jan 5, 2025, 02:30 PM" {
		t.Fatalf("unexpected display fields %+v", tx)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	user := demoUser()
	fake := &fakeAccounts{user: user, withdrawErr: apperr.Conflict("INSUFFICIENT_BALANCE", "amount exceeds available balance")}
	r := setupRouter(fake)

	w := do(r, http.MethodPost, "/withdrawals", userToken(t, user.ID), map[string]string{"amount": "5000"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var resp apperr.Response
	decode(t, w, &resp)
	if resp.Code != "INSUFFICIENT_BALANCE" {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %s", resp.Code)
	}
}

func TestWithdrawCreated(t *testing.T) {
	user := demoUser()
	fake := &fakeAccounts{user: user}
	r := setupRouter(fake)

	w := do(r, http.MethodPost, "/withdrawals", userToken(t, user.ID), map[string]any{"amount": 75.25})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !fake.withdrawn.Equal(decimal.RequireFromString("75.25")) {
		t.Fatalf("unexpected amount %s", fake.withdrawn)
	}

	if w := do(r, http.MethodPost, "/withdrawals", userToken(t, user.ID), map[string]any{"amount": "abc"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed amount, got %d", w.Code)
	}
}

func TestWalletReturnsLabels(t *testing.T) {
	user := demoUser()
	r := setupRouter(&fakeAccounts{user: user})

	w := do(r, http.MethodGet, "/wallet/bank-details", userToken(t, user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp walletView
	decode(t, w, &resp)
	if len(resp.Labels) != 3 || resp.Labels[bankdetails.KeyBSB] != "BSB" {
		t.Fatalf("unexpected labels %v", resp.Labels)
	}
	if resp.Details.Reference != "TB-DEMO0001" {
		t.Fatalf("unexpected reference %q", resp.Details.Reference)
	}
	if resp.Fields[1].Key != bankdetails.KeyBSB {
		t.Fatalf("expected field order from table, got %+v", resp.Fields)
	}
}

func TestAdminRouteRejectsUserToken(t *testing.T) {
	user := demoUser()
	r := setupRouter(&fakeAccounts{user: user})

	w := do(r, http.MethodGet, "/admin/stats", userToken(t, user.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin/stats", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestAdminStats(t *testing.T) {
	r := setupRouter(&fakeAccounts{})

	w := do(r, http.MethodGet, "/admin/stats", adminToken(t, uuid.New()), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp statsResponse
	decode(t, w, &resp)
	if resp.TotalUsers != 5 || resp.ActiveInvestments != 4 || resp.PendingTransactions != 1 {
		t.Fatalf("unexpected stats %+v", resp)
	}
}

func TestAdminCreateInvestment(t *testing.T) {
	fake := &fakeAccounts{}
	r := setupRouter(fake)
	adminID := uuid.New()
	ownerID := uuid.New()

	body := map[string]any{
		"userId":         ownerID.String(),
		"type":           "Stock",
		"name":           "Apple Inc.",
		"symbol":         "aapl",
		"amount":         "10",
		"startDate":      "2024-01-15",
		"endDate":        "2025-01-15",
		"initialValue":   "1500",
		"percentageGain": "12.5",
		"currentValue":   "999999",
	}
	w := do(r, http.MethodPost, "/admin/investments", adminToken(t, adminID), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if fake.actor.ID != adminID {
		t.Fatalf("expected actor %s, got %s", adminID, fake.actor.ID)
	}
	if fake.created.Symbol != "AAPL" || fake.created.Type != "stock" {
		t.Fatalf("expected normalized input, got %+v", fake.created)
	}

	var resp investmentView
	decode(t, w, &resp)
	if !resp.CurrentValue.Equal(decimal.RequireFromString("1687.5")) {
		t.Fatalf("current value must be derived, got %s", resp.CurrentValue)
	}
	if resp.Display.PercentageGain != "+12.50%" || resp.Display.StartDate != "Jan 15, 2024" {
		t.Fatalf("unexpected display %+v", resp.Display)
	}
}

func TestAdminCreateInvestmentBadDates(t *testing.T) {
	r := setupRouter(&fakeAccounts{})
	body := map[string]any{"userId": uuid.NewString(), "startDate": "15/01/2024", "endDate": ""}

	w := do(r, http.MethodPost, "/admin/investments", adminToken(t, uuid.New()), body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp apperr.Response
	decode(t, w, &resp)
	if _, ok := resp.Fields["startDate"]; !ok {
		t.Fatalf("expected startDate field error, got %v", resp.Fields)
	}
}

func TestAdminSettleRoutes(t *testing.T) {
	fake := &fakeAccounts{}
	r := setupRouter(fake)
	txID := uuid.New()

	w := do(r, http.MethodPost, "/admin/transactions/"+txID.String()+"/reject", adminToken(t, uuid.New()), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fake.settled != storage.TxRejected {
		t.Fatalf("expected rejected, got %s", fake.settled)
	}

	w = do(r, http.MethodPost, "/admin/transactions/not-a-uuid/complete", adminToken(t, uuid.New()), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}
