package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*storage.User
	transactions map[uuid.UUID]*storage.Transaction
	investments  map[uuid.UUID]*storage.Investment
	bank         map[uuid.UUID]bankdetails.BankDetails
	audits       []storage.AuditLog
	totals       storage.Totals
	withdrawErr  error
	auditErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[uuid.UUID]*storage.User{},
		transactions: map[uuid.UUID]*storage.Transaction{},
		investments:  map[uuid.UUID]*storage.Investment{},
		bank:         map[uuid.UUID]bankdetails.BankDetails{},
	}
}

func (f *fakeStore) addUser(status, cur string, balance string) *storage.User {
	u := &storage.User{
		ID:            uuid.New(),
		Email:         uuid.NewString() + "@example.com",
		FullName:      "Test User",
		Currency:      cur,
		Role:          "user",
		Status:        status,
		Balance:       decimal.RequireFromString(balance),
		ReferenceCode: "TB-ABCD2345",
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SearchUsers(ctx context.Context, search string, limit int) ([]storage.User, error) {
	var out []storage.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, id uuid.UUID, upd storage.UserUpdate) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if upd.Balance != nil {
		u.Balance = *upd.Balance
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) Totals(ctx context.Context, userID uuid.UUID) (storage.Totals, error) {
	return f.totals, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]storage.Transaction, string, error) {
	if filter.Cursor == "bad" {
		return nil, "", storage.ErrInvalidCursor
	}
	var out []storage.Transaction
	for _, t := range f.transactions {
		out = append(out, *t)
	}
	return out, "", nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, id uuid.UUID) (*storage.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return f.insertTx(userID, amount, storage.TxWithdrawal)
}

func (f *fakeStore) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if _, ok := f.users[userID]; !ok {
		return nil, storage.ErrNotFound
	}
	return f.insertTx(userID, amount, storage.TxDeposit)
}

func (f *fakeStore) insertTx(userID uuid.UUID, amount decimal.Decimal, txType string) (*storage.Transaction, error) {
	now := time.Now().UTC()
	t := &storage.Transaction{ID: uuid.New(), UserID: userID, Amount: amount, Type: txType, Status: storage.TxPending, CreatedAt: now, UpdatedAt: now}
	f.transactions[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) SettleTransaction(ctx context.Context, id uuid.UUID, status string) (*storage.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if t.Status != storage.TxPending {
		return nil, storage.ErrNotPending
	}
	t.Status = status
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListInvestments(ctx context.Context, userID uuid.UUID) ([]storage.Investment, error) {
	var out []storage.Investment
	for _, inv := range f.investments {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchInvestments(ctx context.Context, search string, limit int) ([]storage.Investment, error) {
	var out []storage.Investment
	for _, inv := range f.investments {
		out = append(out, *inv)
	}
	return out, nil
}

func (f *fakeStore) GetInvestment(ctx context.Context, id uuid.UUID) (*storage.Investment, error) {
	inv, ok := f.investments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeStore) CreateInvestment(ctx context.Context, inv storage.Investment) (*storage.Investment, error) {
	inv.ID = uuid.New()
	f.investments[inv.ID] = &inv
	cp := inv
	return &cp, nil
}

func (f *fakeStore) UpdateInvestment(ctx context.Context, inv storage.Investment) (*storage.Investment, error) {
	if _, ok := f.investments[inv.ID]; !ok {
		return nil, storage.ErrNotFound
	}
	f.investments[inv.ID] = &inv
	cp := inv
	return &cp, nil
}

func (f *fakeStore) GetBankDetails(ctx context.Context, userID uuid.UUID) (*storage.BankAccount, error) {
	d, ok := f.bank[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BankAccount{UserID: userID, Details: d}, nil
}

func (f *fakeStore) UpsertBankDetails(ctx context.Context, userID uuid.UUID, d bankdetails.BankDetails) error {
	f.bank[userID] = d
	return nil
}

func (f *fakeStore) InsertAudit(ctx context.Context, log storage.AuditLog) error {
	f.audits = append(f.audits, log)
	return f.auditErr
}

func (f *fakeStore) Stats(ctx context.Context) (storage.Stats, error) {
	return storage.Stats{UsersByStatus: map[string]int{"active": len(f.users)}}, nil
}

type published struct {
	topic string
	key   string
	value any
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, topic, key string, value any) (int32, int64, error) {
	p.msgs = append(p.msgs, published{topic: topic, key: key, value: value})
	return 0, int64(len(p.msgs)), p.err
}

func (p *fakePublisher) Close() error { return nil }

func newTestService(store *fakeStore, pub *fakePublisher) *AccountService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(store, pub, logger, nil, Options{
		PlatformAccounts: map[currency.Currency]bankdetails.BankDetails{
			currency.GBP: {Currency: currency.GBP, AccountName: "TradeBridge Systems Ltd", AccountNumber: "12345678", SortCode: "12-34-56"},
		},
		SearchLimit: 50,
	})
}

func statusOf(err error) int {
	status, _ := apperr.Status(err)
	return status
}

func TestSummaryComputesGain(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "600.00")
	store.totals = storage.Totals{
		Deposits:      decimal.RequireFromString("1000"),
		Withdrawals:   decimal.RequireFromString("200"),
		InvestedValue: decimal.RequireFromString("400"),
	}
	svc := newTestService(store, &fakePublisher{})

	sum, err := svc.Summary(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.CurrentBalance.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected current balance 1000, got %s", sum.CurrentBalance)
	}
	if sum.TotalGainPercentage != 25 {
		t.Fatalf("expected 25%% gain, got %v", sum.TotalGainPercentage)
	}
}

func TestSummaryWithoutDepositsHasZeroGain(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "USD", "0")
	svc := newTestService(store, &fakePublisher{})

	sum, err := svc.Summary(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalGainPercentage != 0 {
		t.Fatalf("expected 0 gain, got %v", sum.TotalGainPercentage)
	}
}

func TestRequestWithdrawalErrors(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "100")
	svc := newTestService(store, &fakePublisher{})
	ctx := context.Background()

	tests := []struct {
		name   string
		amount string
		err    error
		status int
	}{
		{name: "zero", amount: "0", status: http.StatusBadRequest},
		{name: "fractional cents", amount: "10.005", status: http.StatusBadRequest},
		{name: "insufficient", amount: "150", err: storage.ErrInsufficientBalance, status: http.StatusConflict},
		{name: "inactive", amount: "10", err: storage.ErrUserNotActive, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.withdrawErr = tt.err
			_, err := svc.RequestWithdrawal(ctx, user.ID, decimal.RequireFromString(tt.amount))
			if got := statusOf(err); got != tt.status {
				t.Fatalf("expected %d, got %d (%v)", tt.status, got, err)
			}
		})
	}

	store.withdrawErr = nil
	tx, err := svc.RequestWithdrawal(ctx, user.ID, decimal.RequireFromString("25.50"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if tx.Status != storage.TxPending || tx.Type != storage.TxWithdrawal {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestInsufficientBalanceCode(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "10")
	store.withdrawErr = storage.ErrInsufficientBalance
	svc := newTestService(store, &fakePublisher{})

	_, err := svc.RequestWithdrawal(context.Background(), user.ID, decimal.NewFromInt(50))
	_, body := apperr.Status(err)
	if body.Code != "INSUFFICIENT_BALANCE" {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %s", body.Code)
	}
}

func TestWalletUsesUserReference(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "0")
	svc := newTestService(store, &fakePublisher{})

	wallet, err := svc.Wallet(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Details.Reference != user.ReferenceCode {
		t.Fatalf("expected reference %s, got %s", user.ReferenceCode, wallet.Details.Reference)
	}
	if wallet.Details.SortCode != "12-34-56" {
		t.Fatalf("unexpected account %+v", wallet.Details)
	}
	if len(wallet.Fields) != 3 || wallet.Fields[0].Key != bankdetails.KeyAccountName {
		t.Fatalf("unexpected fields %+v", wallet.Fields)
	}
}

func TestTransactionsRejectsBadFilter(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePublisher{})
	ctx := context.Background()

	if _, _, err := svc.Transactions(ctx, storage.TransactionFilter{Type: "transfer"}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad type, got %v", err)
	}
	if _, _, err := svc.Transactions(ctx, storage.TransactionFilter{Cursor: "bad"}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %v", err)
	}
}

func TestSettleTransactionPublishesDeterministicEvent(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "AUD", "0")
	pub := &fakePublisher{}
	svc := newTestService(store, pub)
	admin := Actor{ID: uuid.New(), RequestID: "req-1"}
	ctx := context.Background()

	dep, err := svc.RecordDeposit(ctx, admin, user.ID, decimal.RequireFromString("500"))
	if err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	settled, err := svc.SettleTransaction(ctx, admin, dep.ID, storage.TxCompleted)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != storage.TxCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	if len(pub.msgs) != 1 || pub.msgs[0].topic != kafka.TopicTransactionsSettled {
		t.Fatalf("expected one settled event, got %+v", pub.msgs)
	}
	evt := pub.msgs[0].value.(kafka.TransactionSettled)
	if evt.EventID != kafka.DeterministicEventID(dep.ID.String(), storage.TxCompleted) {
		t.Fatalf("unexpected event id %s", evt.EventID)
	}
	if evt.Currency != "AUD" || evt.CorrelationID != "req-1" || !evt.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected event %+v", evt)
	}
	if pub.msgs[0].key != user.ID.String() {
		t.Fatalf("expected user id key, got %s", pub.msgs[0].key)
	}

	if _, err := svc.SettleTransaction(ctx, admin, dep.ID, storage.TxRejected); statusOf(err) != http.StatusConflict {
		t.Fatalf("expected conflict settling twice, got %v", err)
	}
	if len(store.audits) != 2 {
		t.Fatalf("expected audit rows for deposit and settlement, got %d", len(store.audits))
	}
}

func TestSettleTransactionRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePublisher{})
	_, err := svc.SettleTransaction(context.Background(), Actor{ID: uuid.New()}, uuid.New(), storage.TxPending)
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserPending, "GBP", "0")
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(store, pub)

	updated, err := svc.SetUserStatus(context.Background(), Actor{ID: uuid.New()}, user.ID, storage.UserActive)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if updated.Status != storage.UserActive {
		t.Fatalf("expected active, got %s", updated.Status)
	}
}

func TestUpdateUserValidation(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "0")
	svc := newTestService(store, &fakePublisher{})
	admin := Actor{ID: uuid.New()}
	ctx := context.Background()

	negative := decimal.NewFromInt(-1)
	if _, err := svc.UpdateUser(ctx, admin, user.ID, storage.UserUpdate{Balance: &negative}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative balance, got %v", err)
	}
	bogus := "deleted"
	if _, err := svc.UpdateUser(ctx, admin, user.ID, storage.UserUpdate{Status: &bogus}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %v", err)
	}
	if _, err := svc.UpdateUser(ctx, admin, user.ID, storage.UserUpdate{}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %v", err)
	}
	if _, err := svc.UpdateUser(ctx, admin, uuid.New(), storage.UserUpdate{Status: &user.Status}); statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %v", err)
	}

	balance := decimal.RequireFromString("250.75")
	updated, err := svc.UpdateUser(ctx, admin, user.ID, storage.UserUpdate{Balance: &balance})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Balance.Equal(balance) {
		t.Fatalf("expected balance %s, got %s", balance, updated.Balance)
	}
	last := store.audits[len(store.audits)-1]
	if last.Action != "user.updated" || last.Details["balanceBefore"] != "0.00" {
		t.Fatalf("unexpected audit %+v", last)
	}
}

func TestAdminCannotSuspendOrDeleteSelf(t *testing.T) {
	store := newFakeStore()
	self := store.addUser(storage.UserActive, "GBP", "0")
	svc := newTestService(store, &fakePublisher{})
	admin := Actor{ID: self.ID}
	ctx := context.Background()

	if _, err := svc.SetUserStatus(ctx, admin, self.ID, storage.UserSuspended); statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, self.ID); statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func investmentInput(userID uuid.UUID) storage.InvestmentInput {
	return storage.InvestmentInput{
		UserID:         userID,
		Type:           "crypto",
		Name:           "Bitcoin",
		Symbol:         "BTC",
		Amount:         decimal.RequireFromString("0.5"),
		StartDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		InitialValue:   decimal.RequireFromString("20000"),
		PercentageGain: decimal.RequireFromString("10"),
	}
}

func TestInvestmentLifecycle(t *testing.T) {
	store := newFakeStore()
	owner := store.addUser(storage.UserActive, "USD", "0")
	pub := &fakePublisher{}
	svc := newTestService(store, pub)
	admin := Actor{ID: uuid.New()}
	ctx := context.Background()

	created, err := svc.CreateInvestment(ctx, admin, investmentInput(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.CurrentValue.Equal(decimal.NewFromInt(22000)) {
		t.Fatalf("expected 22000, got %s", created.CurrentValue)
	}

	in := investmentInput(owner.ID)
	in.PercentageGain = decimal.NewFromInt(-25)
	updated, err := svc.UpdateInvestment(ctx, admin, created.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CurrentValue.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected 15000, got %s", updated.CurrentValue)
	}

	closed, err := svc.CloseInvestment(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != storage.InvestmentClosed {
		t.Fatalf("expected closed, got %s", closed.Status)
	}
	if _, err := svc.CloseInvestment(ctx, admin, created.ID); statusOf(err) != http.StatusConflict {
		t.Fatalf("expected conflict closing twice, got %v", err)
	}

	var actions []string
	for _, m := range pub.msgs {
		actions = append(actions, m.value.(kafka.InvestmentChanged).Action)
	}
	if len(actions) != 3 || actions[0] != "created" || actions[2] != "closed" {
		t.Fatalf("unexpected events %v", actions)
	}
}

func TestCreateInvestmentRequiresActiveOwner(t *testing.T) {
	store := newFakeStore()
	pending := store.addUser(storage.UserPending, "USD", "0")
	svc := newTestService(store, &fakePublisher{})
	ctx := context.Background()

	if _, err := svc.CreateInvestment(ctx, Actor{ID: uuid.New()}, investmentInput(pending.ID)); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending owner, got %v", err)
	}
	if _, err := svc.CreateInvestment(ctx, Actor{ID: uuid.New()}, investmentInput(uuid.New())); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown owner, got %v", err)
	}
	if len(store.investments) != 0 {
		t.Fatalf("no investment should be stored")
	}
}

func TestPutBankDetails(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "AUD", "0")
	svc := newTestService(store, &fakePublisher{})
	admin := Actor{ID: uuid.New()}
	ctx := context.Background()

	_, err := svc.PutBankDetails(ctx, admin, user.ID, bankdetails.BankDetails{
		AccountName:   "Test User",
		AccountNumber: "12345678",
		SortCode:      "12-34-56",
	})
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for sort code on AUD account, got %v", err)
	}

	_, err = svc.PutBankDetails(ctx, admin, user.ID, bankdetails.BankDetails{Currency: currency.GBP, AccountName: "x", AccountNumber: "12345678"})
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for currency mismatch, got %v", err)
	}

	saved, err := svc.PutBankDetails(ctx, admin, user.ID, bankdetails.BankDetails{
		AccountName:   " Test User ",
		AccountNumber: "12345678",
		BSB:           "062-000",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if saved.Currency != currency.AUD || saved.AccountName != "Test User" {
		t.Fatalf("unexpected saved details %+v", saved)
	}

	acc, err := svc.BankDetails(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc.Details.BSB != "062-000" {
		t.Fatalf("unexpected stored details %+v", acc.Details)
	}
}

func TestAuditFailureIsLoggedNotReturned(t *testing.T) {
	store := newFakeStore()
	user := store.addUser(storage.UserActive, "GBP", "0")
	store.auditErr = errors.New("audit table locked")
	svc := newTestService(store, &fakePublisher{})

	if _, err := svc.RecordDeposit(context.Background(), Actor{ID: uuid.New()}, user.ID, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("expected deposit to succeed, got %v", err)
	}
}
