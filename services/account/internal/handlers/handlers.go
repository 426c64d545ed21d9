package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/auth"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/httpmiddleware"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/service"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Accounts is the account service as seen by the HTTP layer.
type Accounts interface {
	Profile(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	Summary(ctx context.Context, userID uuid.UUID) (service.Summary, error)
	Transactions(ctx context.Context, f storage.TransactionFilter) ([]storage.Transaction, string, error)
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error)
	Wallet(ctx context.Context, userID uuid.UUID) (service.WalletDetails, error)
	Investments(ctx context.Context, userID uuid.UUID) ([]storage.Investment, error)

	Stats(ctx context.Context) (storage.Stats, error)
	SearchUsers(ctx context.Context, search string) ([]storage.User, error)
	UpdateUser(ctx context.Context, actor service.Actor, id uuid.UUID, upd storage.UserUpdate) (*storage.User, error)
	SetUserStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*storage.User, error)
	DeleteUser(ctx context.Context, actor service.Actor, id uuid.UUID) error
	BankDetails(ctx context.Context, userID uuid.UUID) (*storage.BankAccount, error)
	PutBankDetails(ctx context.Context, actor service.Actor, userID uuid.UUID, d bankdetails.BankDetails) (bankdetails.BankDetails, error)
	SearchInvestments(ctx context.Context, search string) ([]storage.Investment, error)
	CreateInvestment(ctx context.Context, actor service.Actor, in storage.InvestmentInput) (*storage.Investment, error)
	UpdateInvestment(ctx context.Context, actor service.Actor, id uuid.UUID, in storage.InvestmentInput) (*storage.Investment, error)
	CloseInvestment(ctx context.Context, actor service.Actor, id uuid.UUID) (*storage.Investment, error)
	RecordDeposit(ctx context.Context, actor service.Actor, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error)
	SettleTransaction(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*storage.Transaction, error)
}

type Handler struct {
	Accounts Accounts
	Logger   *slog.Logger
}

type transactionsResponse struct {
	Transactions []transactionView `json:"transactions"`
	NextCursor   string            `json:"nextCursor,omitempty"`
}

type investmentsResponse struct {
	Investments []investmentView `json:"investments"`
}

type withdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func New(accounts Accounts, logger *slog.Logger) *Handler {
	return &Handler{Accounts: accounts, Logger: logger}
}

func (h *Handler) Register(r *gin.Engine, jwtSecret []byte) {
	authGroup := r.Group("/", auth.Middleware(jwtSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/portfolio/summary", h.PortfolioSummary)
	authGroup.GET("/transactions", h.Transactions)
	authGroup.POST("/withdrawals", h.Withdraw)
	authGroup.GET("/wallet/bank-details", h.Wallet)
	authGroup.GET("/investments", h.Investments)

	admin := r.Group("/admin", auth.Middleware(jwtSecret), auth.RequireRole(auth.RoleAdmin))
	h.registerAdmin(admin)
}

func (h *Handler) Me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	user, err := h.Accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(*user))
}

func (h *Handler) PortfolioSummary(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	sum, err := h.Accounts.Summary(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummaryView(sum))
}

func (h *Handler) Transactions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.Accounts.Profile(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	items, next, err := h.Accounts.Transactions(ctx, storage.TransactionFilter{
		UserID: &userID,
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Limit:  parseLimit(c.Query("limit")),
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionsResponse{
		Transactions: transactionViews(items, currency.Currency(user.Currency)),
		NextCursor:   next,
	})
}

func (h *Handler) Withdraw(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Field("amount", "must be a decimal amount"))
		return
	}

	ctx := c.Request.Context()
	tx, err := h.Accounts.RequestWithdrawal(ctx, userID, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	var cur currency.Currency
	if user, err := h.Accounts.Profile(ctx, userID); err == nil {
		cur = currency.Currency(user.Currency)
	}
	c.JSON(http.StatusCreated, newTransactionView(*tx, cur))
}

func (h *Handler) Wallet(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	wallet, err := h.Accounts.Wallet(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newWalletView(wallet))
}

func (h *Handler) Investments(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.Accounts.Profile(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.Accounts.Investments(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, investmentsResponse{Investments: investmentViews(items, currency.Currency(user.Currency))})
}

func (h *Handler) fail(c *gin.Context, err error) {
	apperr.Write(c, h.Logger, err)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return val
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	session, ok := auth.SessionFrom(c)
	if !ok || session.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return session.UserID, true
}

func actorFromContext(c *gin.Context) (service.Actor, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: userID, RequestID: httpmiddleware.RequestIDFrom(c)}, true
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field("id", "must be a uuid")
	}
	return id, nil
}
