package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/service"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type statsResponse struct {
	UsersByStatus       map[string]int `json:"usersByStatus"`
	TotalUsers          int            `json:"totalUsers"`
	ActiveInvestments   int            `json:"activeInvestments"`
	PendingTransactions int            `json:"pendingTransactions"`
}

type usersResponse struct {
	Users []userView `json:"users"`
}

type updateUserRequest struct {
	Balance *decimal.Decimal `json:"balance"`
	Status  *string          `json:"status"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type investmentRequest struct {
	UserID         string          `json:"userId"`
	Type           string          `json:"type"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	Amount         decimal.Decimal `json:"amount"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	InitialValue   decimal.Decimal `json:"initialValue"`
	PercentageGain decimal.Decimal `json:"percentageGain"`
}

func (h *Handler) registerAdmin(g *gin.RouterGroup) {
	g.GET("/stats", h.AdminStats)

	g.GET("/users", h.AdminUsers)
	g.PATCH("/users/:id", h.AdminUpdateUser)
	g.POST("/users/:id/activate", h.adminSetStatus(storage.UserActive))
	g.POST("/users/:id/suspend", h.adminSetStatus(storage.UserSuspended))
	g.DELETE("/users/:id", h.AdminDeleteUser)
	g.GET("/users/:id/bank-details", h.AdminBankDetails)
	g.PUT("/users/:id/bank-details", h.AdminPutBankDetails)
	g.POST("/users/:id/deposits", h.AdminRecordDeposit)

	g.GET("/investments", h.AdminInvestments)
	g.POST("/investments", h.AdminCreateInvestment)
	g.PUT("/investments/:id", h.AdminUpdateInvestment)
	g.POST("/investments/:id/close", h.AdminCloseInvestment)

	g.GET("/transactions", h.AdminTransactions)
	g.POST("/transactions/:id/complete", h.adminSettle(storage.TxCompleted))
	g.POST("/transactions/:id/reject", h.adminSettle(storage.TxRejected))
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.Accounts.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	total := 0
	for _, n := range stats.UsersByStatus {
		total += n
	}
	c.JSON(http.StatusOK, statsResponse{
		UsersByStatus:       stats.UsersByStatus,
		TotalUsers:          total,
		ActiveInvestments:   stats.ActiveInvestments,
		PendingTransactions: stats.PendingTransactions,
	})
}

func (h *Handler) AdminUsers(c *gin.Context) {
	users, err := h.Accounts.SearchUsers(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	c.JSON(http.StatusOK, usersResponse{Users: views})
}

func (h *Handler) AdminUpdateUser(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Field("body", "invalid request body"))
		return
	}

	user, err := h.Accounts.UpdateUser(c.Request.Context(), actor, id, storage.UserUpdate{Balance: req.Balance, Status: req.Status})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(*user))
}

func (h *Handler) adminSetStatus(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, id, ok := h.adminTarget(c)
		if !ok {
			return
		}
		user, err := h.Accounts.SetUserStatus(c.Request.Context(), actor, id, status)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, newUserView(*user))
	}
}

func (h *Handler) AdminDeleteUser(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	if err := h.Accounts.DeleteUser(c.Request.Context(), actor, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminBankDetails(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	acc, err := h.Accounts.BankDetails(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newBankAccountView(acc.Details, acc.UpdatedAt))
}

func (h *Handler) AdminPutBankDetails(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	var req bankdetails.BankDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Field("body", "invalid request body"))
		return
	}

	saved, err := h.Accounts.PutBankDetails(c.Request.Context(), actor, id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newBankAccountView(saved, time.Time{}))
}

func (h *Handler) AdminRecordDeposit(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Field("amount", "must be a decimal amount"))
		return
	}

	tx, err := h.Accounts.RecordDeposit(c.Request.Context(), actor, id, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTransactionView(*tx, ""))
}

func (h *Handler) AdminInvestments(c *gin.Context) {
	items, err := h.Accounts.SearchInvestments(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, investmentsResponse{Investments: investmentViews(items, "")})
}

func (h *Handler) AdminCreateInvestment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return
	}
	in, err := bindInvestment(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	inv, err := h.Accounts.CreateInvestment(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInvestmentView(*inv, ""))
}

func (h *Handler) AdminUpdateInvestment(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	in, err := bindInvestment(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	inv, err := h.Accounts.UpdateInvestment(c.Request.Context(), actor, id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvestmentView(*inv, ""))
}

func (h *Handler) AdminCloseInvestment(c *gin.Context) {
	actor, id, ok := h.adminTarget(c)
	if !ok {
		return
	}
	inv, err := h.Accounts.CloseInvestment(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvestmentView(*inv, ""))
}

func (h *Handler) AdminTransactions(c *gin.Context) {
	f := storage.TransactionFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Limit:  parseLimit(c.Query("limit")),
		Cursor: c.Query("cursor"),
	}
	if raw := c.Query("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			h.fail(c, apperr.Field("userId", "must be a uuid"))
			return
		}
		f.UserID = &userID
	}

	items, next, err := h.Accounts.Transactions(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionsResponse{Transactions: transactionViews(items, ""), NextCursor: next})
}

func (h *Handler) adminSettle(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, id, ok := h.adminTarget(c)
		if !ok {
			return
		}
		tx, err := h.Accounts.SettleTransaction(c.Request.Context(), actor, id, status)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, newTransactionView(*tx, ""))
	}
}

// adminTarget resolves the acting admin and the :id path parameter, writing
// the error response itself when either is missing.
func (h *Handler) adminTarget(c *gin.Context) (service.Actor, uuid.UUID, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		h.fail(c, apperr.Unauthorized("missing user"))
		return service.Actor{}, uuid.Nil, false
	}
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return service.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func bindInvestment(c *gin.Context) (storage.InvestmentInput, error) {
	var req investmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return storage.InvestmentInput{}, apperr.Field("body", "invalid request body")
	}

	var v apperr.Validator
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	v.Check(err == nil, "userId", "must be a uuid")
	start, err := time.Parse(dateLayout, req.StartDate)
	v.Check(err == nil, "startDate", "must be YYYY-MM-DD")
	end, err := time.Parse(dateLayout, req.EndDate)
	v.Check(err == nil, "endDate", "must be YYYY-MM-DD")
	if err := v.Err(); err != nil {
		return storage.InvestmentInput{}, err
	}

	return storage.InvestmentInput{
		UserID:         userID,
		Type:           strings.ToLower(strings.TrimSpace(req.Type)),
		Name:           strings.TrimSpace(req.Name),
		Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Amount:         req.Amount,
		StartDate:      start,
		EndDate:        end,
		InitialValue:   req.InitialValue,
		PercentageGain: req.PercentageGain,
	}, nil
}
