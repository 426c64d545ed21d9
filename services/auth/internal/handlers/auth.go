package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/auth/internal/config"
	"github.com/faisalantu/tradebridge-systems/services/auth/internal/rate"
	"github.com/faisalantu/tradebridge-systems/services/auth/internal/security"
	"github.com/faisalantu/tradebridge-systems/services/auth/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	minAge            = 18
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	CreateUser(ctx context.Context, in storage.NewUser) (*storage.User, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (*storage.RefreshToken, error)
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error)
	RotateToken(ctx context.Context, oldTokenID uuid.UUID, userID uuid.UUID, newHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error)
	RevokeTokenByHash(ctx context.Context, hash string) error
	RevokeAllTokens(ctx context.Context, userID uuid.UUID) error
}

type Metrics interface {
	Login(result string)
	Registered()
}

type AuthHandler struct {
	Store       Store
	Logger      *slog.Logger
	JWTSecret   []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RateLimiter rate.Limiter
	TokenGen    security.TokenGenerator
	Clock       Clock
	Issuer      string
	Argon2      security.Argon2Params
	Publisher   kafka.Publisher
	Metrics     Metrics
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
	PhoneNumber string `json:"phoneNumber"`
	Currency    string `json:"currency"`
	Address     string `json:"address"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Role         string `json:"role"`
}

type registerResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	ReferenceCode string `json:"referenceCode"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Options struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Argon2     config.Argon2Params
}

func NewAuthHandler(store Store, logger *slog.Logger, limiter rate.Limiter, publisher kafka.Publisher, metrics Metrics, opts Options) *AuthHandler {
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	return &AuthHandler{
		Store:       store,
		Logger:      logger,
		JWTSecret:   []byte(opts.JWTSecret),
		AccessTTL:   opts.AccessTTL,
		RefreshTTL:  opts.RefreshTTL,
		RateLimiter: limiter,
		TokenGen:    security.DefaultTokenGenerator{},
		Clock:       systemClock{},
		Issuer:      opts.Issuer,
		Argon2:      security.Argon2Params(opts.Argon2),
		Publisher:   publisher,
		Metrics:     metrics,
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.Logger, apperr.Validation("invalid payload", nil))
		return
	}

	in, err := h.validateRegistration(req)
	if err != nil {
		apperr.Write(c, h.Logger, err)
		return
	}

	hash, err := security.HashPassword(req.Password, h.Argon2)
	if err != nil {
		apperr.Write(c, h.Logger, err)
		return
	}
	in.PasswordHash = hash

	ref, err := security.NewReferenceCode()
	if err != nil {
		apperr.Write(c, h.Logger, err)
		return
	}
	in.ReferenceCode = ref

	user, err := h.Store.CreateUser(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			apperr.Write(c, h.Logger, apperr.Conflict("EMAIL_TAKEN", "email already registered"))
			return
		}
		apperr.Write(c, h.Logger, err)
		return
	}
	h.metric(func(m Metrics) { m.Registered() })
	h.publishUserChanged(c, user.ID, "registered", user.Status)

	c.JSON(http.StatusCreated, registerResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		Status:        user.Status,
		Currency:      user.Currency,
		ReferenceCode: user.ReferenceCode,
	})
}

func (h *AuthHandler) validateRegistration(req registerRequest) (storage.NewUser, error) {
	var v apperr.Validator
	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, mailErr := mail.ParseAddress(email)
	v.Check(email != "" && mailErr == nil, "email", "must be a valid email address")
	v.Check(len(req.Password) >= minPasswordLength, "password", "must be at least 8 characters")
	v.Check(strings.TrimSpace(req.FullName) != "", "fullName", "is required")
	v.Check(strings.TrimSpace(req.PhoneNumber) != "", "phoneNumber", "is required")
	v.Check(strings.TrimSpace(req.Address) != "", "address", "is required")

	cur, curErr := currency.Parse(req.Currency)
	v.Check(curErr == nil, "currency", "must be one of GBP, AUD, USD, CAD")

	dob, dobErr := time.Parse(time.DateOnly, strings.TrimSpace(req.DateOfBirth))
	v.Check(dobErr == nil, "dateOfBirth", "must be YYYY-MM-DD")
	if dobErr == nil {
		v.Check(!dob.AddDate(minAge, 0, 0).After(h.Clock.Now()), "dateOfBirth", "must be at least 18 years old")
	}

	if err := v.Err(); err != nil {
		return storage.NewUser{}, err
	}
	return storage.NewUser{
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		DateOfBirth: dob,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Currency:    cur.String(),
		Address:     strings.TrimSpace(req.Address),
	}, nil
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ip := c.ClientIP()
	allowed, retryAfter, err := h.RateLimiter.Allow(c.Request.Context(), ip, h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if !allowed {
		h.metric(func(m Metrics) { m.Login("rate_limited") })
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.metric(func(m Metrics) { m.Login("invalid") })
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if errors.Is(err, security.ErrMalformedHash) {
		h.Logger.Warn("stored password hash unusable", "user_id", user.ID.String(), "error", err)
	}
	if err != nil || !ok {
		h.metric(func(m Metrics) { m.Login("invalid") })
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}

	if user.Status == storage.StatusSuspended {
		h.metric(func(m Metrics) { m.Login("suspended") })
		c.JSON(http.StatusForbidden, errorResponse{Code: "ACCOUNT_SUSPENDED", Message: "account suspended"})
		return
	}

	resp, err := h.issueTokens(c, user.ID, user.Role, nil)
	if err != nil {
		h.Logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	h.metric(func(m Metrics) { m.Login("success") })
	c.JSON(http.StatusOK, resp)
}

// issueTokens signs an access token and stores a refresh token. When
// rotate is set the presented refresh token is revoked in the same step.
func (h *AuthHandler) issueTokens(c *gin.Context, userID uuid.UUID, role string, rotate *storage.RefreshToken) (authResponse, error) {
	now := h.Clock.Now()
	access, err := security.NewAccessToken(userID.String(), security.RolesFor(role), []string{"read"}, h.JWTSecret, h.AccessTTL, now, h.Issuer)
	if err != nil {
		return authResponse{}, err
	}

	refreshToken, refreshHash, err := h.TokenGen.New()
	if err != nil {
		return authResponse{}, err
	}

	expiresAt := now.Add(h.RefreshTTL)
	if rotate != nil {
		_, err = h.Store.RotateToken(c.Request.Context(), rotate.ID, userID, refreshHash, expiresAt, c.ClientIP(), c.Request.UserAgent())
	} else {
		_, err = h.Store.CreateRefreshToken(c.Request.Context(), userID, refreshHash, expiresAt, c.ClientIP(), c.Request.UserAgent())
	}
	if err != nil {
		return authResponse{}, err
	}

	return authResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(h.AccessTTL.Seconds()),
		Role:         role,
	}, nil
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	providedHash := security.HashToken(req.RefreshToken)

	token, err := h.Store.GetRefreshTokenByHash(c.Request.Context(), providedHash)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	if token.RevokedAt != nil {
		if err := h.Store.RevokeAllTokens(c.Request.Context(), token.UserID); err != nil {
			h.Logger.Error("revoke all tokens failed", "user_id", token.UserID, "error", err)
		}
		h.Logger.Warn("refresh token reuse detected", "user_id", token.UserID)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token reuse detected"})
		return
	}

	if token.ExpiresAt.Before(h.Clock.Now()) {
		_ = h.Store.RevokeTokenByHash(c.Request.Context(), providedHash)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token expired"})
		return
	}

	// role and status are re-read so suspensions and role changes apply at the next refresh
	user, err := h.Store.GetUserByID(c.Request.Context(), token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
			return
		}
		h.Logger.Error("refresh user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if user.Status == storage.StatusSuspended {
		_ = h.Store.RevokeAllTokens(c.Request.Context(), user.ID)
		c.JSON(http.StatusForbidden, errorResponse{Code: "ACCOUNT_SUSPENDED", Message: "account suspended"})
		return
	}

	resp, err := h.issueTokens(c, user.ID, user.Role, token)
	if err != nil {
		h.Logger.Error("token rotation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if err := h.Store.RevokeTokenByHash(c.Request.Context(), security.HashToken(req.RefreshToken)); err != nil {
		h.Logger.Error("revoke token failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) publishUserChanged(c *gin.Context, userID uuid.UUID, action, status string) {
	env, err := kafka.NewEnvelope(kafka.TopicUsersChanged, 1, c.GetHeader("X-Request-ID"))
	if err != nil {
		h.Logger.Error("build envelope failed", "error", err)
		return
	}
	evt := kafka.UserChanged{Envelope: env, UserID: userID.String(), Action: action, Status: status}
	if _, _, err := h.Publisher.PublishJSON(c.Request.Context(), kafka.TopicUsersChanged, userID.String(), evt); err != nil {
		h.Logger.Error("publish users.changed failed", "user_id", userID, "error", err)
	}
}

func (h *AuthHandler) metric(fn func(Metrics)) {
	if h.Metrics != nil {
		fn(h.Metrics)
	}
}
