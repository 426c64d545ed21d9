package testutil

import (
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Rows inserted by cmd/seed.
var (
	DemoUserID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	AdminUserID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

const (
	DemoEmail     = "demo@tradebridge.com"
	DemoPassword  = "demo1234"
	AdminEmail    = "admin@tradebridge.com"
	AdminPassword = "admin1234"
	DemoReference = "TB-DEMO0001"
)

func GenerateJWT(userID uuid.UUID, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	return GenerateJWTWithRoles(userID, []string{auth.RoleUser}, secret, ttl, now)
}

func GenerateAdminJWT(userID uuid.UUID, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	return GenerateJWTWithRoles(userID, []string{auth.RoleUser, auth.RoleAdmin}, secret, ttl, now)
}

func GenerateJWTWithRoles(userID uuid.UUID, roles []string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := auth.Claims{
		Roles:  roles,
		Scopes: []string{"read"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tradebridge-auth",
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
