package security

import (
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/auth"
	"github.com/golang-jwt/jwt/v5"
)

// RolesFor expands a stored user role into token roles. Admins keep the
// user role so they can also reach the dashboard routes.
func RolesFor(role string) []string {
	if role == auth.RoleAdmin {
		return []string{auth.RoleUser, auth.RoleAdmin}
	}
	return []string{auth.RoleUser}
}

func NewAccessToken(userID string, roles, scopes []string, secret []byte, ttl time.Duration, now time.Time, issuer string) (string, error) {
	claims := auth.Claims{
		Roles:  roles,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
