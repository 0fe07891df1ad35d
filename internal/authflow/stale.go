package authflow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway is subtracted from a token's exp claim so calls made just
// before expiry do not race the server clock.
const expiryLeeway = 60 * time.Second

// tokenExpiry returns the exp claim of a JWT without verifying its
// signature. Opaque tokens and tokens without exp return a zero time.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// stale reports whether a token is expired or about to expire. Tokens whose
// lifetime cannot be determined are treated as still valid.
func stale(token string, now time.Time) bool {
	exp := tokenExpiry(token)
	if exp.IsZero() {
		return false
	}
	return !now.Add(expiryLeeway).Before(exp)
}
