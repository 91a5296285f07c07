package adapter

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification belongs to the server. A token without an expiry
// claim is treated as non-expired.
func tokenExpired(token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false, fmt.Errorf("parse token: %w", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return false, fmt.Errorf("read token expiry: %w", err)
	}
	if exp == nil {
		return false, nil
	}

	return exp.Before(time.Now()), nil
}
