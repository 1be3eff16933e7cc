// Package auth verifies the HS256 access tokens issued by the identity
// service.  Issuing tokens to end users happens elsewhere; NewAccessToken
// exists for tooling and tests that need a token signed with the shared
// secret.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a token is refused.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken signs an HS256 JWT carrying the user id in both the "id"
// and "sub" claims.
func NewAccessToken(secret string, userID uint64, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"id":  userID,
		"sub": strconv.FormatUint(userID, 10),
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccessToken validates raw and returns the user id.  The id is read
// from the "id" claim and falls back to "sub"; either may be a number or a
// decimal string.
func ParseAccessToken(secret, raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	for _, key := range []string{"id", "sub"} {
		if id, ok := claimID(claims[key]); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: no user id claim", ErrInvalidToken)
}

func claimID(v interface{}) (uint64, bool) {
	switch x := v.(type) {
	case float64:
		if x <= 0 || x != float64(uint64(x)) {
			return 0, false
		}
		return uint64(x), true
	case string:
		id, err := strconv.ParseUint(x, 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
