// Package auth validates bearer tokens guarding pseudo-file writes.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config configures JWT verification.
type Config struct {
	// Secret is the HMAC secret used for signing/verifying tokens.
	Secret string

	// ValidMethods is the list of accepted signing algorithms.
	// Default: ["HS256"]. Pinning the method family avoids
	// alg-confusion attacks.
	ValidMethods []string

	// Issuer requires a matching `iss` claim when set.
	Issuer string

	// Leeway allows small clock skew for exp/nbf/iat validation.
	Leeway time.Duration
}

// Errors.
var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// VerifyBearer validates the Authorization header value ("Bearer <jwt>").
func VerifyBearer(cfg Config, authHeader string) error {
	if cfg.Secret == "" {
		return fmt.Errorf("auth: secret must be configured")
	}

	const scheme = "Bearer "
	if len(authHeader) <= len(scheme) || !strings.EqualFold(authHeader[:len(scheme)], scheme) {
		return ErrMissingToken
	}
	raw := strings.TrimSpace(authHeader[len(scheme):])

	validMethods := cfg.ValidMethods
	if len(validMethods) == 0 {
		validMethods = []string{"HS256"}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}

	token, err := jwt.Parse(raw, keyFunc, opts...)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// GenerateToken issues an HS256 token for the given subject.
func GenerateToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
