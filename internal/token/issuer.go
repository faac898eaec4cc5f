// Package token issues signed, time-bounded session tokens.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidConfig is returned by NewIssuer when the signing configuration is unusable.
	ErrInvalidConfig = errors.New("invalid token configuration")
	// ErrInvalidToken is returned by Parse for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the claim set carried by every session token: subject and expiry only.
type Claims struct {
	jwt.RegisteredClaims
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for issuance and verification.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// Issuer signs session tokens with a shared secret.
type Issuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer validates the signing configuration and returns an Issuer.
// Only HMAC algorithms (HS256, HS384, HS512) are accepted since the key is a shared secret.
func NewIssuer(secret, algorithm string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	}
	if algorithm == "" {
		return nil, fmt.Errorf("%w: algorithm is required", ErrInvalidConfig)
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfig, algorithm)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}

	issuer := &Issuer{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subject that expires after the configured TTL.
func (i *Issuer) Issue(subject string) (string, time.Time, error) {
	expiresAt := jwt.NewNumericDate(i.now().Add(i.ttl))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Parse verifies the signature, algorithm and expiry of a token and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
