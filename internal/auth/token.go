package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTTL = 24 * time.Hour

	// DefaultJWTSecret is used when JWT_SECRET is unset. It is public
	// knowledge, so any deployment relying on it accepts forged tokens.
	DefaultJWTSecret = "your-secret-key"
)

// Claims is the verified content of an identity token.
type Claims struct {
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 identity tokens. The secret is fixed
// at construction and never changes afterwards.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// WithClock swaps the time source; tests use it to move past expiry.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

func (c *TokenCodec) Issue(subject uuid.UUID) (string, error) {
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

func (c *TokenCodec) Verify(tokenString string) (Claims, error) {
	registered := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, registered, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, classifyTokenError(err)
	}

	subject, err := uuid.Parse(registered.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject is not a user id", ErrMalformedCredential)
	}

	claims := Claims{Subject: subject, ExpiresAt: registered.ExpiresAt.Time}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}

	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
}
