package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"travel-booking/internal/observability"
)

const bearerPrefix = "Bearer "

// Identity is the request-scoped result of a successful authentication.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// AdminChecker reports the persisted admin flag of a user.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Authenticate extracts the bearer token from headers and verifies it.
func Authenticate(codec *TokenCodec, headers http.Header) (Identity, error) {
	values := headers.Values("Authorization")
	if len(values) == 0 || values[0] == "" {
		return Identity{}, ErrMissingCredential
	}

	header := values[0]
	if len(header) < len(bearerPrefix) || header[:len(bearerPrefix)] != bearerPrefix {
		return Identity{}, ErrMalformedCredential
	}

	claims, err := codec.Verify(header[len(bearerPrefix):])
	if err != nil {
		return Identity{}, err
	}

	return Identity{UserID: claims.Subject}, nil
}

type Authenticator struct {
	codec  *TokenCodec
	admins AdminChecker
	logger *observability.Logger
}

// NewAuthenticator wires the request guards. With a nil AdminChecker the
// admin gate admits every valid token, which is only acceptable in tests.
func NewAuthenticator(codec *TokenCodec, admins AdminChecker, logger *observability.Logger) *Authenticator {
	if admins == nil {
		logger.Warn("admin_gate_without_store", map[string]any{"effect": "any valid token is treated as admin"})
	}
	return &Authenticator{codec: codec, admins: admins, logger: logger}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := a.admit(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := a.admit(w, r)
		if !ok {
			return
		}

		if a.admins != nil {
			isAdmin, err := a.admins.IsAdmin(r.Context(), identity.UserID)
			if err != nil {
				sentry.CaptureException(err)
				a.logger.Error("admin_lookup_failed", map[string]any{"user_id": identity.UserID.String(), "error": err.Error()})
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !isAdmin {
				a.logger.Warn("auth_rejected", map[string]any{
					"path":    r.URL.Path,
					"user_id": identity.UserID.String(),
					"reason":  ErrForbidden.Error(),
				})
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
		}
		identity.IsAdmin = true

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (a *Authenticator) admit(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, err := Authenticate(a.codec, r.Header)
	if err != nil {
		a.logger.Warn("auth_rejected", map[string]any{
			"path":   r.URL.Path,
			"reason": rejectionReason(err),
			"error":  err.Error(),
		})
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return Identity{}, false
	}
	return identity, true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "malformed_credential"
	}
}
