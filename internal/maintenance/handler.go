package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"travel-booking/internal/observability"
)

type LoginAttemptPurger interface {
	DeleteStaleLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type CleanupResult struct {
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
}

// CleanupHandler is triggered by an external scheduler. It is disabled
// (404) unless a cron secret is configured.
type CleanupHandler struct {
	purger                LoginAttemptPurger
	logger                *observability.Logger
	cronSecret            string
	loginAttemptRetention time.Duration
	batchSize             int
	now                   func() time.Time
}

func NewCleanupHandler(
	purger LoginAttemptPurger,
	logger *observability.Logger,
	cronSecret string,
	loginAttemptRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		purger:                purger,
		logger:                logger,
		cronSecret:            strings.TrimSpace(cronSecret),
		loginAttemptRetention: loginAttemptRetention,
		batchSize:             batchSize,
		now:                   time.Now,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	scheme, token, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !strings.EqualFold(scheme, "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := h.now().UTC().Add(-h.loginAttemptRetention)
	deleted, err := h.purger.DeleteStaleLoginAttempts(r.Context(), cutoff, h.batchSize)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	result := CleanupResult{DeletedLoginAttempts: deleted}
	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_login_attempts": result.DeletedLoginAttempts,
		"cutoff":                 cutoff.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
