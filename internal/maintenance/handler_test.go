package maintenance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"travel-booking/internal/observability"
)

type stubPurger struct {
	cutoff    time.Time
	batchSize int
	deleted   int64
	err       error
	calls     int
}

func (s *stubPurger) DeleteStaleLoginAttempts(_ context.Context, cutoff time.Time, batchSize int) (int64, error) {
	s.calls++
	s.cutoff, s.batchSize = cutoff, batchSize
	return s.deleted, s.err
}

func runCleanup(h *CleanupHandler, method, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/internal/maintenance/cleanup", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCleanup_DisabledWithoutSecret(t *testing.T) {
	purger := &stubPurger{}
	h := NewCleanupHandler(purger, observability.NewDiscardLogger(), "  ", 30*24*time.Hour, 500)

	assert.Equal(t, http.StatusNotFound, runCleanup(h, http.MethodPost, "Bearer anything").Code)
	assert.Zero(t, purger.calls)
}

func TestCleanup_RequiresSecret(t *testing.T) {
	purger := &stubPurger{}
	h := NewCleanupHandler(purger, observability.NewDiscardLogger(), "cron-secret", 30*24*time.Hour, 500)

	assert.Equal(t, http.StatusUnauthorized, runCleanup(h, http.MethodPost, "").Code)
	assert.Equal(t, http.StatusUnauthorized, runCleanup(h, http.MethodPost, "Bearer wrong").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, runCleanup(h, http.MethodDelete, "Bearer cron-secret").Code)
	assert.Zero(t, purger.calls)
}

func TestCleanup_DeletesStaleAttempts(t *testing.T) {
	purger := &stubPurger{deleted: 7}
	h := NewCleanupHandler(purger, observability.NewDiscardLogger(), "cron-secret", 30*24*time.Hour, 250)
	now := time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	rec := runCleanup(h, http.MethodGet, "Bearer cron-secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","result":{"deleted_login_attempts":7}}`, rec.Body.String())
	assert.Equal(t, now.Add(-30*24*time.Hour), purger.cutoff)
	assert.Equal(t, 250, purger.batchSize)
}

func TestCleanup_Failure(t *testing.T) {
	h := NewCleanupHandler(&stubPurger{err: errors.New("db down")}, observability.NewDiscardLogger(), "cron-secret", time.Hour, 10)

	assert.Equal(t, http.StatusInternalServerError, runCleanup(h, http.MethodPost, "Bearer cron-secret").Code)
}
