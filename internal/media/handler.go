package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const (
	maxUploadSizeBytes = 10 << 20
)

type UploadHandler struct {
	uploader ImageUploader
}

type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
}

func NewUploadHandler(uploader ImageUploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSizeBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "image is empty")
		return
	}
	if len(data) > maxUploadSizeBytes {
		writeError(w, http.StatusBadRequest, "image is too large")
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	url, err := h.uploader.UploadImage(r.Context(), data, contentType)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload image")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
