package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

var allowedURLChars = regexp.MustCompile(`^[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)
var allowedHost = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

const (
	maxJSONBodyBytes = 1 << 20
	defaultPageSize  = 20
	maxPageSize      = 100
	featuredLimit    = 6

	// Caps keep price * max_people inside the INTEGER total_amount column.
	maxPrice     = 10_000_000
	maxGroupSize = 200
)

// Store is what the HTTP layer needs from the catalog repository.
type Store interface {
	ListActive(ctx context.Context, limit, offset int) (PackagePage, error)
	ListFeatured(ctx context.Context, limit int) ([]Package, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, limit, offset int) ([]Package, error)
	GetActive(ctx context.Context, id uuid.UUID) (Package, error)
	Create(ctx context.Context, input PackageInput) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, input PackageInput) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (Category, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	page, err := h.store.ListActive(r.Context(), limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch packages")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) FeaturedPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.store.ListFeatured(r.Context(), featuredLimit)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch featured packages")
		return
	}

	writeJSON(w, http.StatusOK, packages)
}

func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid package id")
	if !ok {
		return
	}

	p, err := h.store.GetActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			writeError(w, http.StatusNotFound, "package not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch package")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) PackagesByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathUUID(w, r, "category_id", "invalid category id")
	if !ok {
		return
	}
	limit, offset := parsePagination(r)

	packages, err := h.store.ListByCategory(r.Context(), categoryID, limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch packages")
		return
	}

	writeJSON(w, http.StatusOK, packages)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch categories")
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	input, ok := parsePackageInput(w, r)
	if !ok {
		return
	}

	id, err := h.store.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create package")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "package created", "package_id": id})
}

func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid package id")
	if !ok {
		return
	}

	input, ok := parsePackageInput(w, r)
	if !ok {
		return
	}

	if err := h.store.Update(r.Context(), id, input); err != nil {
		switch {
		case errors.Is(err, ErrPackageNotFound):
			writeError(w, http.StatusNotFound, "package not found")
		case errors.Is(err, ErrCategoryNotFound):
			writeError(w, http.StatusBadRequest, "category not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update package")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "package updated"})
}

func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid package id")
	if !ok {
		return
	}

	if err := h.store.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			writeError(w, http.StatusNotFound, "package not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete package")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "package deleted"})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input CategoryInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || !utf8.ValidString(input.Name) || len(input.Name) > 100 {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.store.CreateCategory(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrCategoryExists) {
			writeError(w, http.StatusConflict, "category already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

// parsePagination never fails: missing or unparsable values fall back to the
// defaults and the limit is clamped to [1, maxPageSize].
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	limit = min(max(limit, 1), maxPageSize)

	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = max(parsed, 0)
		}
	}

	return limit, offset
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}

func parsePackageInput(w http.ResponseWriter, r *http.Request) (PackageInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input PackageInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return PackageInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return PackageInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return PackageInput{}, false
	}
	if utf8.RuneCountInString(input.Description) < 10 {
		writeError(w, http.StatusBadRequest, "description must be at least 10 characters")
		return PackageInput{}, false
	}
	if input.Price < 1 || input.Price > maxPrice {
		writeError(w, http.StatusBadRequest, "price must be between 1 and 10000000")
		return PackageInput{}, false
	}
	if input.DurationDays < 1 {
		writeError(w, http.StatusBadRequest, "duration_days must be >= 1")
		return PackageInput{}, false
	}
	if input.MaxPeople < 1 || input.MaxPeople > maxGroupSize {
		writeError(w, http.StatusBadRequest, "max_people must be between 1 and 200")
		return PackageInput{}, false
	}
	if _, err := uuid.Parse(input.CategoryID); err != nil {
		writeError(w, http.StatusBadRequest, "category_id is invalid")
		return PackageInput{}, false
	}
	if len(input.Itinerary) > 0 && !json.Valid(input.Itinerary) {
		writeError(w, http.StatusBadRequest, "itinerary is invalid")
		return PackageInput{}, false
	}

	if input.ImageURL != nil {
		imageURL := strings.TrimSpace(*input.ImageURL)
		if imageURL == "" {
			input.ImageURL = nil
		} else {
			if msg := validateImageURL(imageURL); msg != "" {
				writeError(w, http.StatusBadRequest, msg)
				return PackageInput{}, false
			}
			input.ImageURL = &imageURL
		}
	}

	return input, true
}

func validateImageURL(raw string) string {
	if len(raw) > 500 || !isASCII(raw) || !allowedURLChars.MatchString(raw) {
		return "image_url contains invalid characters"
	}
	parsedURL, err := url.ParseRequestURI(raw)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "image_url must be a valid link"
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "image_url must start with http or https"
	}
	if parsedURL.User != nil || !allowedHost.MatchString(parsedURL.Hostname()) {
		return "image_url host is invalid"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < 32 || value[i] > 126 {
			return false
		}
	}
	return true
}
