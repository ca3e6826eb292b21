package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"travel-booking/internal/auth"
)

const (
	maxJSONBodyBytes      = 1 << 20
	maxSpecialRequestsLen = 2000
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	PackageID       string  `json:"package_id"`
	BookingDate     string  `json:"booking_date"`
	NumberOfPeople  int     `json:"number_of_people"`
	SpecialRequests *string `json:"special_requests"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body createRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	input, details := validateCreate(body)
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "details": details})
		return
	}

	created, err := h.service.Create(r.Context(), identity.UserID, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrPackageUnavailable):
			writeError(w, http.StatusNotFound, "package not found")
		case errors.Is(err, ErrGroupTooLarge), errors.Is(err, ErrTotalTooLarge):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to create booking")
		}
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	views, err := h.service.ListMine(r.Context(), identity.UserID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch bookings")
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	view, err := h.service.GetMine(r.Context(), id, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch booking")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) CancelMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if err := h.service.CancelMine(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found or cannot be cancelled")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "booking cancelled"})
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAll(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch bookings")
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var body statusRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.UpdateStatus(r.Context(), id, strings.TrimSpace(body.Status)); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "status must be one of pending, confirmed, cancelled, completed")
		case errors.Is(err, ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update booking status")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "booking status updated"})
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validateCreate(body createRequest) (CreateInput, []fieldError) {
	var input CreateInput
	var details []fieldError

	packageID, err := uuid.Parse(body.PackageID)
	if err != nil {
		details = append(details, fieldError{Field: "package_id", Message: "must be a valid id"})
	}
	input.PackageID = packageID

	date, err := ParseDate(strings.TrimSpace(body.BookingDate))
	if err != nil {
		details = append(details, fieldError{Field: "booking_date", Message: "must be a date in YYYY-MM-DD format"})
	}
	input.BookingDate = date

	if body.NumberOfPeople < 1 {
		details = append(details, fieldError{Field: "number_of_people", Message: "must be at least 1"})
	}
	input.NumberOfPeople = body.NumberOfPeople

	if body.SpecialRequests != nil {
		requests := strings.TrimSpace(*body.SpecialRequests)
		if len(requests) > maxSpecialRequestsLen {
			details = append(details, fieldError{Field: "special_requests", Message: "is too long"})
		}
		if requests != "" {
			input.SpecialRequests = &requests
		}
	}

	return input, details
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
