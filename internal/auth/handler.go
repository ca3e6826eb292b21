package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxJSONBodyBytes = 1 << 20

type UserLister interface {
	ListUsers(ctx context.Context) ([]User, error)
}

type Handler struct {
	service *Service
	users   UserLister
}

func NewHandler(service *Service, users UserLister) *Handler {
	return &Handler{service: service, users: users}
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	if body.Phone != nil {
		phone := strings.TrimSpace(*body.Phone)
		body.Phone = &phone
		if phone == "" {
			body.Phone = nil
		}
	}

	if details := validateRegister(body); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "details": details})
		return
	}

	result, err := h.service.Register(r.Context(), RegisterInput{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "user with this email already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if !emailRegex.MatchString(strings.TrimSpace(body.Email)) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": []fieldError{{Field: "email", Message: "must be a valid email"}},
		})
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(time.Until(lockedErr.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "login temporarily locked")
			return
		}

		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user.Response())
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token, err := h.service.Refresh(identity)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, AdminUserResponse{UserResponse: u.Response(), IsActive: u.IsActive})
	}

	writeJSON(w, http.StatusOK, response)
}

func validateRegister(body registerRequest) []fieldError {
	var details []fieldError
	if !emailRegex.MatchString(body.Email) || len(body.Email) > 254 {
		details = append(details, fieldError{Field: "email", Message: "must be a valid email"})
	}
	if utf8.RuneCountInString(body.Password) < minPasswordLength {
		details = append(details, fieldError{Field: "password", Message: "must be at least 6 characters"})
	} else if len(body.Password) > maxPasswordBytes {
		details = append(details, fieldError{Field: "password", Message: "must be at most 72 bytes"})
	}
	if body.FirstName == "" || len(body.FirstName) > 100 {
		details = append(details, fieldError{Field: "first_name", Message: "is required"})
	}
	if body.LastName == "" || len(body.LastName) > 100 {
		details = append(details, fieldError{Field: "last_name", Message: "is required"})
	}
	if body.Phone != nil && len(*body.Phone) > 32 {
		details = append(details, fieldError{Field: "phone", Message: "is too long"})
	}
	return details
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
