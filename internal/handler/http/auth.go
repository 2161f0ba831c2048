// Package http exposes the session manager over a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/service"
	apperrors "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/errors"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/middleware"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.SessionService
	cookies CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.SessionService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. Phone numbers
// are stored as given; formats vary too much across markets to validate
// structurally here.
type RegisterRequest struct {
	Email             string `json:"email" validate:"required,email"`
	PhoneNumber       string `json:"phoneNumber" validate:"required,min=1,max=20"`
	Password          string `json:"password" validate:"required"`
	FullName          string `json:"fullName" validate:"required,min=1,max=200"`
	UserType          string `json:"userType" validate:"required,oneof=customer seller"`
	PreferredLanguage string `json:"preferredLanguage" validate:"omitempty,min=2,max=10"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the JSON request body for token refresh, used by clients
// that cannot send the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest is the JSON request body for forgot password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for password reset. The
// token itself comes from the URL path.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// --- Response types ---

// AuthResponse is the payload returned by register and login: the user's
// public profile plus the token pair, for clients that cannot use cookies.
type AuthResponse struct {
	User         *domain.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body: " + err.Error()})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Password:          req.Password,
		FullName:          req.FullName,
		Role:              req.UserType,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	setAuthCookies(w, h.cookies, tokens)
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "registration successful",
		Data: AuthResponse{
			User:         user,
			Token:        tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		},
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body: " + err.Error()})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	setAuthCookies(w, h.cookies, tokens)
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "login successful",
		Data: AuthResponse{
			User:         user,
			Token:        tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		},
	})
}

// Logout handles POST /api/v1/auth/logout. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	input := service.LogoutInput{
		UserID:      middleware.UserIDFromContext(r.Context()),
		AccessToken: middleware.AccessTokenFromContext(r.Context()),
	}
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		input.RefreshToken = c.Value
	}

	h.service.Logout(r.Context(), input)

	clearAuthCookies(w, h.cookies)
	writeJSON(w, http.StatusOK, response{Success: true, Message: "logged out successfully"})
}

// LogoutAll handles POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, response{Message: "user not authenticated"})
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	clearAuthCookies(w, h.cookies)
	writeJSON(w, http.StatusOK, response{Success: true, Message: "logged out from all devices"})
}

// Refresh handles POST /api/v1/auth/refresh-token. The refresh token comes
// from the cookie when present, otherwise from the request body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
		var req RefreshRequest
		// The body is optional for cookie-based clients.
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	setAuthCookies(w, h.cookies, tokens)
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "token refreshed",
		Data:    tokens,
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, response{Message: "user not authenticated"})
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: user})
}

// UserByID handles GET /api/v1/auth/users/{id}, the admin-only account
// lookup used by the support dashboard.
func (h *AuthHandler) UserByID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: user})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. The response is
// identical whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body: " + err.Error()})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	msg, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Message: msg})
}

// ResetPassword handles POST /api/v1/auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	token := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid request body: " + err.Error()})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "password has been reset, please log in again",
	})
}

// --- Shared response helpers ---

// response is the envelope for every JSON reply. Success responses set
// Success true; errors carry a human-readable message and rely on the HTTP
// status as the machine-readable signal.
type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", appErr.Error()),
			)
			writeJSON(w, appErr.Status, response{Message: "an internal error occurred"})
			return
		}
		writeJSON(w, appErr.Status, response{Message: appErr.Message})
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, response{Message: "an internal error occurred"})
		return
	}

	writeJSON(w, status, response{Message: err.Error()})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
}
