package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/netsync/apiserver/internal/credentials"
	"github.com/netsync/apiserver/internal/services"
	"github.com/netsync/apiserver/types"
)

const maxBodyBytes = 1 << 20

// AuthHandler provides signup, verification and login endpoints.
type AuthHandler struct {
	identity *services.IdentityService
	log      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(identity *services.IdentityService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, identity *services.IdentityService, log *slog.Logger) {
	handler := NewAuthHandler(identity, log)

	r.Post("/signup/organizer", handler.SignupOrganizer)
	r.Post("/signup/attendee", handler.SignupAttendee)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Post("/resend-code", handler.ResendCode)
	r.Post("/login", handler.Login)
}

// SignupOrganizer creates an organizer and its tenant.
func (h *AuthHandler) SignupOrganizer(w http.ResponseWriter, r *http.Request) {
	var req OrganizerSignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.SignupOrganizer(r.Context(), services.OrganizerSignup{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		OrgName:  req.OrgName,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SignupResponse{
		Message:  "Organizer created. Verify email.",
		TenantID: res.TenantID,
		Account:  res.Account,
	})
}

// SignupAttendee creates an attendee.
func (h *AuthHandler) SignupAttendee(w http.ResponseWriter, r *http.Request) {
	var req AttendeeSignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.SignupAttendee(r.Context(), services.AttendeeSignup{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		TenantID: req.TenantID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SignupResponse{
		Message: "Attendee created. Verify email.",
		Account: res.Account,
	})
}

// VerifyEmail checks a verification code.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	already, err := h.identity.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if already {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Email already verified"})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

// ResendCode issues a fresh verification code.
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	already, err := h.identity.ResendCode(r.Context(), req.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if already {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Email already verified"})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Verification code resent"})
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(res.ExpiresIn.Seconds()),
	})
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		policyErr *credentials.PolicyError
		inputErr  *services.InputError
	)
	switch {
	case errors.Is(err, services.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.As(err, &policyErr):
		writeError(w, http.StatusUnprocessableEntity, policyErr.Reason)
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "Code expired")
	case errors.Is(err, services.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Invalid code")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, "Email not verified")
	default:
		h.log.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type OrganizerSignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OrgName  string `json:"org_name"`
}

type AttendeeSignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResendCodeRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupResponse struct {
	Message  string        `json:"message"`
	TenantID string        `json:"tenant_id,omitempty"`
	Account  types.Account `json:"account"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}
