package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/services"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, pin string) (*models.User, error)
	VerifyEmail(ctx context.Context, email, otp string) (*models.User, error)
	ResendCode(ctx context.Context, email string) error
	ResetPin(ctx context.Context, email, otp, newPin string) error
	VerifyPin(ctx context.Context, user *models.User, pin string) error
	VerifyPhrase(ctx context.Context, user *models.User, phraseDigest string) error
	VerifyAnswer(ctx context.Context, user *models.User, answerDigest string) error
}

// AuthHandler handles registration, login and the OTP flow
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// RegisterRequest is validated by the service so its error order is preserved
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Pin      string `json:"pin"`
	Salt     string `json:"salt"`
}

type LoginRequest struct {
	Email string `json:"email" validate:"required"`
	Pin   string `json:"pin" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Otp   string `json:"otp" validate:"required"`
}

type SendEmailCodeRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPinRequest struct {
	Email  string `json:"email" validate:"required"`
	Otp    string `json:"otp" validate:"required"`
	NewPin string `json:"newPin" validate:"required"`
}

type VerifyPinRequest struct {
	Pin string `json:"pin" validate:"required"`
}

type VerifyPhraseRequest struct {
	PhraseDigest string `json:"phraseDigest" validate:"required"`
}

type VerifyAnswerRequest struct {
	AnswerDigest string `json:"answerDigest" validate:"required"`
}

// requireUser returns the guarded user or writes 401
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "UnAuthorized Access")
		return nil, false
	}
	return user, true
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Pin:      req.Pin,
		Salt:     req.Salt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, UserEnvelope{
		Message: "Registration successful. Check your email for the verification code.",
		User:    userModelToResponse(user),
	})
}

// Login handles POST /login. A correct PIN starts the OTP step; no session is issued yet.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Pin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, UserEnvelope{
		Message: "Otp sent",
		User:    userModelToResponse(user),
	})
}

// VerifyEmail handles POST /verify-email and returns the new session token
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), req.Email, req.Otp)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, SessionResponse{
		Message: "Email verified",
		Token:   user.SessionToken,
		User:    userModelToResponse(user),
	})
}

// SendEmailCode handles POST /send-email-code
func (h *AuthHandler) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req SendEmailCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResendCode(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, MessageResponse{Message: "Otp sent"})
}

// ResetPin handles POST /reset-pin
func (h *AuthHandler) ResetPin(w http.ResponseWriter, r *http.Request) {
	var req ResetPinRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResetPin(r.Context(), req.Email, req.Otp, req.NewPin); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, MessageResponse{Message: "Pin reset successful"})
}

// VerifyPin handles POST /verify-pin
func (h *AuthHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req VerifyPinRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.VerifyPin(r.Context(), user, req.Pin); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, MessageResponse{Message: "Pin verified"})
}

// VerifyPhrase handles POST /verify-phrase
func (h *AuthHandler) VerifyPhrase(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req VerifyPhraseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.VerifyPhrase(r.Context(), user, req.PhraseDigest); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, MessageResponse{Message: "Phrase verified"})
}

// VerifyAnswer handles POST /verify-answer
func (h *AuthHandler) VerifyAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req VerifyAnswerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.VerifyAnswer(r.Context(), user, req.AnswerDigest); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, MessageResponse{Message: "Answer verified"})
}

// AuthenticateUser handles GET /authenticate-user
func (h *AuthHandler) AuthenticateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pkghttp.WriteOK(w, UserEnvelope{Message: "Authenticated", User: userModelToResponse(user)})
}
