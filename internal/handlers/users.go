package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/services"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
)

// UserServiceInterface defines account management for the signed-in user
type UserServiceInterface interface {
	SetPhrase(ctx context.Context, user *models.User, input services.PhraseInput) (*models.User, error)
	ChangeDetail(ctx context.Context, user *models.User, input services.ChangeDetailInput) (*models.User, error)
	Subscribe(ctx context.Context, user *models.User, duration, reference string) (*models.User, error)
	DeleteAccount(ctx context.Context, user *models.User, pin, reason string) (int64, error)
}

// UserHandler handles account-level requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type SubscribeRequest struct {
	Duration         string `json:"duration" validate:"required,oneof=oneMonth sixMonth oneYear"`
	PaymentReference string `json:"paymentReference" validate:"required"`
}

type DeleteAccountRequest struct {
	Pin    string `json:"pin" validate:"required"`
	Reason string `json:"reason"`
}

type SetPhraseRequest struct {
	PhraseDigest     string `json:"phraseDigest" validate:"required"`
	AnswerDigest     string `json:"answerDigest" validate:"required"`
	EncryptedPhrase  string `json:"encryptedPhrase"`
	SecurityQuestion string `json:"securityQuestion"`
}

type ChangeDetailRequest struct {
	DetailType string `json:"detailType" validate:"required"`
	FullName   string `json:"fullName"`
	OldPin     string `json:"oldPin"`
	NewPin     string `json:"newPin"`
}

// DeleteAccountResponse reports how many records went with the account
type DeleteAccountResponse struct {
	Message        string `json:"message"`
	RecordsDeleted int64  `json:"recordsDeleted"`
}

// Subscribe handles POST /user/subscribe
func (h *UserHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SubscribeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.service.Subscribe(r.Context(), user, req.Duration, req.PaymentReference)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, UserEnvelope{Message: "Subscription successful", User: userModelToResponse(updated)})
}

// DeleteAccount handles POST /user/delete
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req DeleteAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deleted, err := h.service.DeleteAccount(r.Context(), user, req.Pin, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, DeleteAccountResponse{Message: "Account deleted", RecordsDeleted: deleted})
}

// SetPhrase handles POST /phrase-set
func (h *UserHandler) SetPhrase(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SetPhraseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.service.SetPhrase(r.Context(), user, services.PhraseInput{
		PhraseDigest:     req.PhraseDigest,
		AnswerDigest:     req.AnswerDigest,
		EncryptedPhrase:  req.EncryptedPhrase,
		SecurityQuestion: req.SecurityQuestion,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, UserEnvelope{Message: "Phrase set", User: userModelToResponse(updated)})
}

// ChangeDetail handles POST /change-detail
func (h *UserHandler) ChangeDetail(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ChangeDetailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.service.ChangeDetail(r.Context(), user, services.ChangeDetailInput{
		DetailType: req.DetailType,
		FullName:   req.FullName,
		OldPin:     req.OldPin,
		NewPin:     req.NewPin,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, UserEnvelope{Message: "Details updated", User: userModelToResponse(updated)})
}
