package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/keypass/internal/models"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
)

// FeedbackServiceInterface stores user feedback
type FeedbackServiceInterface interface {
	Send(ctx context.Context, user *models.User, ownerID, content string) (*models.Feedback, error)
}

// FeedbackHandler handles POST /send-feedback
type FeedbackHandler struct {
	service FeedbackServiceInterface
}

// NewFeedbackHandler creates a new FeedbackHandler
func NewFeedbackHandler(service FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type SendFeedbackRequest struct {
	Content string `json:"content" validate:"required"`
	OwnerID string `json:"ownerId" validate:"required"`
}

func (h *FeedbackHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req SendFeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.service.Send(r.Context(), user, req.OwnerID, req.Content); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, MessageResponse{Message: "Feedback sent"})
}
