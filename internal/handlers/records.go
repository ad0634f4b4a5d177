package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/services"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
)

// RecordServiceInterface defines the record lifecycle operations
type RecordServiceInterface interface {
	Create(ctx context.Context, owner *models.User, input services.CreateRecordInput) (*models.Record, error)
	Edit(ctx context.Context, owner *models.User, input services.EditRecordInput) (*models.Record, error)
	List(ctx context.Context, owner *models.User) ([]*models.Record, error)
	ChangeStatus(ctx context.Context, owner *models.User, id, status string) ([]*models.Record, error)
	ChangeStatusBulk(ctx context.Context, owner *models.User, ids []string, status string) ([]*models.Record, error)
	Delete(ctx context.Context, owner *models.User, id string) ([]*models.Record, error)
	DeleteBulk(ctx context.Context, owner *models.User, ids []string) ([]*models.Record, error)
}

// RecordHandler serves the /data endpoints
type RecordHandler struct {
	service RecordServiceInterface
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(service RecordServiceInterface) *RecordHandler {
	return &RecordHandler{service: service}
}

type CreateRecordRequest struct {
	Title         string `json:"title" validate:"required"`
	EncryptedData string `json:"encryptedData" validate:"required"`
	Salt          string `json:"salt"`
	Category      string `json:"category" validate:"required,oneof=password bank personal card note"`
}

type EditRecordRequest struct {
	ID            string `json:"id" validate:"required"`
	Title         string `json:"title" validate:"required"`
	EncryptedData string `json:"encryptedData" validate:"required"`
	Salt          string `json:"salt"`
}

type ChangeStatusRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=active recycle"`
}

type ChangeMultipleStatusRequest struct {
	DataListID []string `json:"dataListId" validate:"required,min=1,dive,required"`
	Status     string   `json:"status" validate:"required,oneof=active recycle"`
}

type DeleteRecordRequest struct {
	ID string `json:"id" validate:"required"`
}

type DeleteMultipleRequest struct {
	DataListID []string `json:"dataListId" validate:"required,min=1,dive,required"`
}

// Create handles POST /data/create
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateRecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.service.Create(r.Context(), user, services.CreateRecordInput{
		Title:         req.Title,
		EncryptedData: req.EncryptedData,
		Salt:          req.Salt,
		Category:      req.Category,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, RecordEnvelope{Message: "Data created", Data: recordModelToResponse(record)})
}

// List handles GET /datas/user
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	records, err := h.service.List(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, RecordsEnvelope{Message: "Data fetched", Data: recordsToResponse(records)})
}

// Edit handles POST /data/edit
func (h *RecordHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req EditRecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.service.Edit(r.Context(), user, services.EditRecordInput{
		ID:            req.ID,
		Title:         req.Title,
		EncryptedData: req.EncryptedData,
		Salt:          req.Salt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, RecordEnvelope{Message: "Data updated", Data: recordModelToResponse(record)})
}

// ChangeStatus handles POST /data/change-status
func (h *RecordHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	records, err := h.service.ChangeStatus(r.Context(), user, req.ID, req.Status)
	h.writeList(w, records, err, "Status changed")
}

// ChangeMultipleStatus handles POST /data/change-multiple-status
func (h *RecordHandler) ChangeMultipleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ChangeMultipleStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	records, err := h.service.ChangeStatusBulk(r.Context(), user, req.DataListID, req.Status)
	h.writeList(w, records, err, "Status changed")
}

// Delete handles POST /data/delete
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req DeleteRecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	records, err := h.service.Delete(r.Context(), user, req.ID)
	h.writeList(w, records, err, "Data deleted")
}

// DeleteMultiple handles POST /data/delete-multiple
func (h *RecordHandler) DeleteMultiple(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req DeleteMultipleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	records, err := h.service.DeleteBulk(r.Context(), user, req.DataListID)
	h.writeList(w, records, err, "Data deleted")
}

func (h *RecordHandler) writeList(w http.ResponseWriter, records []*models.Record, err error, message string) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, RecordsEnvelope{Message: message, Data: recordsToResponse(records)})
}
