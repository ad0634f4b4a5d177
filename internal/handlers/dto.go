package handlers

import (
	"time"

	"github.com/BradenHooton/keypass/internal/models"
)

// Timestamps leave the API as epoch milliseconds

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// UserResponse is the public view of a user. Credential hashes, the pending
// code and the session token are never included.
type UserResponse struct {
	ID                     string `json:"id"`
	FullName               string `json:"fullName"`
	Email                  string `json:"email"`
	Salt                   string `json:"salt"`
	Plan                   string `json:"plan"`
	SubscriptionDuration   string `json:"subscriptionDuration,omitempty"`
	SubscriptionExpiry     *int64 `json:"subscriptionExpiry,omitempty"`
	VerificationPending    bool   `json:"verificationPending"`
	VerificationCodeExpiry *int64 `json:"verificationCodeExpiry,omitempty"`
	IsPhraseSet            bool   `json:"isPhraseSet"`
	SecurityQuestion       string `json:"securityQuestion,omitempty"`
	EncryptedPhrase        string `json:"encryptedPhrase,omitempty"`
	CreatedAt              int64  `json:"createdAt"`
	UpdatedAt              int64  `json:"updatedAt"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:                     user.ID,
		FullName:               user.FullName,
		Email:                  user.Email,
		Salt:                   user.Salt,
		Plan:                   user.Plan,
		SubscriptionDuration:   user.SubscriptionDuration,
		SubscriptionExpiry:     millisPtr(user.SubscriptionExpiry),
		VerificationPending:    user.HasPendingCode(),
		VerificationCodeExpiry: millisPtr(user.VerificationCodeExpiry),
		IsPhraseSet:            user.IsPhraseSet,
		SecurityQuestion:       user.SecurityQuestion,
		EncryptedPhrase:        user.EncryptedPhrase,
		CreatedAt:              millis(user.CreatedAt),
		UpdatedAt:              millis(user.UpdatedAt),
	}
}

// RecordResponse is a stored record; encryptedData and salt are returned as stored
type RecordResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"ownerId"`
	Title             string `json:"title"`
	EncryptedData     string `json:"encryptedData"`
	Salt              string `json:"salt"`
	Category          string `json:"category"`
	Status            string `json:"status"`
	Plan              string `json:"plan"`
	DataRecycleExpiry *int64 `json:"dataRecycleExpiry,omitempty"`
	CreatedAt         int64  `json:"createdAt"`
	UpdatedAt         int64  `json:"updatedAt"`
}

func recordModelToResponse(r *models.Record) *RecordResponse {
	return &RecordResponse{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Title:             r.Title,
		EncryptedData:     r.EncryptedData,
		Salt:              r.Salt,
		Category:          r.Category,
		Status:            r.Status,
		Plan:              r.Plan,
		DataRecycleExpiry: millisPtr(r.DataRecycleExpiry),
		CreatedAt:         millis(r.CreatedAt),
		UpdatedAt:         millis(r.UpdatedAt),
	}
}

func recordsToResponse(records []*models.Record) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordModelToResponse(r))
	}
	return out
}

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// UserEnvelope wraps a user with a confirmation message
type UserEnvelope struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user"`
}

// SessionResponse is returned once a code has been verified
type SessionResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    *UserResponse `json:"user"`
}

// RecordsEnvelope wraps the caller's full record list
type RecordsEnvelope struct {
	Message string            `json:"message"`
	Data    []*RecordResponse `json:"data"`
}

// RecordEnvelope wraps a single record
type RecordEnvelope struct {
	Message string          `json:"message"`
	Data    *RecordResponse `json:"data"`
}
