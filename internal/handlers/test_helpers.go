package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/models"
	"github.com/BradenHooton/keypass/internal/services"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthenticatedUser puts user into the request context as the session guard would
func WithAuthenticatedUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), user))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc     func(ctx context.Context, input services.RegisterInput) (*models.User, error)
	LoginFunc        func(ctx context.Context, email, pin string) (*models.User, error)
	VerifyEmailFunc  func(ctx context.Context, email, otp string) (*models.User, error)
	ResendCodeFunc   func(ctx context.Context, email string) error
	ResetPinFunc     func(ctx context.Context, email, otp, newPin string) error
	VerifyPinFunc    func(ctx context.Context, user *models.User, pin string) error
	VerifyPhraseFunc func(ctx context.Context, user *models.User, phraseDigest string) error
	VerifyAnswerFunc func(ctx context.Context, user *models.User, answerDigest string) error
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, input)
}

func (m *MockAuthService) Login(ctx context.Context, email, pin string) (*models.User, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, pin)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email, otp string) (*models.User, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrInvalidCode
	}
	return m.VerifyEmailFunc(ctx, email, otp)
}

func (m *MockAuthService) ResendCode(ctx context.Context, email string) error {
	if m.ResendCodeFunc == nil {
		return nil
	}
	return m.ResendCodeFunc(ctx, email)
}

func (m *MockAuthService) ResetPin(ctx context.Context, email, otp, newPin string) error {
	if m.ResetPinFunc == nil {
		return nil
	}
	return m.ResetPinFunc(ctx, email, otp, newPin)
}

func (m *MockAuthService) VerifyPin(ctx context.Context, user *models.User, pin string) error {
	if m.VerifyPinFunc == nil {
		return nil
	}
	return m.VerifyPinFunc(ctx, user, pin)
}

func (m *MockAuthService) VerifyPhrase(ctx context.Context, user *models.User, phraseDigest string) error {
	if m.VerifyPhraseFunc == nil {
		return nil
	}
	return m.VerifyPhraseFunc(ctx, user, phraseDigest)
}

func (m *MockAuthService) VerifyAnswer(ctx context.Context, user *models.User, answerDigest string) error {
	if m.VerifyAnswerFunc == nil {
		return nil
	}
	return m.VerifyAnswerFunc(ctx, user, answerDigest)
}

// MockRecordService implements RecordServiceInterface for testing
type MockRecordService struct {
	CreateFunc           func(ctx context.Context, owner *models.User, input services.CreateRecordInput) (*models.Record, error)
	EditFunc             func(ctx context.Context, owner *models.User, input services.EditRecordInput) (*models.Record, error)
	ListFunc             func(ctx context.Context, owner *models.User) ([]*models.Record, error)
	ChangeStatusFunc     func(ctx context.Context, owner *models.User, id, status string) ([]*models.Record, error)
	ChangeStatusBulkFunc func(ctx context.Context, owner *models.User, ids []string, status string) ([]*models.Record, error)
	DeleteFunc           func(ctx context.Context, owner *models.User, id string) ([]*models.Record, error)
	DeleteBulkFunc       func(ctx context.Context, owner *models.User, ids []string) ([]*models.Record, error)
}

func (m *MockRecordService) Create(ctx context.Context, owner *models.User, input services.CreateRecordInput) (*models.Record, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, owner, input)
}

func (m *MockRecordService) Edit(ctx context.Context, owner *models.User, input services.EditRecordInput) (*models.Record, error) {
	if m.EditFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.EditFunc(ctx, owner, input)
}

func (m *MockRecordService) List(ctx context.Context, owner *models.User) ([]*models.Record, error) {
	if m.ListFunc == nil {
		return []*models.Record{}, nil
	}
	return m.ListFunc(ctx, owner)
}

func (m *MockRecordService) ChangeStatus(ctx context.Context, owner *models.User, id, status string) ([]*models.Record, error) {
	if m.ChangeStatusFunc == nil {
		return []*models.Record{}, nil
	}
	return m.ChangeStatusFunc(ctx, owner, id, status)
}

func (m *MockRecordService) ChangeStatusBulk(ctx context.Context, owner *models.User, ids []string, status string) ([]*models.Record, error) {
	if m.ChangeStatusBulkFunc == nil {
		return []*models.Record{}, nil
	}
	return m.ChangeStatusBulkFunc(ctx, owner, ids, status)
}

func (m *MockRecordService) Delete(ctx context.Context, owner *models.User, id string) ([]*models.Record, error) {
	if m.DeleteFunc == nil {
		return []*models.Record{}, nil
	}
	return m.DeleteFunc(ctx, owner, id)
}

func (m *MockRecordService) DeleteBulk(ctx context.Context, owner *models.User, ids []string) ([]*models.Record, error) {
	if m.DeleteBulkFunc == nil {
		return []*models.Record{}, nil
	}
	return m.DeleteBulkFunc(ctx, owner, ids)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	SetPhraseFunc     func(ctx context.Context, user *models.User, input services.PhraseInput) (*models.User, error)
	ChangeDetailFunc  func(ctx context.Context, user *models.User, input services.ChangeDetailInput) (*models.User, error)
	SubscribeFunc     func(ctx context.Context, user *models.User, duration, reference string) (*models.User, error)
	DeleteAccountFunc func(ctx context.Context, user *models.User, pin, reason string) (int64, error)
}

func (m *MockUserService) SetPhrase(ctx context.Context, user *models.User, input services.PhraseInput) (*models.User, error) {
	if m.SetPhraseFunc == nil {
		return user, nil
	}
	return m.SetPhraseFunc(ctx, user, input)
}

func (m *MockUserService) ChangeDetail(ctx context.Context, user *models.User, input services.ChangeDetailInput) (*models.User, error) {
	if m.ChangeDetailFunc == nil {
		return user, nil
	}
	return m.ChangeDetailFunc(ctx, user, input)
}

func (m *MockUserService) Subscribe(ctx context.Context, user *models.User, duration, reference string) (*models.User, error) {
	if m.SubscribeFunc == nil {
		return nil, models.ErrPaymentVerification
	}
	return m.SubscribeFunc(ctx, user, duration, reference)
}

func (m *MockUserService) DeleteAccount(ctx context.Context, user *models.User, pin, reason string) (int64, error) {
	if m.DeleteAccountFunc == nil {
		return 0, nil
	}
	return m.DeleteAccountFunc(ctx, user, pin, reason)
}

// MockFeedbackService implements FeedbackServiceInterface for testing
type MockFeedbackService struct {
	SendFunc func(ctx context.Context, user *models.User, ownerID, content string) (*models.Feedback, error)
}

func (m *MockFeedbackService) Send(ctx context.Context, user *models.User, ownerID, content string) (*models.Feedback, error) {
	if m.SendFunc == nil {
		return &models.Feedback{OwnerID: ownerID, Content: content}, nil
	}
	return m.SendFunc(ctx, user, ownerID, content)
}
