//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/config"
	"github.com/BradenHooton/keypass/internal/database"
	"github.com/BradenHooton/keypass/internal/handlers"
	middlewareCustom "github.com/BradenHooton/keypass/internal/middleware"
	"github.com/BradenHooton/keypass/internal/repositories"
	"github.com/BradenHooton/keypass/internal/routes"
	"github.com/BradenHooton/keypass/internal/services"
	pkgauth "github.com/BradenHooton/keypass/pkg/auth"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
)

// CapturingMailer records every outbound message for assertions
type CapturingMailer struct {
	mu   sync.Mutex
	Sent []services.EmailMessage
}

func (m *CapturingMailer) Send(ctx context.Context, msg services.EmailMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return fmt.Sprintf("test-%d", len(m.Sent)), nil
}

// LastTo returns the most recent message addressed to email
func (m *CapturingMailer) LastTo(email string) *services.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Sent) - 1; i >= 0; i-- {
		for _, to := range m.Sent[i].To {
			if to == email {
				msg := m.Sent[i]
				return &msg
			}
		}
	}
	return nil
}

// StubPayments accepts the references listed in Settled
type StubPayments struct {
	Settled map[string]bool
}

func (p *StubPayments) Verify(ctx context.Context, reference string) (*services.PaymentResult, error) {
	if !p.Settled[reference] {
		return nil, fmt.Errorf("reference %s not settled", reference)
	}
	return &services.PaymentResult{Reference: reference, Status: "success", Amount: 150000}, nil
}

// TestServer wraps httptest.Server with the real database and stubbed collaborators
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Mailer   *CapturingMailer
	Payments *StubPayments
	Config   *config.Config

	Records       *services.RecordService
	Subscriptions *services.SubscriptionService
}

// NewTestServer wires the production router against db
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.Defaults()
	cfg.Server.Env = "test"
	cfg.Auth.JWTSecret = "test-secret-32-characters-long-for-testing"
	cfg.Auth.BcryptCost = 4
	cfg.Auth.ResendCooldown = 0
	cfg.Email.AdminEmail = "admin@keypass.test"

	userRepo := repositories.NewUserRepository(db)
	recordRepo := repositories.NewRecordRepository(db)
	feedbackRepo := repositories.NewFeedbackRepository(db)

	mailer := &CapturingMailer{}
	payments := &StubPayments{Settled: map[string]bool{}}
	notifier := services.NewNotifier(mailer, cfg.Email.AdminEmail, logger)
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	auditLogger := pkglogger.NewAuditLogger(logger)

	authService := services.NewAuthService(userRepo, hasher, auth.NewOTPGenerator(), tokenManager,
		auth.NewGuestPolicy(false, nil, "", 0), notifier, logger, auditLogger,
		services.AuthSettings{OTPTTL: cfg.Auth.OTPTTL, ResendCooldown: cfg.Auth.ResendCooldown})
	recordService := services.NewRecordService(recordRepo, logger, services.RecordSettings{
		FreeQuota:        cfg.Records.FreeQuota,
		RecycleRetention: cfg.Records.RecycleRetention,
	})
	userService := services.NewUserService(userRepo, recordRepo, hasher, payments, notifier, logger, auditLogger, cfg.Subscription.MonthLength)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.ClientIP(nil))
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r,
		routes.Handlers{
			Auth:     handlers.NewAuthHandler(authService),
			Records:  handlers.NewRecordHandler(recordService),
			Users:    handlers.NewUserHandler(userService),
			Feedback: handlers.NewFeedbackHandler(services.NewFeedbackService(feedbackRepo, logger)),
			Health:   handlers.Health(db),
		},
		auth.NewSessionGuard(tokenManager, userRepo, logger, auditLogger),
		routes.Limits{
			PerIP:   middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
			PerUser: middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
		},
	)

	return &TestServer{
		Server:        httptest.NewServer(r),
		DB:            db,
		Mailer:        mailer,
		Payments:      payments,
		Config:        cfg,
		Records:       recordService,
		Subscriptions: services.NewSubscriptionService(userRepo, notifier, logger),
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes a request carrying the session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

// ParseJSONResponse decodes the response body into target and closes it
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ParseErrorCode returns the machine-readable code of an error response
func ParseErrorCode(resp *http.Response) (string, error) {
	var body pkghttp.ErrorResponse
	if err := ParseJSONResponse(resp, &body); err != nil {
		return "", err
	}
	return body.Error, nil
}
