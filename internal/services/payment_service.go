package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/keypass/internal/models"
)

// PaymentResult is the provider's view of a settled transaction
type PaymentResult struct {
	Reference string
	Status    string
	Amount    int64 // minor units
}

// PaymentVerifier confirms that a client-side payment actually settled
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*PaymentResult, error)
}

// PaystackVerifier checks references against the Paystack transaction API
type PaystackVerifier struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  *slog.Logger
}

// NewPaystackVerifier creates a new PaystackVerifier
func NewPaystackVerifier(baseURL, secret string, timeout time.Duration, logger *slog.Logger) *PaystackVerifier {
	return &PaystackVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// Verify succeeds only when the provider reports the transaction as "success"
func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (*PaymentResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", models.ErrPaymentVerification)
	}

	endpoint := fmt.Sprintf("%s/transaction/verify/%s", v.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentVerification, err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("payment provider unreachable", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrPaymentVerification, err)
	}
	defer resp.Body.Close()

	var body paystackVerifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: unreadable provider response (status %d)", models.ErrPaymentVerification, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", models.ErrPaymentVerification, body.Message)
	}

	if body.Data.Status != "success" {
		return nil, fmt.Errorf("%w: transaction status %q", models.ErrPaymentVerification, body.Data.Status)
	}

	return &PaymentResult{
		Reference: body.Data.Reference,
		Status:    body.Data.Status,
		Amount:    body.Data.Amount,
	}, nil
}
