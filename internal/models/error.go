package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// One-time code errors
	ErrInvalidCode = errors.New("invalid verification code")
	ErrCodeExpired = errors.New("verification code expired")
	ErrThrottled   = errors.New("wait before requesting a new code")

	// Plan rules
	ErrQuotaExceeded   = errors.New("free plan record limit reached")
	ErrPremiumRequired = errors.New("premium plan required")

	// Session errors
	ErrMissingCredential  = errors.New("missing authorization credential")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionSuperseded  = errors.New("a different device is logged in")
	ErrVerificationFailed = errors.New("verification failed")

	// Collaborator failures
	ErrDelivery            = errors.New("email delivery failed")
	ErrPaymentVerification = errors.New("payment verification failed")

	ErrNothingChanged  = errors.New("no records were changed")
	ErrPartialDeletion = errors.New("account records deleted but user removal failed")
)
