package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/keypass/internal/models"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
)

// Error codes for business-rule failures that share a status with other errors
const (
	codeInvalidCode        = "invalid_code"
	codeCodeExpired        = "code_expired"
	codeQuotaExceeded      = "quota_exceeded"
	codePremiumRequired    = "premium_required"
	codePaymentFailed      = "payment_verification_failed"
	codeVerificationFailed = "verification_failed"
	codeNothingChanged     = "nothing_changed"
	codeDeliveryFailed     = "delivery_failed"
	codePartialDeletion    = "partial_deletion"
)

// writeServiceError maps a service error onto an HTTP status and JSON error body.
// Unexpected errors become a generic 500 so internals are not leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	msg := err.Error()

	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteValidationError(w, msg, "")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteError(w, http.StatusBadRequest, codeInvalidCode, "Invalid Otp")
	case errors.Is(err, models.ErrCodeExpired):
		pkghttp.WriteError(w, http.StatusBadRequest, codeCodeExpired, "Otp Expired")
	case errors.Is(err, models.ErrQuotaExceeded):
		pkghttp.WriteError(w, http.StatusBadRequest, codeQuotaExceeded, msg)
	case errors.Is(err, models.ErrPremiumRequired):
		pkghttp.WriteError(w, http.StatusBadRequest, codePremiumRequired, msg)
	case errors.Is(err, models.ErrPaymentVerification):
		pkghttp.WriteError(w, http.StatusBadRequest, codePaymentFailed, "Payment could not be verified")
	case errors.Is(err, models.ErrVerificationFailed):
		pkghttp.WriteError(w, http.StatusBadRequest, codeVerificationFailed, msg)
	case errors.Is(err, models.ErrNothingChanged):
		pkghttp.WriteError(w, http.StatusBadRequest, codeNothingChanged, msg)
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, msg)
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, msg)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, msg)
	case errors.Is(err, models.ErrThrottled):
		pkghttp.WriteTooManyRequests(w, msg)
	case errors.Is(err, models.ErrDelivery):
		pkghttp.WriteErrorWithDetails(w, http.StatusInternalServerError, codeDeliveryFailed,
			"Verification email could not be sent", msg)
	case errors.Is(err, models.ErrPartialDeletion):
		pkghttp.WriteError(w, http.StatusInternalServerError, codePartialDeletion,
			"Your records were deleted but the account could not be removed. Please try again.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// decodeAndValidate reads the JSON body into req and runs its validate tags.
// It writes the 400 response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := pkghttp.DecodeJSON(r, req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error(), "")
		return false
	}
	return true
}
