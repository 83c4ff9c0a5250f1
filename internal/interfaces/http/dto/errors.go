package dto

import "net/http"

// Error codes surfaced by the API. Stock operations reuse the domain
// codes directly so callers can match on them.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInvalidDelta is used when a stock delta is zero
	ErrCodeInvalidDelta = "INVALID_DELTA"
	// ErrCodeInvalidAmount is used when a usage or restock amount is not positive
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	// ErrCodeConcurrencyExhausted is used when the conditional write retry budget runs out
	ErrCodeConcurrencyExhausted = "CONCURRENCY_EXHAUSTED"
	// ErrCodeLogWriteFailed is used when the usage ledger could not be written
	ErrCodeLogWriteFailed = "LOG_WRITE_FAILED"
	// ErrCodeCounterUpdateFailed is used when the ledger was written but the level update failed
	ErrCodeCounterUpdateFailed = "COUNTER_UPDATE_FAILED"
	// ErrCodeDuplicateRequest is used when an idempotency key was already processed
	ErrCodeDuplicateRequest = "DUPLICATE_REQUEST"
	// ErrCodeUnauthorized is used when authentication is required but missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeRateLimited is used when the rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,

	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidDelta:  http.StatusBadRequest,
	ErrCodeInvalidAmount: http.StatusBadRequest,

	ErrCodeConcurrencyExhausted: http.StatusConflict,
	ErrCodeDuplicateRequest:     http.StatusConflict,
	ErrCodeLogWriteFailed:       http.StatusInternalServerError,
	ErrCodeCounterUpdateFailed:  http.StatusInternalServerError,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
