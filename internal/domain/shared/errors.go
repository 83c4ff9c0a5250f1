package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code, so a constructed error compares equal
// to its sentinel under errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidDelta         = NewDomainError("INVALID_DELTA", "Delta must be non-zero")
	ErrInvalidAmount        = NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrConcurrencyExhausted = NewDomainError("CONCURRENCY_EXHAUSTED", "Conditional write did not apply within the attempt budget")
	ErrLogWriteFailed       = NewDomainError("LOG_WRITE_FAILED", "Usage event could not be written")
	ErrCounterUpdateFailed  = NewDomainError("COUNTER_UPDATE_FAILED", "Usage event was written but the stock level update failed")
	ErrDuplicateRequest     = NewDomainError("DUPLICATE_REQUEST", "A request with this idempotency key was already processed")
)

// NewCounterUpdateFailed builds a COUNTER_UPDATE_FAILED error carrying the
// retained usage event ID, so callers know which ledger entry survived.
func NewCounterUpdateFailed(eventID string) *DomainError {
	return NewDomainError(ErrCounterUpdateFailed.Code,
		"Usage event "+eventID+" was recorded but the stock level update failed; reconcile the item")
}
