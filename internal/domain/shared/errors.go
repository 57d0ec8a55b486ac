package shared

import "errors"

// Error codes
const (
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidInput       = "INVALID_INPUT"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
	CodeCollaboratorFailed = "COLLABORATOR_FAILED"
	CodeCancelled          = "CANCELLED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Wrap attaches a code and message to err
func Wrap(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or ""
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidConfig      = NewDomainError(CodeInvalidConfig, "invalid configuration")
	ErrInvalidInput       = NewDomainError(CodeInvalidInput, "invalid input")
	ErrPersistenceFailed  = NewDomainError(CodePersistenceFailed, "failed to persist pipeline artifacts")
	ErrCollaboratorFailed = NewDomainError(CodeCollaboratorFailed, "downstream collaborator failed")
)
