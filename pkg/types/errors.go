package types

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a ledger error
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindNotFound          ErrorKind = "not_found"
	KindDuplicate         ErrorKind = "duplicate"
	KindAccessDenied      ErrorKind = "access_denied"
	KindInvalidRole       ErrorKind = "invalid_role"
	KindInvalidParameter  ErrorKind = "invalid_parameter"
	KindTaskFailed        ErrorKind = "task_failed"
	KindFrequencyExceeded ErrorKind = "frequency_exceeded"
	KindTimeout           ErrorKind = "timeout"
	KindInvalidPatient    ErrorKind = "invalid_patient"
	KindInvalidPhysician  ErrorKind = "invalid_physician"
	KindInvalidDispenser  ErrorKind = "invalid_dispenser"
	KindInternal          ErrorKind = "internal"
)

// Error codes surfaced to chaincode clients
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeDuplicate         = "DUPLICATE"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeInvalidRole       = "INVALID_ROLE"
	ErrCodeInvalidParameter  = "INVALID_PARAMETER"
	ErrCodeTaskFailed        = "TASK_FAILED"
	ErrCodeFrequencyExceeded = "FREQUENCY_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeInvalidPatient    = "INVALID_PATIENT"
	ErrCodeInvalidPhysician  = "INVALID_PHYSICIAN"
	ErrCodeInvalidDispenser  = "INVALID_DISPENSER"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

var kindCodes = map[ErrorKind]string{
	KindUnauthorized:      ErrCodeUnauthorized,
	KindNotFound:          ErrCodeNotFound,
	KindDuplicate:         ErrCodeDuplicate,
	KindAccessDenied:      ErrCodeAccessDenied,
	KindInvalidRole:       ErrCodeInvalidRole,
	KindInvalidParameter:  ErrCodeInvalidParameter,
	KindTaskFailed:        ErrCodeTaskFailed,
	KindFrequencyExceeded: ErrCodeFrequencyExceeded,
	KindTimeout:           ErrCodeTimeout,
	KindInvalidPatient:    ErrCodeInvalidPatient,
	KindInvalidPhysician:  ErrCodeInvalidPhysician,
	KindInvalidDispenser:  ErrCodeInvalidDispenser,
	KindInternal:          ErrCodeInternalError,
}

// LedgerError represents a structured error raised by a ledger operation
type LedgerError struct {
	Kind    ErrorKind              `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a LedgerError of the same kind, so the
// package sentinels match any error of their kind.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail attaches a detail field and returns the error
func (e *LedgerError) WithDetail(key string, value interface{}) *LedgerError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrUnauthorized      = &LedgerError{Kind: KindUnauthorized, Code: ErrCodeUnauthorized}
	ErrNotFound          = &LedgerError{Kind: KindNotFound, Code: ErrCodeNotFound}
	ErrDuplicate         = &LedgerError{Kind: KindDuplicate, Code: ErrCodeDuplicate}
	ErrAccessDenied      = &LedgerError{Kind: KindAccessDenied, Code: ErrCodeAccessDenied}
	ErrInvalidRole       = &LedgerError{Kind: KindInvalidRole, Code: ErrCodeInvalidRole}
	ErrInvalidParameter  = &LedgerError{Kind: KindInvalidParameter, Code: ErrCodeInvalidParameter}
	ErrTaskFailed        = &LedgerError{Kind: KindTaskFailed, Code: ErrCodeTaskFailed}
	ErrFrequencyExceeded = &LedgerError{Kind: KindFrequencyExceeded, Code: ErrCodeFrequencyExceeded}
	ErrTimeout           = &LedgerError{Kind: KindTimeout, Code: ErrCodeTimeout}
	ErrInvalidPatient    = &LedgerError{Kind: KindInvalidPatient, Code: ErrCodeInvalidPatient}
	ErrInvalidPhysician  = &LedgerError{Kind: KindInvalidPhysician, Code: ErrCodeInvalidPhysician}
	ErrInvalidDispenser  = &LedgerError{Kind: KindInvalidDispenser, Code: ErrCodeInvalidDispenser}
	ErrInternal          = &LedgerError{Kind: KindInternal, Code: ErrCodeInternalError}
)

// NewError creates a new ledger error of the given kind
func NewError(kind ErrorKind, format string, args ...interface{}) *LedgerError {
	return &LedgerError{
		Kind:    kind,
		Code:    kindCodes[kind],
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInternalError wraps a state or codec failure
func NewInternalError(message string, cause error) *LedgerError {
	return &LedgerError{
		Kind:    KindInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of a ledger error, or KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// CodeOf returns the client-facing code of err, or an empty string for nil
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return kindCodes[KindOf(err)]
}
