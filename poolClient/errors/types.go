package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates a command or input that was rejected locally
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates a transient failure talking to the ledger node
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeTransaction indicates transaction construction errors
	ErrCodeTransaction ErrorCode = "TRANSACTION"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeRPC indicates RPC-related errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeReorg indicates the observed event history no longer matches the chain
	ErrCodeReorg ErrorCode = "REORG"

	// ErrCodeSubmission indicates the ledger refused a submitted command
	ErrCodeSubmission ErrorCode = "SUBMISSION"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ChainError represents an error raised while talking to, or reasoning about, a ledger
type ChainError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Chain    string                 `json:"chain,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewChainError creates a new ChainError
func NewChainError(code ErrorCode, chain, message string, cause error) *ChainError {
	return &ChainError{
		Code:     code,
		Message:  message,
		Chain:    chain,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *ChainError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Chain != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Chain, e.Code, e.Severity, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, msg)
}

// Unwrap returns the underlying cause
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *ChainError) WithContext(key string, value interface{}) *ChainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable.
// Reorgs, validation and submission failures are surfaced, never retried.
func (e *ChainError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal, ErrCodeReorg:
		return SeverityCritical
	case ErrCodeDatabase:
		return SeverityHigh
	case ErrCodeTransaction, ErrCodeSubmission:
		return SeverityMedium
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ErrorGroup represents a collection of errors
type ErrorGroup struct {
	Errors []error
}

// NewErrorGroup creates a new error group
func NewErrorGroup() *ErrorGroup {
	return &ErrorGroup{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the group
func (eg *ErrorGroup) Add(err error) {
	if err != nil {
		eg.Errors = append(eg.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (eg *ErrorGroup) HasErrors() bool {
	return len(eg.Errors) > 0
}

// Error implements the error interface
func (eg *ErrorGroup) Error() string {
	if len(eg.Errors) == 0 {
		return ""
	}
	if len(eg.Errors) == 1 {
		return eg.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(eg.Errors), eg.Errors[0])
}

// Unwrap exposes the grouped errors to errors.Is and errors.As
func (eg *ErrorGroup) Unwrap() []error {
	return eg.Errors
}

// ErrOrNil returns the group as an error, or nil when empty
func (eg *ErrorGroup) ErrOrNil() error {
	if !eg.HasErrors() {
		return nil
	}
	return eg
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(chain, message string) *ChainError {
	return NewChainError(ErrCodeValidation, chain, message, nil)
}

// NewNetworkError creates a transient network error
func NewNetworkError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeNetwork, chain, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeDatabase, chain, message, cause)
}

// NewTransactionError creates a transaction error
func NewTransactionError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeTransaction, chain, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(chain, message string) *ChainError {
	return NewChainError(ErrCodeConfig, chain, message, nil)
}

// NewRPCError creates an RPC error
func NewRPCError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeRPC, chain, message, cause)
}

// NewReorgError creates a reorg-detected error
func NewReorgError(chain, message string) *ChainError {
	return NewChainError(ErrCodeReorg, chain, message, nil)
}

// NewSubmissionError creates a submission-failed error carrying the ledger's reason
func NewSubmissionError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeSubmission, chain, message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(chain, message string) *ChainError {
	return NewChainError(ErrCodeTimeout, chain, message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeInternal, chain, message, cause)
}
