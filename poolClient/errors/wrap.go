package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapChainError wraps an error as a ChainError if it isn't already one
func WrapChainError(err error, code ErrorCode, chain, message string) *ChainError {
	if err == nil {
		return nil
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		chainErr.WithContext("wrapped_message", message)
		if chain != "" && chainErr.Chain == "" {
			chainErr.Chain = chain
		}
		return chainErr
	}

	return NewChainError(code, chain, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsChainError checks if an error is a ChainError with specific code
func IsChainError(err error, code ErrorCode) bool {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Code == code
	}
	return false
}

// IsValidation reports whether err is a locally rejected command.
func IsValidation(err error) bool { return IsChainError(err, ErrCodeValidation) }

// IsReorg reports whether err signals a detected chain reorganization.
func IsReorg(err error) bool { return IsChainError(err, ErrCodeReorg) }

// IsSubmission reports whether err is a ledger-side rejection of a command.
func IsSubmission(err error) bool { return IsChainError(err, ErrCodeSubmission) }

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many requests",
	"rate limit",
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}

	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Severity
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "panic"), strings.Contains(errStr, "fatal"):
		return SeverityCritical
	case strings.Contains(errStr, "failed"), strings.Contains(errStr, "error"):
		return SeverityHigh
	case strings.Contains(errStr, "warning"):
		return SeverityMedium
	}
	return SeverityLow
}
