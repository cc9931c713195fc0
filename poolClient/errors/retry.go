package errors

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeNetwork,
			ErrCodeRPC,
			ErrCodeTimeout,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// RetryOperation represents a named operation that can be retried
type RetryOperation struct {
	Name    string
	Fn      RetryFunc
	Config  *RetryConfig
	OnRetry func(attempt int, err error)
}

// Execute runs the retry operation. It is meant for startup work such as
// dialing the ledger; the poll path never retries internally.
func (op *RetryOperation) Execute(ctx context.Context) error {
	cfg := op.Config
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := op.Fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err, cfg.RetryableErrors) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if op.OnRetry != nil {
			op.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return WrapChainError(
		lastErr,
		ErrCodeInternal,
		"",
		"operation '"+op.Name+"' failed after retries",
	).WithContext("attempts", cfg.MaxAttempts)
}

// RetryWithConfig retries a function with custom configuration
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	op := &RetryOperation{Name: "retry", Fn: fn, Config: config}
	return op.Execute(ctx)
}

func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	var chainErr *ChainError
	if As(err, &chainErr) {
		for _, code := range retryableCodes {
			if chainErr.Code == code {
				return true
			}
		}
		return chainErr.IsRetryable()
	}
	return IsRetryable(err)
}
