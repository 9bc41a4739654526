package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Critical errors that should stop the bot
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Collaborator failures
	ErrorCategoryExchange  ErrorCategory = "EXCHANGE"
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"

	// Input and decision failures
	ErrorCategoryValidation  ErrorCategory = "VALIDATION"
	ErrorCategorySizing      ErrorCategory = "SIZING"
	ErrorCategoryOrder       ErrorCategory = "ORDER"
	ErrorCategoryComputation ErrorCategory = "COMPUTATION"
)

// Kind is the coarse tag callers branch on: fix the input, retry later, or give up.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindTransient   Kind = "transient"
	KindComputation Kind = "computation"
	KindFatal       Kind = "fatal"
)

// KindFor maps a category onto its Kind.
func KindFor(category ErrorCategory) Kind {
	switch category {
	case ErrorCategoryValidation, ErrorCategorySizing, ErrorCategoryOrder:
		return KindValidation
	case ErrorCategoryComputation:
		return KindComputation
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration:
		return KindFatal
	default:
		return KindTransient
	}
}

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Kind       Kind
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
	Timestamp  time.Time
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *BotError) Unwrap() error {
	return e.Underlying
}

func (e *BotError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the bot
func (e *BotError) IsFatal() bool {
	return e.Kind == KindFatal
}

// NewBotError creates a new categorized bot error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Kind:      KindFor(category),
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with bot error context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	e := NewBotError(category, component, operation, "operation failed")
	e.Underlying = err
	return e
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *BotError) WithRetryable(retryable bool) *BotError {
	e.Retryable = retryable
	return e
}

func (e *BotError) WithMessage(message string) *BotError {
	e.Message = message
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	return KindFor(category) == KindTransient
}

// As extracts the first BotError in err's chain.
func As(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err. Untagged errors count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if botErr, ok := As(err); ok {
		return botErr.Kind
	}
	return KindTransient
}

func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

func IsComputation(err error) bool {
	return err != nil && KindOf(err) == KindComputation
}

// CategorizeError attempts to categorize a generic error
func CategorizeError(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	if botErr, ok := As(err); ok {
		return botErr
	}

	errMsg := strings.ToLower(err.Error())

	if stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "context deadline exceeded") {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") || strings.Contains(errMsg, "eof") {
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	}

	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api secret") ||
		strings.Contains(errMsg, "signature") || strings.Contains(errMsg, "unauthorized") {
		return WrapError(err, ErrorCategoryCredentials, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	}

	if strings.Contains(errMsg, "insufficient") || strings.Contains(errMsg, "balance") {
		return WrapError(err, ErrorCategoryOrder, component, operation)
	}

	if strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "minimum") ||
		strings.Contains(errMsg, "maximum") {
		return WrapError(err, ErrorCategoryValidation, component, operation)
	}

	return WrapError(err, ErrorCategoryTemporary, component, operation)
}

func NewNetworkError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryNetwork, component, operation)
}

func NewTimeoutError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryTimeout, component, operation)
}

// NewUnavailableError marks a collaborator call that failed for reasons outside the caller's control.
func NewUnavailableError(component, operation string, err error) *BotError {
	if err == nil {
		return nil
	}
	return WrapError(err, ErrorCategoryExchange, component, operation).WithMessage("collaborator unavailable")
}

func NewValidationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryValidation, component, operation, message)
}

func NewSizingError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategorySizing, component, operation, message)
}

func NewComputationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryComputation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewCredentialsError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryCredentials, component, operation, message)
}

// NewOrderError tags a rejected order. Rejections are final for the attempt.
func NewOrderError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryOrder, component, operation)
}

// RecoveryAction is what a caller should do after an error.
type RecoveryAction string

const (
	RecoveryActionRetry RecoveryAction = "RETRY"
	RecoveryActionSkip  RecoveryAction = "SKIP"
	RecoveryActionStop  RecoveryAction = "STOP"
	RecoveryActionWait  RecoveryAction = "WAIT"
	RecoveryActionAbort RecoveryAction = "ABORT"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *BotError) GetRecoveryAction() RecoveryAction {
	switch e.Kind {
	case KindFatal:
		return RecoveryActionStop
	case KindValidation:
		return RecoveryActionAbort
	case KindComputation:
		return RecoveryActionSkip
	}
	if e.Category == ErrorCategoryRateLimit {
		return RecoveryActionWait
	}
	return RecoveryActionRetry
}
