package bybit

import (
	stderrors "errors"
	"fmt"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
)

// BybitError represents a non-zero retCode returned by the API.
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *BybitError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeServerTimeout       = 10000
	ErrCodeParams              = 10001
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10002
	ErrCodePermissionDenied    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeServerError         = 10016
	ErrCodeOrderNotFound       = 110001
	ErrCodeInsufficientBalance = 110007
	ErrCodeInvalidQuantity     = 110020
	ErrCodeSpotInsufficient    = 170131
	ErrCodeSpotQtyTooSmall     = 170136
	ErrCodeSpotQtyDecimals     = 170137
	ErrCodeSpotOrderNotFound   = 170213
)

// ErrorCodes maps common error codes to human-readable messages
var ErrorCodes = map[int]string{
	ErrCodeServerTimeout:       "Server timeout",
	ErrCodeParams:              "Parameter error",
	ErrCodeInvalidAPIKey:       "Invalid API key",
	ErrCodeInvalidSignature:    "Invalid signature",
	ErrCodeInvalidTimestamp:    "Invalid timestamp",
	ErrCodePermissionDenied:    "Permission denied",
	ErrCodeRateLimitExceeded:   "Rate limit exceeded",
	ErrCodeServerError:         "Server error",
	ErrCodeOrderNotFound:       "Order not found",
	ErrCodeInsufficientBalance: "Insufficient balance",
	ErrCodeInvalidQuantity:     "Invalid quantity",
	ErrCodeSpotInsufficient:    "Insufficient balance",
	ErrCodeSpotQtyTooSmall:     "Order quantity below lower limit",
	ErrCodeSpotQtyDecimals:     "Order quantity has too many decimals",
	ErrCodeSpotOrderNotFound:   "Order does not exist",
}

// GetErrorDescription returns a human-readable description for an error code
func GetErrorDescription(code int) string {
	if desc, exists := ErrorCodes[code]; exists {
		return desc
	}
	return fmt.Sprintf("Unknown error code: %d", code)
}

// ParseAPIError extracts error information from the API response
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &BybitError{Code: retCode, Message: retMsg}
}

// categoryFor classifies a retCode.
func categoryFor(code int) boterrors.ErrorCategory {
	switch code {
	case ErrCodeRateLimitExceeded:
		return boterrors.ErrorCategoryRateLimit
	case ErrCodeServerTimeout:
		return boterrors.ErrorCategoryTimeout
	case ErrCodeServerError, 500, 502, 503, 504:
		return boterrors.ErrorCategoryExchange
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp, ErrCodePermissionDenied:
		return boterrors.ErrorCategoryCredentials
	case ErrCodeInsufficientBalance, ErrCodeSpotInsufficient, ErrCodeOrderNotFound, ErrCodeSpotOrderNotFound:
		return boterrors.ErrorCategoryOrder
	case ErrCodeParams, ErrCodeInvalidQuantity, ErrCodeSpotQtyTooSmall, ErrCodeSpotQtyDecimals:
		return boterrors.ErrorCategoryValidation
	default:
		return boterrors.ErrorCategoryOrder
	}
}

// toBotError converts API and transport failures into BotError.
func toBotError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := boterrors.As(err); ok {
		return err
	}
	var apiErr *BybitError
	if stderrors.As(err, &apiErr) {
		return boterrors.WrapError(err, categoryFor(apiErr.Code), "bybit", operation).
			WithMessage(GetErrorDescription(apiErr.Code)).
			WithContext("ret_code", apiErr.Code)
	}
	return boterrors.CategorizeError(err, "bybit", operation)
}

// IsOrderNotFoundError checks if the error is due to order not found
func IsOrderNotFoundError(err error) bool {
	var apiErr *BybitError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == ErrCodeOrderNotFound || apiErr.Code == ErrCodeSpotOrderNotFound
	}
	return false
}
