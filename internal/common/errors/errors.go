// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeSecurityViolation     ErrorCode = "SECURITY_VIOLATION"
	ErrCodeStepInvalid           ErrorCode = "STEP_INVALID"
	ErrCodeApplicationNotFound   ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeReferenceCodeInvalid  ErrorCode = "REFERENCE_CODE_INVALID"
	ErrCodeReferenceExhausted    ErrorCode = "REFERENCE_CODE_EXHAUSTED"
	ErrCodeTemplateNotFound      ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeGenerationFailed      ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout     ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGenerationCancelled   ErrorCode = "GENERATION_CANCELLED"
	ErrCodeDatabaseFailed        ErrorCode = "DATABASE_OPERATION_FAILED"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWebhookDeliveryFailed ErrorCode = "WEBHOOK_DELIVERY_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRetryable reports whether err may be retried. Only StandardErrors marked
// retryable qualify; validation and security errors never enter a retry loop.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Application data validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSecurityViolationError creates a non-retryable error for rejected uploads.
// Never retried, never silently accepted.
func NewSecurityViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSecurityViolation,
		Message:   "Upload rejected by security checks",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStepInvalidError creates a non-retryable workflow step error.
func NewStepInvalidError(step string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepInvalid,
		Message:   "Requested step is not in the workflow vocabulary",
		Details:   fmt.Sprintf("step: %s", step),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReferenceCodeInvalidError rejects a lookup key that matches no
// recognized code shape.
func NewReferenceCodeInvalidError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReferenceCodeInvalid,
		Message:   "Lookup code is not a recognized reference code or national id",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReferenceExhaustedError signals the collision-retry loop gave up.
func NewReferenceExhaustedError(attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeReferenceExhausted,
		Message:   "Could not allocate a unique reference code",
		Details:   fmt.Sprintf("attempts: %d", attempts),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in registry",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable render/storage error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Document generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable timeout error. The attempt
// that timed out still counts against the attempt ceiling.
func NewGenerationTimeoutError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Document generation attempt exceeded wall-clock cap",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable database error.
func NewDatabaseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookDeliveryFailedError records a best-effort webhook failure.
// Not retryable: webhook failures are logged, never escalated.
func NewWebhookDeliveryFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookDeliveryFailed,
		Message:   "Webhook delivery failed",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnexpectedError wraps an uncategorized error into a generic terminal
// failure, keeping the context needed for the log line.
func NewUnexpectedError(err error, metadata map[string]interface{}) *StandardError {
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected internal error",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGenerationFailed,
		ErrCodeGenerationTimeout,
		ErrCodeDatabaseFailed,
		ErrCodeNotificationFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Validation, security and lookup errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ToBPMN maps any handler error onto the BPMN error surface. StandardErrors
// keep their code and retry budget; anything else is classified under the
// caller's fallback code.
func ToBPMN(err error, fallback ErrorCode) *BPMNError {
	var se *StandardError
	if errors.As(err, &se) {
		return ConvertToBPMNError(se)
	}
	return ConvertToBPMNError(&StandardError{
		Code:      fallback,
		Message:   err.Error(),
		Retryable: IsRetryableErrorCode(fallback),
		Timestamp: time.Now().UTC(),
	})
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SECURITY"):
		return "SECURITY"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "STEP"):
		return "VALIDATION"
	case strings.Contains(codeStr, "GENERATION") || strings.Contains(codeStr, "TEMPLATE"):
		return "GENERATION"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "WEBHOOK"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "REFERENCE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
