// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBPMN_KeepsStandardErrorCodeAndRetries(t *testing.T) {
	bpmnErr := ToBPMN(NewGenerationFailedError(assert.AnError), ErrCodeValidationFailed)

	assert.Equal(t, string(ErrCodeGenerationFailed), bpmnErr.Code)
	assert.True(t, bpmnErr.Retryable)
	assert.Equal(t, 3, bpmnErr.Retries)
}

func TestToBPMN_WrapsPlainErrorsUnderFallback(t *testing.T) {
	bpmnErr := ToBPMN(fmt.Errorf("connection reset"), ErrCodeDatabaseFailed)

	assert.Equal(t, string(ErrCodeDatabaseFailed), bpmnErr.Code)
	assert.Equal(t, "connection reset", bpmnErr.Message)
	assert.True(t, bpmnErr.Retryable)

	bpmnErr = ToBPMN(fmt.Errorf("bad payload"), ErrCodeValidationFailed)
	assert.False(t, bpmnErr.Retryable)
	assert.Zero(t, bpmnErr.Retries)
}

func TestToBPMN_WrappedStandardErrorIsUnwrapped(t *testing.T) {
	wrapped := fmt.Errorf("attempt 2: %w", NewGenerationTimeoutError("session-abc"))

	bpmnErr := ToBPMN(wrapped, ErrCodeGenerationFailed)

	assert.Equal(t, string(ErrCodeGenerationTimeout), bpmnErr.Code)
	assert.True(t, bpmnErr.Retryable)
}

func TestConvertToBPMNError_NonRetryableGetsNoRetries(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewValidationFailedError("bad field"))

	assert.Zero(t, bpmnErr.Retries)
	assert.False(t, bpmnErr.Retryable)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, string(ErrCodeValidationFailed), vars["errorCode"])
	assert.Equal(t, false, vars["retryable"])
	require.Contains(t, vars, "originalErrorCode")
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeGenerationTimeout))
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeSecurityViolation))
	assert.False(t, IsRetryableErrorCode(ErrCodeReferenceCodeInvalid))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SECURITY", GetErrorCategory(ErrCodeSecurityViolation))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeStepInvalid))
	assert.Equal(t, "GENERATION", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeReferenceCodeInvalid))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeWebhookDeliveryFailed))
}
