package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodePlanInferenceFailed  ErrorCode = "PLAN_INFERENCE_FAILED"
	ErrCodePlanValidationFailed ErrorCode = "PLAN_VALIDATION_FAILED"
	ErrCodeMissingConfiguration ErrorCode = "MISSING_CONFIGURATION"
	ErrCodeExternalFetchFailed  ErrorCode = "EXTERNAL_FETCH_FAILED"
	ErrCodeGatewayExhausted     ErrorCode = "GATEWAY_EXHAUSTED"
	ErrCodeGatewayRejected      ErrorCode = "GATEWAY_REJECTED"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape every layer returns. Cause is kept for
// errors.Is/As chains but is not serialised.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

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

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewPlanInferenceError reports a model reply that did not contain a usable plan.
func NewPlanInferenceError(details string, cause error) *StandardError {
	if cause != nil {
		details = fmt.Sprintf("%s: %v", details, cause)
	}
	return &StandardError{
		Code:      ErrCodePlanInferenceFailed,
		Message:   "Could not infer a query plan from the model response",
		Details:   details,
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError names the rejected field and the permitted set.
func NewValidationError(field, kind string, allowed []string) *StandardError {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return &StandardError{
		Code:      ErrCodePlanValidationFailed,
		Message:   fmt.Sprintf("Invalid %s: %s", kind, field),
		Details:   fmt.Sprintf("allowed %ss: %s", kind, strings.Join(sorted, ", ")),
		Retryable: false,
		Metadata: map[string]interface{}{
			"field":   field,
			"kind":    kind,
			"allowed": sorted,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewMissingConfigurationError(key, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingConfiguration,
		Message:   fmt.Sprintf("Missing configuration: %s", key),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"key": key},
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalFetchError(source string, cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeExternalFetchFailed,
		Message:   fmt.Sprintf("Failed to fetch data from %s", source),
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayExhaustedError embeds the attempt count and the last underlying cause.
func NewGatewayExhaustedError(attempts int, cause error) *StandardError {
	details := "no response"
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeGatewayExhausted,
		Message:   fmt.Sprintf("Language model request failed after %d attempts", attempts),
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"attempts": attempts},
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayRejectedError is returned for non-retryable responses (bad request, auth).
func NewGatewayRejectedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayRejected,
		Message:   fmt.Sprintf("Language model request rejected with status %d", status),
		Details:   body,
		Retryable: false,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodePlanInferenceFailed:  "PLAN_INFERENCE_FAILED",
	ErrCodePlanValidationFailed: "PLAN_VALIDATION_FAILED",
	ErrCodeMissingConfiguration: "MISSING_CONFIGURATION",
	ErrCodeExternalFetchFailed:  "EXTERNAL_FETCH_FAILED",
	ErrCodeGatewayExhausted:     "GATEWAY_EXHAUSTED",
	ErrCodeGatewayRejected:      "GATEWAY_REJECTED",
	ErrCodeInvalidRequest:       "INVALID_REQUEST",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExternalFetchFailed:
		return 3
	case ErrCodeGatewayExhausted:
		return 1 // the gateway already retried internally
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
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

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodePlanInferenceFailed, ErrCodeGatewayExhausted, ErrCodeGatewayRejected:
		return "AI"
	case ErrCodePlanValidationFailed, ErrCodeInvalidRequest:
		return "VALIDATION"
	case ErrCodeMissingConfiguration:
		return "CONFIGURATION"
	case ErrCodeExternalFetchFailed:
		return "DATA_SOURCE"
	default:
		return "OTHER"
	}
}
