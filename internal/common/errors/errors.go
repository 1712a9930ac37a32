// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Matching errors
const (
	ErrCodeScoringUnavailable   ErrorCode = "SCORING_UNAVAILABLE"
	ErrCodeScoringMalformed     ErrorCode = "SCORING_MALFORMED"
	ErrCodeIncompleteScoreInput ErrorCode = "INCOMPLETE_SCORE_INPUT"
	ErrCodeInvalidProfile       ErrorCode = "INVALID_PROFILE"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"

	ErrCodeProfileNotFound     ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeProfileLookupFailed ErrorCode = "PROFILE_LOOKUP_FAILED"

	ErrCodeCandidateSearchFailed ErrorCode = "CANDIDATE_SEARCH_FAILED"
	ErrCodeSearchTimeout         ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeMatchPersistFailed     ErrorCode = "MATCH_PERSIST_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"

	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
)

// messages holds the human readable text reported for each code.
var messages = map[ErrorCode]string{
	ErrCodeScoringUnavailable:            "Scoring service unavailable",
	ErrCodeScoringMalformed:              "Scoring service returned a malformed response",
	ErrCodeIncompleteScoreInput:          "Score input is not a finite number",
	ErrCodeInvalidProfile:                "Profile data has an invalid shape",
	ErrCodeInvalidInput:                  "Job input is invalid",
	ErrCodeProfileNotFound:               "Profile not found",
	ErrCodeProfileLookupFailed:           "Profile lookup failed",
	ErrCodeCandidateSearchFailed:         "Candidate search failed",
	ErrCodeSearchTimeout:                 "Candidate search timeout",
	ErrCodeMatchPersistFailed:            "Match record could not be stored",
	ErrCodeNotificationSendFailed:        "Notification delivery failed",
	ErrCodeDatabaseConnectionFailed:      "Database connection error",
	ErrCodeElasticsearchConnectionFailed: "Elasticsearch connection error",
	ErrCodeInternal:                      "Unexpected error",
}

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

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// New builds a StandardError for a known code. Retryable follows GetRetryCount.
func New(code ErrorCode, details string) *StandardError {
	message, ok := messages[code]
	if !ok {
		message = string(code)
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a non-retryable lookup error.
func NewProfileNotFoundError(kind, id string) *StandardError {
	return New(ErrCodeProfileNotFound, fmt.Sprintf("%s: %s", kind, id))
}

// NewInvalidInputError creates a non-retryable input error.
func NewInvalidInputError(details string) *StandardError {
	return New(ErrCodeInvalidInput, details)
}

// NewMatchPersistFailedError creates a retryable database write error.
func NewMatchPersistFailedError(err error) *StandardError {
	return New(ErrCodeMatchPersistFailed, err.Error())
}

// NewCandidateSearchFailedError creates a retryable search error.
func NewCandidateSearchFailedError(index string, err error) *StandardError {
	return New(ErrCodeCandidateSearchFailed, fmt.Sprintf("index: %s, error: %s", index, err.Error()))
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return New(ErrCodeNotificationSendFailed, fmt.Sprintf("channel: %s, error: %s", channel, err.Error()))
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRule,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// FromError classifies any error into a StandardError. Sentinels created with
// errors.New("<CODE>") anywhere in the wrap chain are recognized by their text,
// so domain packages do not need to import this one.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	if code, ok := CodeOf(err); ok {
		return New(code, err.Error())
	}

	return New(ErrCodeInternal, err.Error())
}

// CodeOf finds the first known error code in err's wrap tree.
func CodeOf(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code, true
	}

	queue := []error{err}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if code := ErrorCode(current.Error()); isKnown(code) {
			return code, true
		}

		switch u := current.(type) {
		case interface{ Unwrap() error }:
			if next := u.Unwrap(); next != nil {
				queue = append(queue, next)
			}
		case interface{ Unwrap() []error }:
			for _, next := range u.Unwrap() {
				if next != nil {
					queue = append(queue, next)
				}
			}
		}
	}
	return "", false
}

func isKnown(code ErrorCode) bool {
	_, ok := BPMNErrorMapping[code]
	return ok
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes that
// boundary events in the process models catch.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeScoringUnavailable:            "SCORING_UNAVAILABLE",
	ErrCodeScoringMalformed:              "SCORING_MALFORMED",
	ErrCodeIncompleteScoreInput:          "INCOMPLETE_SCORE_INPUT",
	ErrCodeInvalidProfile:                "INVALID_PROFILE",
	ErrCodeInvalidInput:                  "INVALID_INPUT",
	ErrCodeProfileNotFound:               "PROFILE_NOT_FOUND",
	ErrCodeProfileLookupFailed:           "PROFILE_LOOKUP_FAILED",
	ErrCodeCandidateSearchFailed:         "CANDIDATE_SEARCH_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeMatchPersistFailed:            "MATCH_PERSIST_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeScoringUnavailable,
		ErrCodeProfileLookupFailed,
		ErrCodeCandidateSearchFailed,
		ErrCodeMatchPersistFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeExternalService:
		return 3 // Retryable technical errors
	case ErrCodeSearchTimeout,
		ErrCodeTimeout:
		return 2 // Partial retry for timeouts
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
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
	case strings.HasPrefix(codeStr, "SCORING") || strings.Contains(codeStr, "SCORE"):
		return "SCORING"
	case strings.Contains(codeStr, "PROFILE"):
		return "PROFILE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PERSIST"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
