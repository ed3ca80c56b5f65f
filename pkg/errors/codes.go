package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are namespaced by module prefix (COMMON, CASE, RULE, DOC).
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_015"
	ErrCodeMessagingError     ErrorCode = "COMMON_016"
)

// Case Module Error Codes
const (
	ErrCodeInvalidTransition   ErrorCode = "CASE_001"
	ErrCodeMissingPrecondition ErrorCode = "CASE_002"
	ErrCodeBlocked             ErrorCode = "CASE_003"
	ErrCodeCaseNotFound        ErrorCode = "CASE_004"
	ErrCodePropertyNotFound    ErrorCode = "CASE_005"
	ErrCodeDeductionNotFound   ErrorCode = "CASE_006"
	ErrCodeChecklistNotFound   ErrorCode = "CASE_007"
	ErrCodeCaseLocked          ErrorCode = "CASE_008"
)

// Rule Module Error Codes
const (
	ErrCodeJurisdictionNotFound ErrorCode = "RULE_001"
	ErrCodeRuleSetNotFound      ErrorCode = "RULE_002"
	ErrCodeUnresolvable         ErrorCode = "RULE_003"
)

// Document Module Error Codes
const (
	ErrCodeDocumentNotFound    ErrorCode = "DOC_001"
	ErrCodeDocumentTypeInvalid ErrorCode = "DOC_002"
	ErrCodeRenderFailed        ErrorCode = "DOC_003"
)

// Short aliases used throughout the codebase.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("")

	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnauthorized = ErrCodeUnauthorized
	CodeForbidden    = ErrCodeForbidden
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests

	CodeInvalidTransition   = ErrCodeInvalidTransition
	CodeMissingPrecondition = ErrCodeMissingPrecondition
	CodeBlocked             = ErrCodeBlocked
	CodeCaseNotFound        = ErrCodeCaseNotFound

	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeStorageError      = ErrCodeStorageError
	CodeMessageQueueError = ErrCodeMessagingError
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,

	ErrCodeInvalidTransition:   http.StatusConflict,
	ErrCodeMissingPrecondition: http.StatusUnprocessableEntity,
	ErrCodeBlocked:             http.StatusConflict,
	ErrCodeCaseNotFound:        http.StatusNotFound,
	ErrCodePropertyNotFound:    http.StatusNotFound,
	ErrCodeDeductionNotFound:   http.StatusNotFound,
	ErrCodeChecklistNotFound:   http.StatusNotFound,
	ErrCodeCaseLocked:          http.StatusConflict,

	ErrCodeJurisdictionNotFound: http.StatusNotFound,
	ErrCodeRuleSetNotFound:      http.StatusNotFound,
	ErrCodeUnresolvable:         http.StatusUnprocessableEntity,

	ErrCodeDocumentNotFound:    http.StatusNotFound,
	ErrCodeDocumentTypeInvalid: http.StatusBadRequest,
	ErrCodeRenderFailed:        http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "message queue error",

	ErrCodeInvalidTransition:   "status transition not allowed",
	ErrCodeMissingPrecondition: "required field missing for transition",
	ErrCodeBlocked:             "outstanding checklist items block this action",
	ErrCodeCaseNotFound:        "case not found",
	ErrCodePropertyNotFound:    "property not found",
	ErrCodeDeductionNotFound:   "deduction not found",
	ErrCodeChecklistNotFound:   "checklist item not found",
	ErrCodeCaseLocked:          "case is being modified by another request",

	ErrCodeJurisdictionNotFound: "no jurisdiction matches the given location",
	ErrCodeRuleSetNotFound:      "no rule set is in effect for the jurisdiction",
	ErrCodeUnresolvable:         "penalty amount cannot be quantified",

	ErrCodeDocumentNotFound:    "document not found",
	ErrCodeDocumentTypeInvalid: "unsupported document type",
	ErrCodeRenderFailed:        "failed to render document",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
