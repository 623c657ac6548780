package pipeline

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable rejection code.
type ErrorCode string

// Rejection codes emitted by pipeline stages.
const (
	CodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	CodeAuthorizationFailed    ErrorCode = "AUTHORIZATION_FAILED"
	CodeValidationError        ErrorCode = "VALIDATION_ERROR"
	CodeAuthServiceError       ErrorCode = "AUTH_SERVICE_ERROR"
	CodeValidationServiceError ErrorCode = "VALIDATION_SERVICE_ERROR"
)

// StatusFor maps a rejection code to its HTTP status.
func StatusFor(code ErrorCode) int {
	switch code {
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case CodeAuthorizationFailed:
		return http.StatusForbidden
	case CodeValidationError:
		return http.StatusUnprocessableEntity
	case CodeAuthServiceError, CodeValidationServiceError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the structured rejection payload.
type ErrorBody struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Code is the machine-readable rejection code.
	Code ErrorCode `json:"code"`

	// Details carries failure-specific data.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Response is a terminal response produced by a stage or by the backend.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Header holds response headers.
	Header http.Header

	// Body is the serialized response payload.
	Body []byte

	// ContentType is the response content type.
	ContentType string
}

// NewErrorResponse builds a terminal rejection response for the code.
func NewErrorResponse(code ErrorCode, message string, details map[string]interface{}) *Response {
	body, _ := json.Marshal(ErrorBody{
		Message: message,
		Code:    code,
		Details: details,
	})
	return &Response{
		Status:      StatusFor(code),
		Header:      make(http.Header),
		Body:        body,
		ContentType: "application/json",
	}
}

// NewJSONResponse builds a response with a JSON-encoded payload.
func NewJSONResponse(status int, payload interface{}) *Response {
	body, _ := json.Marshal(payload)
	return &Response{
		Status:      status,
		Header:      make(http.Header),
		Body:        body,
		ContentType: "application/json",
	}
}
