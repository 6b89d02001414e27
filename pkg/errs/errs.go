package errs

import (
	"errors"
	"fmt"
)

// Error codes
const (
	// Local / configuration
	NotConfigured = "NOT_CONFIGURED"
	MissingID     = "MISSING_ID"

	// Transport layer
	Transport = "TRANSPORT_ERROR"
	Timeout   = "TIMEOUT"

	// Remote API responses
	RemoteAPI = "REMOTE_API_ERROR"
	NotFound  = "NOT_FOUND"

	// Product attribute selection
	InvalidSelection = "INVALID_SELECTION"

	// Checkout domain codes (ORD)
	MissingCustomer = "ORD_MISSING_CUSTOMER"
	EmptyCart       = "ORD_EMPTY_CART"
	PartialOrder    = "ORD_PARTIAL_FAILURE"
)

// Remote error types, classified from the decoded error payload shape.
const (
	// OAuth 2.0 Draft 00 style: {"err": {"type": "OAuthException", "message": ...}}
	TypeOAuthException = "OAuthException"
	// OAuth 2.0 Draft 10 style: {"err": "invalid_token", "error_description": ...}
	TypeInvalidToken = "invalid_token"
	// REST server errors are just Exceptions
	TypeException = "Exception"
)

// Error represents a structured SDK error
type Error struct {
	Code          string      `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Details       interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.CorrelationID, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a new error
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// WithCorrelationID adds a correlation ID to an error
func (e *Error) WithCorrelationID(correlationID string) *Error {
	e.CorrelationID = correlationID
	return e
}

// Code returns the code of err if it is (or wraps) an *Error, else "".
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// RemoteType classifies a remote API error payload into one of the remote
// error types. The server reports errors in two OAuth draft shapes plus a
// plain exception shape; anything unrecognized is an Exception.
func RemoteType(payload map[string]interface{}) string {
	raw, ok := payload["err"]
	if !ok {
		return TypeException
	}

	switch v := raw.(type) {
	case string:
		// OAuth 2.0 Draft 10 style
		return v
	case map[string]interface{}:
		// OAuth 2.0 Draft 00 style
		if t, ok := v["type"].(string); ok {
			return t
		}
	}
	return TypeException
}

// RemoteMessage extracts the human-readable message from a remote API error
// payload, trying the known shapes in order.
func RemoteMessage(payload map[string]interface{}) string {
	if desc, ok := payload["error_description"].(string); ok && desc != "" {
		// OAuth 2.0 Draft 10 style
		return desc
	}
	if e, ok := payload["error"].(map[string]interface{}); ok {
		// OAuth 2.0 Draft 00 style
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := payload["error_msg"].(string); ok && msg != "" {
		return msg
	}
	if raw, ok := payload["err"]; ok {
		switch v := raw.(type) {
		case string:
			return v
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return "unknown remote error"
}

// Remote builds a RemoteAPI error from a decoded error payload. The payload
// is kept in Details so callers can inspect the original server response.
func Remote(payload map[string]interface{}) *Error {
	return &Error{
		Code:    RemoteAPI,
		Message: fmt.Sprintf("%s: %s", RemoteType(payload), RemoteMessage(payload)),
		Details: payload,
	}
}
