// Package errors provides the error taxonomy of the chat engine and the
// labels shown to the user when a response fails.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common cases
var (
	ErrNoActiveConfig  = errors.New("no API configuration selected")
	ErrDuplicateConfig = errors.New("an identical API configuration already exists")
	ErrConfigNotFound  = errors.New("API configuration not found")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrEmptyResponse   = errors.New("the model returned an empty response")
	ErrNetwork         = errors.New("network failure")
	ErrTimeout         = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response format")
)

// maxBodyLen bounds how much of a raw error body is kept for display
const maxBodyLen = 200

// NetworkError represents a failure to reach the backend
type NetworkError struct {
	Endpoint string
	Cause    error
}

func (e *NetworkError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("network error at %s", e.Endpoint)
	}
	return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// Is allows comparison with sentinel errors
func (e *NetworkError) Is(target error) bool {
	if target == ErrNetwork {
		return true
	}
	_, ok := target.(*NetworkError)
	return ok
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(endpoint string, cause error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Cause: cause}
}

// TimeoutError represents a request that exceeded the transport deadline
type TimeoutError struct {
	Endpoint string
	Timeout  time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.Endpoint, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// Is allows comparison with sentinel errors
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrNetwork
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(endpoint string, timeout time.Duration, cause error) *TimeoutError {
	return &TimeoutError{Endpoint: endpoint, Timeout: timeout, Cause: cause}
}

// APIError represents a non-success status returned by the backend.
// Code and Message are filled when the body could be parsed.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("API error in stream: %s", e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error [%d] at %s", e.StatusCode, e.Endpoint)
}

// Parsed reports whether the backend supplied a structured error
func (e *APIError) Parsed() bool {
	return e.Message != "" || e.Code != ""
}

// NewAPIError creates a new APIError. The raw body is truncated.
func NewAPIError(statusCode int, endpoint, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Body:       Truncate(strings.TrimSpace(body), maxBodyLen),
	}
}

// StreamError represents a failure while decoding a stream that was already open
type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("stream error: %s", e.Message)
}

func (e *StreamError) Unwrap() error { return e.Cause }

// NewStreamError creates a new StreamError
func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{Message: message, Cause: cause}
}

// ParseError represents a chunk that could not be decoded
type ParseError struct {
	Message string
	Payload string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, payload string) *ParseError {
	return &ParseError{Message: message, Payload: Truncate(payload, maxBodyLen)}
}

// ConfigError represents invalid configuration input
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// IsNetworkError reports whether err is a network failure
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsAPIError reports whether err carries a backend status
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsCanceled reports whether err only signals cooperative cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// GetHTTPStatus returns the backend status carried by err, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetErrorCode returns the backend error code carried by err, or ""
func GetErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// DisplayMessage returns the label written into a failed response
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 0 && apiErr.Code != "":
			return fmt.Sprintf("API error (%s): %s", apiErr.Code, apiErr.Message)
		case apiErr.StatusCode == 0:
			return "API error: " + apiErr.Message
		case apiErr.Parsed() && apiErr.Code != "":
			return fmt.Sprintf("API error (HTTP %d, %s): %s", apiErr.StatusCode, apiErr.Code, apiErr.Message)
		case apiErr.Parsed():
			return fmt.Sprintf("API error (HTTP %d): %s", apiErr.StatusCode, apiErr.Message)
		case apiErr.Body != "":
			return fmt.Sprintf("API error (HTTP %d): %s", apiErr.StatusCode, apiErr.Body)
		default:
			return fmt.Sprintf("API error (HTTP %d)", apiErr.StatusCode)
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Sprintf("Network error: the request timed out after %s.", timeoutErr.Timeout)
	}

	if IsNetworkError(err) {
		return "Network error: unable to reach the server. Check your connection and the endpoint address."
	}

	if errors.Is(err, ErrEmptyResponse) {
		return "The model returned an empty response."
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		if streamErr.Cause != nil {
			return fmt.Sprintf("Stream error: %s: %v", streamErr.Message, streamErr.Cause)
		}
		return "Stream error: " + streamErr.Message
	}

	return "Stream error: " + err.Error()
}

// Truncate shortens s to at most n runes, adding an ellipsis when cut
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
