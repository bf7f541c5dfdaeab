package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("http://localhost:11434", cause)

	expected := "network error at http://localhost:11434: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, ErrNetwork) {
		t.Error("Expected NetworkError to match ErrNetwork")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected NetworkError to unwrap to its cause")
	}

	wrapped := fmt.Errorf("stream failed: %w", err)
	if !IsNetworkError(wrapped) {
		t.Error("Expected wrapped NetworkError to be detected")
	}
}

func TestAPIErrorTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 500)
	err := NewAPIError(502, "https://api.test", body)

	if got := len([]rune(err.Body)); got != maxBodyLen+3 {
		t.Errorf("len(Body) = %d, want %d", got, maxBodyLen+3)
	}
	if err.Parsed() {
		t.Error("Expected unparsed error")
	}
}

func TestGetHTTPStatus(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewAPIError(429, "e", ""))
	if got := GetHTTPStatus(err); got != 429 {
		t.Errorf("GetHTTPStatus() = %d, want 429", got)
	}
	if got := GetHTTPStatus(errors.New("plain")); got != 0 {
		t.Errorf("GetHTTPStatus() = %d, want 0", got)
	}
}

func TestDisplayMessage(t *testing.T) {
	parsedWithCode := NewAPIError(401, "e", "")
	parsedWithCode.Code = "invalid_api_key"
	parsedWithCode.Message = "Incorrect API key provided"

	parsed := NewAPIError(400, "e", "")
	parsed.Message = "bad request"

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"parsed with code", parsedWithCode, "API error (HTTP 401, invalid_api_key): Incorrect API key provided"},
		{"parsed without code", parsed, "API error (HTTP 400): bad request"},
		{"raw body", NewAPIError(502, "e", "Bad Gateway"), "API error (HTTP 502): Bad Gateway"},
		{"empty body", NewAPIError(503, "e", ""), "API error (HTTP 503)"},
		{"network", NewNetworkError("e", errors.New("dial tcp")), "Network error: unable to reach the server. Check your connection and the endpoint address."},
		{"empty response", ErrEmptyResponse, "The model returned an empty response."},
		{"other", errors.New("unexpected EOF"), "Stream error: unexpected EOF"},
		{"in-stream with code", &APIError{Code: "overloaded_error", Message: "Overloaded"}, "API error (overloaded_error): Overloaded"},
		{"in-stream", &APIError{Message: "busy"}, "API error: busy"},
		{"stream read", NewStreamError("failed to read stream", errors.New("unexpected EOF")), "Stream error: failed to read stream: unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayMessage(tt.err); got != tt.want {
				t.Errorf("DisplayMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(fmt.Errorf("read: %w", context.Canceled)) {
		t.Error("Expected wrapped context.Canceled to be detected")
	}
	if IsCanceled(context.DeadlineExceeded) {
		t.Error("DeadlineExceeded is not a cancellation")
	}
}

func TestParseError(t *testing.T) {
	err := NewParseError("bad chunk", "{")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Error("Expected ParseError to match ErrInvalidResponse")
	}
	if err.Error() != "parse error: bad chunk" {
		t.Errorf("Error() = %s", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("https://api.example.com/v1/chat/completions", 30*time.Second, nil)

	if !errors.Is(err, ErrTimeout) || !IsNetworkError(err) {
		t.Fatal("timeout should match ErrTimeout and ErrNetwork")
	}
	if got := DisplayMessage(fmt.Errorf("stream: %w", err)); got != "Network error: the request timed out after 30s." {
		t.Errorf("DisplayMessage() = %q", got)
	}
}
