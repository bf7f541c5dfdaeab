package api

import (
	"context"
	"fmt"
	"io"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/models"
)

// emitFunc delivers one increment. It returns false once the consumer is gone.
type emitFunc func(models.Increment) bool

// provider adapts one backend wire protocol
type provider interface {
	// newRequest builds the HTTP request for req
	newRequest(ctx context.Context, req Request) (*http.Request, error)
	// decode reads the response body until the stream ends
	decode(body io.Reader, emit emitFunc) error
}

func providerFor(p models.Provider) (provider, error) {
	switch p {
	case models.ProviderOpenAI, "":
		return openAIProvider{}, nil
	case models.ProviderGemini:
		return geminiProvider{}, nil
	case models.ProviderOllama:
		return ollamaProvider{}, nil
	case models.ProviderAnthropic:
		return anthropicProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", p)
	}
}

// payloadMessage is the role/content pair shared by the chat style APIs
type payloadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func payloadMessages(msgs []models.ChatMessage) []payloadMessage {
	out := make([]payloadMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, payloadMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func newJSONRequest(ctx context.Context, endpoint, body string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// parseAPIError builds an APIError from a non-success response body.
// The common error envelopes are recognized; anything else keeps the raw body.
func parseAPIError(status int, endpoint string, body []byte) *apierrors.APIError {
	apiErr := apierrors.NewAPIError(status, endpoint, string(body))
	if !gjson.ValidBytes(body) {
		return apiErr
	}

	root := gjson.ParseBytes(body)
	errField := root.Get("error")
	switch {
	case errField.IsObject():
		apiErr.Message = errField.Get("message").String()
		for _, key := range []string{"code", "status", "type"} {
			if v := errField.Get(key); v.Exists() && v.String() != "" {
				apiErr.Code = v.String()
				break
			}
		}
	case errField.Type == gjson.String:
		apiErr.Message = errField.String()
	case root.Get("message").Type == gjson.String:
		apiErr.Message = root.Get("message").String()
	}
	return apiErr
}

// inStreamError reports an error object sent inside an open stream as a
// backend-reported APIError. A numeric error code is taken as the status.
func inStreamError(data []byte) error {
	errField := gjson.GetBytes(data, "error")
	if !errField.Exists() {
		return nil
	}

	apiErr := parseAPIError(0, "", data)
	if code := errField.Get("code"); code.Type == gjson.Number {
		apiErr.StatusCode = int(code.Int())
		apiErr.Code = ""
		for _, key := range []string{"status", "type"} {
			if v := errField.Get(key); v.String() != "" {
				apiErr.Code = v.String()
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = "backend reported an error"
	}
	apiErr.Body = ""
	return apiErr
}
