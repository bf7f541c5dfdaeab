package api

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/models"
)

func conversation() []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "weather?"},
	}
}

func TestGeminiProvider(t *testing.T) {
	sse := `data: {"candidates":[{"content":{"parts":[{"text":"plan","thought":true}],"role":"model"}}]}` + "\n\n" +
		`data: {"candidates":[{"content":{"parts":[{"text":"Sun"},{"text":"ny"}],"role":"model"}}]}` + "\n\n"
	doer := newFakeDoer(200, sse)
	c := NewClient(WithHTTPClient(doer))

	req := Request{Provider: models.ProviderGemini, Address: models.DefaultGeminiAddress, Credential: "g-key", Model: "gemini-2.5-flash", Messages: conversation()}
	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)

	assert.Equal(t, "Sunny", got.Text)
	assert.Equal(t, "plan", got.Reasoning)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:streamGenerateContent", doer.request.URL.Path)
	assert.Equal(t, "sse", doer.request.URL.Query().Get("alt"))
	assert.Equal(t, "g-key", doer.request.Header.Get("x-goog-api-key"))
	assert.Equal(t, "be brief", gjson.Get(doer.payload, "systemInstruction.parts.0.text").String())
	assert.Equal(t, int64(3), gjson.Get(doer.payload, "contents.#").Int())
	assert.Equal(t, "model", gjson.Get(doer.payload, "contents.1.role").String())
}

func TestGeminiProvider_ErrorEnvelope(t *testing.T) {
	body := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`
	c := NewClient(WithHTTPClient(newFakeDoer(400, body)))

	req := Request{Provider: models.ProviderGemini, Address: models.DefaultGeminiAddress, Model: "m", Messages: conversation()}
	_, err := c.Stream(context.Background(), req)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "400", apiErr.Code)
	assert.Equal(t, "API key not valid", apiErr.Message)
}

func TestOllamaProvider(t *testing.T) {
	ndjson := strings.Join([]string{
		`{"message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}`,
		`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
		``,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
		`{"message":{"role":"assistant","content":"after done"},"done":false}`,
	}, "\n")
	doer := newFakeDoer(200, ndjson)
	c := NewClient(WithHTTPClient(doer))

	req := Request{Provider: models.ProviderOllama, Address: models.DefaultOllamaAddress, Model: "llama3", Messages: conversation()}
	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)

	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, "hmm", got.Reasoning)
	assert.Equal(t, "http://localhost:11434/api/chat", doer.request.URL.String())
	assert.Equal(t, int64(4), gjson.Get(doer.payload, "messages.#").Int())
	assert.Equal(t, "", doer.request.Header.Get("Authorization"))
}

func TestOllamaProvider_ErrorLine(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(200, `{"error":"model 'nope' not found"}`)))

	req := Request{Provider: models.ProviderOllama, Address: models.DefaultOllamaAddress, Model: "nope", Messages: conversation()}
	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	_, err = collect(t, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaProvider_StringErrorStatus(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(404, `{"error":"model not found"}`)))

	req := Request{Provider: models.ProviderOllama, Address: models.DefaultOllamaAddress, Model: "nope", Messages: conversation()}
	_, err := c.Stream(context.Background(), req)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "model not found", apiErr.Message)
	assert.Equal(t, "API error (HTTP 404): model not found", apierrors.DisplayMessage(err))
}

func TestAnthropicProvider(t *testing.T) {
	sse := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"consider\"}}\n\n" +
		"event: ping\ndata: {\"type\":\"ping\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
	doer := newFakeDoer(200, sse)
	c := NewClient(WithHTTPClient(doer))

	req := Request{Provider: models.ProviderAnthropic, Address: models.DefaultAnthropicAddress, Credential: "a-key", Model: "claude", Messages: conversation()}
	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", got.Text)
	assert.Equal(t, "consider", got.Reasoning)
	assert.Equal(t, "a-key", doer.request.Header.Get("x-api-key"))
	assert.Equal(t, models.AnthropicVersion, doer.request.Header.Get("anthropic-version"))
	assert.Equal(t, "be brief", gjson.Get(doer.payload, "system").String())
	assert.Equal(t, int64(3), gjson.Get(doer.payload, "messages.#").Int())
	assert.Equal(t, int64(models.AnthropicMaxTokens), gjson.Get(doer.payload, "max_tokens").Int())
}

func TestAnthropicProvider_ErrorEvent(t *testing.T) {
	sse := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"par\"}}\n\n" +
		"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"
	c := NewClient(WithHTTPClient(newFakeDoer(200, sse)))

	req := Request{Provider: models.ProviderAnthropic, Address: models.DefaultAnthropicAddress, Model: "claude", Messages: conversation()}
	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	got, err := collect(t, ch)
	assert.Equal(t, "par", got.Text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
	assert.Equal(t, "overloaded_error", apierrors.GetErrorCode(err))
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{"openai", `{"error":{"message":"m","code":"c"}}`, "c", "m"},
		{"anthropic", `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, "authentication_error", "bad key"},
		{"string error", `{"error":"boom"}`, "", "boom"},
		{"top level message", `{"message":"nope"}`, "", "nope"},
		{"not json", `oops`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAPIError(500, "e", []byte(tt.body))
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, 500, got.StatusCode)
		})
	}
}
