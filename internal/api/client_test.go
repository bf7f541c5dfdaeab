package api

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/models"
)

// fakeDoer returns a canned response and records the request
type fakeDoer struct {
	mu      sync.Mutex
	status  int
	body    io.ReadCloser
	err     error
	request *http.Request
	payload string
}

func newFakeDoer(status int, body string) *fakeDoer {
	return &fakeDoer{status: status, body: io.NopCloser(strings.NewReader(body))}
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.request = req
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.payload = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{StatusCode: f.status, Body: f.body, Header: http.Header{}}, nil
}

func collect(t *testing.T, ch <-chan Chunk) (models.Increment, error) {
	t.Helper()
	var total models.Increment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return total, nil
			}
			if c.Err != nil {
				return total, c.Err
			}
			total.Text += c.Text
			total.Reasoning += c.Reasoning
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func openAIRequest() Request {
	return Request{
		Provider:   models.ProviderOpenAI,
		Address:    "https://api.example.com/v1",
		Credential: "sk-test",
		Model:      "gpt-test",
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
			{Role: models.RoleUser, Content: "how are you"},
		},
	}
}

func TestClient_OpenAIStream(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"think\"}}]}\n\n" +
		": keep-alive\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n"
	doer := newFakeDoer(200, sse)
	c := NewClient(WithHTTPClient(doer))

	ch, err := c.Stream(context.Background(), openAIRequest())
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)

	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, "think", got.Reasoning)

	assert.Equal(t, "https://api.example.com/v1/chat/completions", doer.request.URL.String())
	assert.Equal(t, "Bearer sk-test", doer.request.Header.Get("Authorization"))
	assert.Equal(t, "gpt-test", gjson.Get(doer.payload, "model").String())
	assert.True(t, gjson.Get(doer.payload, "stream").Bool())
	assert.Equal(t, int64(3), gjson.Get(doer.payload, "messages.#").Int())
	assert.Equal(t, "assistant", gjson.Get(doer.payload, "messages.1.role").String())
}

func TestClient_OpenAIReasoningField(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"reasoning\":\"r1\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"answer\"}}]}\n\n"
	c := NewClient(WithHTTPClient(newFakeDoer(200, sse)))

	ch, err := c.Stream(context.Background(), openAIRequest())
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Reasoning)
	assert.Equal(t, "answer", got.Text)
}

func TestClient_APIErrorParsed(t *testing.T) {
	body := `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`
	c := NewClient(WithHTTPClient(newFakeDoer(401, body)))

	_, err := c.Stream(context.Background(), openAIRequest())
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.Equal(t, "Incorrect API key provided", apiErr.Message)
	assert.Equal(t, "API error (HTTP 401, invalid_api_key): Incorrect API key provided", apierrors.DisplayMessage(err))
}

func TestClient_APIErrorRawBody(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(502, "<html>Bad Gateway</html>")))

	_, err := c.Stream(context.Background(), openAIRequest())
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Parsed())
	assert.Equal(t, "<html>Bad Gateway</html>", apiErr.Body)
}

func TestClient_NetworkError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("dial tcp: connection refused")}
	c := NewClient(WithHTTPClient(doer))

	_, err := c.Stream(context.Background(), openAIRequest())
	require.Error(t, err)
	assert.True(t, apierrors.IsNetworkError(err))
}

func TestClient_CanceledBeforeOpen(t *testing.T) {
	doer := &fakeDoer{err: errors.New("request canceled")}
	c := NewClient(WithHTTPClient(doer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Stream(ctx, openAIRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, apierrors.IsNetworkError(err))
}

func TestClient_InStreamErrorAfterContent(t *testing.T) {
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"overloaded\"}}\n\n"
	c := NewClient(WithHTTPClient(newFakeDoer(200, sse)))

	ch, err := c.Stream(context.Background(), openAIRequest())
	require.NoError(t, err)
	got, err := collect(t, ch)
	assert.Equal(t, "partial", got.Text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.True(t, apierrors.IsAPIError(err))
	assert.Equal(t, "API error: overloaded", apierrors.DisplayMessage(err))
}

func TestInStreamError_KeepsBackendCode(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantStatus int
		wantCode   string
		wantLabel  string
	}{
		{
			name:      "anthropic type",
			data:      `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantCode:  "overloaded_error",
			wantLabel: "API error (overloaded_error): Overloaded",
		},
		{
			name:       "gemini numeric code",
			data:       `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			wantStatus: 429,
			wantCode:   "RESOURCE_EXHAUSTED",
			wantLabel:  "API error (HTTP 429, RESOURCE_EXHAUSTED): Quota exceeded",
		},
		{
			name:      "plain string",
			data:      `{"error":"model not found"}`,
			wantLabel: "API error: model not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inStreamError([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, apierrors.GetHTTPStatus(err))
			assert.Equal(t, tt.wantCode, apierrors.GetErrorCode(err))
			assert.Equal(t, tt.wantLabel, apierrors.DisplayMessage(err))
		})
	}

	assert.NoError(t, inStreamError([]byte(`{"choices":[]}`)))
}

func TestClient_MalformedChunk(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(200, "data: {not json\n\n")))

	ch, err := c.Stream(context.Background(), openAIRequest())
	require.NoError(t, err)
	_, err = collect(t, ch)
	require.ErrorIs(t, err, apierrors.ErrInvalidResponse)
}

func TestClient_CancelStopsStreamWithoutError(t *testing.T) {
	pr, pw := io.Pipe()
	doer := &fakeDoer{status: 200, body: pr}
	c := NewClient(WithHTTPClient(doer))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, openAIRequest())
	require.NoError(t, err)

	go func() {
		_, _ = pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
	}()

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, "Hel", first.Text)

	cancel()
	for c := range ch {
		assert.NoError(t, c.Err, "cancellation must not surface as an error chunk")
	}
	_ = pw.Close()
}

func TestClient_UnsupportedProvider(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(200, "")))
	req := openAIRequest()
	req.Provider = "bard"

	_, err := c.Stream(context.Background(), req)
	require.Error(t, err)
}

func TestClient_MockProvider(t *testing.T) {
	c := NewClient(WithMockBackend(&MockBackend{Reasoning: "pondering"}))
	req := Request{Provider: models.ProviderMock, Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "ping pong"}}}

	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	got, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "You said: ping pong", got.Text)
	assert.Equal(t, "pondering", got.Reasoning)
}

func TestClient_ProxyResolution(t *testing.T) {
	c := NewClient(WithHTTPClient(newFakeDoer(200, "")))
	c.proxyFunc = func(u *url.URL) (*url.URL, error) {
		if u.Hostname() == "localhost" {
			return nil, nil
		}
		return url.Parse("http://proxy.internal:3128")
	}

	got, err := c.proxyFor("https://api.example.com/v1")
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.internal:3128", got)

	got, err = c.proxyFor("http://localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	explicit := NewClient(WithProxy("socks5://127.0.0.1:1080"))
	got, err = explicit.proxyFor("https://api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "socks5://127.0.0.1:1080", got)
}

func TestClient_ReusesDoerPerProxy(t *testing.T) {
	created := 0
	c := NewClient()
	c.proxyFunc = func(*url.URL) (*url.URL, error) { return nil, nil }
	c.newDoer = func(string) (Doer, error) {
		created++
		return newFakeDoer(200, ""), nil
	}

	_, err := c.doerFor("https://a.test")
	require.NoError(t, err)
	_, err = c.doerFor("https://b.test")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestNewRequest(t *testing.T) {
	cfg := models.APIConfig{Provider: "Ollama", Model: "llama3", Credential: " "}
	req := NewRequest(cfg, []models.ChatMessage{{Role: models.RoleUser, Content: "x"}})

	assert.Equal(t, models.ProviderOllama, req.Provider)
	assert.Equal(t, models.DefaultOllamaAddress, req.Address)
	assert.Equal(t, "", req.Credential)
	assert.Len(t, req.Messages, 1)
}
