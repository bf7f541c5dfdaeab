package api

import (
	"context"
	"errors"
	"io"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/models"
)

// anthropicProvider speaks the Anthropic messages protocol
type anthropicProvider struct{}

func (anthropicProvider) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var system string
	msgs := make([]payloadMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		msgs = append(msgs, payloadMessage{Role: string(m.Role), Content: m.Content})
	}

	body := `{"stream":true}`
	var err error
	if body, err = sjson.Set(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "max_tokens", models.AnthropicMaxTokens); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "messages", msgs); err != nil {
		return nil, err
	}
	if system != "" {
		if body, err = sjson.Set(body, "system", system); err != nil {
			return nil, err
		}
	}

	httpReq, err := newJSONRequest(ctx, req.Address+"/messages", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("anthropic-version", models.AnthropicVersion)
	if req.Credential != "" {
		httpReq.Header.Set("x-api-key", req.Credential)
	}
	return httpReq, nil
}

func (anthropicProvider) decode(body io.Reader, emit emitFunc) error {
	reader := newSSEReader(body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return apierrors.NewStreamError("failed to read stream", err)
		}
		if !gjson.ValidBytes(ev.Data) {
			return apierrors.NewParseError("invalid chunk", string(ev.Data))
		}

		kind := gjson.GetBytes(ev.Data, "type").String()
		switch kind {
		case "error":
			if err := inStreamError(ev.Data); err != nil {
				return err
			}
			return apierrors.NewStreamError("backend reported an error", nil)
		case "message_stop":
			return nil
		case "content_block_delta":
			delta := gjson.GetBytes(ev.Data, "delta")
			var inc models.Increment
			switch delta.Get("type").String() {
			case "text_delta":
				inc.Text = delta.Get("text").String()
			case "thinking_delta":
				inc.Reasoning = delta.Get("thinking").String()
			}
			if inc.Empty() {
				continue
			}
			if !emit(inc) {
				return nil
			}
		}
	}
}
