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

// openAIProvider speaks the OpenAI chat completions protocol, which most
// hosted and self-hosted gateways also accept.
type openAIProvider struct{}

func (openAIProvider) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := `{"stream":true}`
	var err error
	if body, err = sjson.Set(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "messages", payloadMessages(req.Messages)); err != nil {
		return nil, err
	}

	httpReq, err := newJSONRequest(ctx, req.Address+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}
	return httpReq, nil
}

func (openAIProvider) decode(body io.Reader, emit emitFunc) error {
	reader := newSSEReader(body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return apierrors.NewStreamError("failed to read stream", err)
		}

		if string(ev.Data) == "[DONE]" {
			return nil
		}
		if !gjson.ValidBytes(ev.Data) {
			return apierrors.NewParseError("invalid chunk", string(ev.Data))
		}
		if err := inStreamError(ev.Data); err != nil {
			return err
		}

		delta := gjson.GetBytes(ev.Data, "choices.0.delta")
		inc := models.Increment{Text: delta.Get("content").String()}
		// DeepSeek style and OpenRouter style reasoning fields
		if r := delta.Get("reasoning_content"); r.Exists() {
			inc.Reasoning = r.String()
		} else {
			inc.Reasoning = delta.Get("reasoning").String()
		}

		if inc.Empty() {
			continue
		}
		if !emit(inc) {
			return nil
		}
	}
}
