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

// ollamaProvider speaks the Ollama /api/chat protocol, which streams
// newline delimited JSON objects.
type ollamaProvider struct{}

func (ollamaProvider) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := `{"stream":true}`
	var err error
	if body, err = sjson.Set(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "messages", payloadMessages(req.Messages)); err != nil {
		return nil, err
	}

	httpReq, err := newJSONRequest(ctx, req.Address+"/api/chat", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}
	return httpReq, nil
}

func (ollamaProvider) decode(body io.Reader, emit emitFunc) error {
	err := readLines(body, func(line []byte) (bool, error) {
		if !gjson.ValidBytes(line) {
			return false, apierrors.NewParseError("invalid chunk", string(line))
		}
		if err := inStreamError(line); err != nil {
			return false, err
		}

		msg := gjson.GetBytes(line, "message")
		inc := models.Increment{
			Text:      msg.Get("content").String(),
			Reasoning: msg.Get("thinking").String(),
		}
		if !inc.Empty() && !emit(inc) {
			return false, nil
		}
		return !gjson.GetBytes(line, "done").Bool(), nil
	})
	if err != nil {
		var parseErr *apierrors.ParseError
		var streamErr *apierrors.StreamError
		if errors.As(err, &parseErr) || errors.As(err, &streamErr) {
			return err
		}
		return apierrors.NewStreamError("failed to read stream", err)
	}
	return nil
}
