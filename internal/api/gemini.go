package api

import (
	"context"
	"errors"
	"io"
	"net/url"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/models"
)

// geminiProvider speaks the Gemini generateContent protocol
type geminiProvider struct{}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

func (geminiProvider) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var contents []geminiContent
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, geminiPart{Text: m.Content})
		case models.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	body := `{}`
	var err error
	if body, err = sjson.Set(body, "contents", contents); err != nil {
		return nil, err
	}
	if len(system) > 0 {
		if body, err = sjson.Set(body, "systemInstruction.parts", system); err != nil {
			return nil, err
		}
	}

	endpoint := req.Address + "/models/" + url.PathEscape(req.Model) + ":streamGenerateContent?alt=sse"
	httpReq, err := newJSONRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.Credential != "" {
		httpReq.Header.Set("x-goog-api-key", req.Credential)
	}
	return httpReq, nil
}

func (geminiProvider) decode(body io.Reader, emit emitFunc) error {
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
		if err := inStreamError(ev.Data); err != nil {
			return err
		}

		var inc models.Increment
		gjson.GetBytes(ev.Data, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
			if part.Get("thought").Bool() {
				inc.Reasoning += part.Get("text").String()
			} else {
				inc.Text += part.Get("text").String()
			}
			return true
		})

		if inc.Empty() {
			continue
		}
		if !emit(inc) {
			return nil
		}
	}
}
