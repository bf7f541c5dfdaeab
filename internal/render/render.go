package render

import (
	"strings"

	"github.com/diogo/llmchat/internal/models"
)

// Markdown renders markdown content for terminal display
func Markdown(content string, opts Options) (string, error) {
	r, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, r)

	return r.Render(content)
}

// MarkdownOrPlain renders content, falling back to the raw text on failure
func MarkdownOrPlain(content string, opts Options) string {
	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// Reasoning formats model reasoning as a markdown quote
func Reasoning(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// Message renders one message body. Failed and user messages are kept
// verbatim; assistant replies go through markdown with optional reasoning.
func Message(m models.Message, opts Options, showReasoning bool) string {
	if m.Sender != models.SenderAssistant || m.IsError {
		return m.Text
	}

	var sb strings.Builder
	if showReasoning && m.Reasoning != "" {
		sb.WriteString(Reasoning(m.Reasoning))
		sb.WriteString("\n\n")
	}
	sb.WriteString(m.Text)
	return MarkdownOrPlain(sb.String(), opts)
}

// SenderLabel is the heading shown above a message
func SenderLabel(s models.Sender) string {
	switch s {
	case models.SenderUser:
		return "You"
	case models.SenderAssistant:
		return "Assistant"
	default:
		return "System"
	}
}
