package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diogo/llmchat/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "markdown", "md" and "json"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q: use markdown or json", s)
	}
}

// ExportOptions configures how records are exported
type ExportOptions struct {
	Format          ExportFormat
	IncludeMetadata bool // Include record ID and hash in JSON export
	IncludeThoughts bool // Include reasoning content
}

// DefaultExportOptions returns sensible defaults for export
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          ExportFormatMarkdown,
		IncludeMetadata: false,
		IncludeThoughts: true,
	}
}

// Export renders rec in the format selected by opts
func Export(rec Record, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case ExportFormatJSON:
		return ExportJSON(rec, opts)
	default:
		return []byte(ExportMarkdown(rec, opts)), nil
	}
}

// ExportMarkdown renders rec as a Markdown document
func ExportMarkdown(rec Record, opts ExportOptions) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(rec.Title)
	sb.WriteString("\n\n")

	sb.WriteString("**Created:** ")
	sb.WriteString(rec.CreatedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	sb.WriteString("**Updated:** ")
	sb.WriteString(rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(rec.Messages))

	for i, msg := range rec.Messages {
		sb.WriteString("## ")
		sb.WriteString(senderLabel(msg.Sender))
		if !msg.CreatedAt.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(msg.CreatedAt.Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		if opts.IncludeThoughts && msg.Reasoning != "" {
			sb.WriteString("<details>\n<summary>Reasoning</summary>\n\n")
			sb.WriteString(msg.Reasoning)
			sb.WriteString("\n\n</details>\n\n")
		}

		sb.WriteString(msg.Text)
		sb.WriteString("\n")

		if i < len(rec.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

type exportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type exportRecord struct {
	ID        string          `json:"id,omitempty"`
	Hash      string          `json:"hash,omitempty"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []exportMessage `json:"messages"`
}

// ExportJSON renders rec as indented JSON
func ExportJSON(rec Record, opts ExportOptions) ([]byte, error) {
	out := exportRecord{
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Messages:  make([]exportMessage, 0, len(rec.Messages)),
	}
	if opts.IncludeMetadata {
		out.ID = rec.ID
		out.Hash = rec.Hash
	}

	for _, msg := range rec.Messages {
		em := exportMessage{
			Role:      string(models.RoleFor(msg.Sender)),
			Content:   msg.Text,
			Timestamp: msg.CreatedAt,
		}
		if opts.IncludeThoughts {
			em.Reasoning = msg.Reasoning
		}
		out.Messages = append(out.Messages, em)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

func senderLabel(s models.Sender) string {
	switch s {
	case models.SenderAssistant:
		return "Assistant"
	case models.SenderSystem:
		return "System"
	default:
		return "User"
	}
}
