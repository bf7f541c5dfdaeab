// Package history persists finished conversations and keeps track of the
// one currently loaded in the chat.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/llmchat/internal/models"
)

// maxTitleLen bounds the title derived from the first user message
const maxTitleLen = 50

// Record is a frozen copy of a conversation
type Record struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []models.Message `json:"messages"`
	Hash      string           `json:"hash"`
}

// Clone returns a deep copy of r
func (r Record) Clone() Record {
	r.Messages = slices.Clone(r.Messages)
	return r
}

// Persistable returns the messages of a transcript that belong in history.
// System messages, failed responses and assistant messages that never
// received content are dropped.
func Persistable(transcript []models.Message) []models.Message {
	out := make([]models.Message, 0, len(transcript))
	for _, m := range transcript {
		switch {
		case m.Sender == models.SenderSystem:
			continue
		case m.IsError:
			continue
		case m.Sender == models.SenderAssistant && !m.ContentStarted:
			continue
		}
		out = append(out, m)
	}
	return out
}

// ContentHash identifies a message sequence by sender, text and reasoning.
// Identifiers and timestamps do not contribute. Each message is hashed on
// its own and the fixed-length digests are chained, so no text can forge a
// message boundary.
func ContentHash(msgs []models.Message) string {
	h := sha256.New()
	for _, m := range msgs {
		h.Write([]byte(messageHash(m)))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func messageHash(m models.Message) string {
	s := fmt.Sprintf(`{"sender":%q,"text":%q,"reasoning":%q}`, m.Sender, m.Text, m.Reasoning)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// sameContent compares two message sequences the way ContentHash does
func sameContent(a, b []models.Message) bool {
	return slices.EqualFunc(a, b, func(x, y models.Message) bool {
		return x.Sender == y.Sender && x.Text == y.Text && x.Reasoning == y.Reasoning
	})
}

// newRecord creates a record for an already filtered message list
func newRecord(msgs []models.Message, now time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		Title:     deriveTitle(msgs, now),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  slices.Clone(msgs),
		Hash:      ContentHash(msgs),
	}
}

// deriveTitle uses the first user message, falling back to the date
func deriveTitle(msgs []models.Message, now time.Time) string {
	for _, m := range msgs {
		if m.Sender != models.SenderUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Text), " ")
		if title == "" {
			continue
		}
		r := []rune(title)
		if len(r) > maxTitleLen {
			return string(r[:maxTitleLen]) + "..."
		}
		return title
	}
	return "Chat " + now.Format("2006-01-02 15:04")
}
