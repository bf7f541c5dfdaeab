// Package models contains the data types shared by the chat engine, the
// provider transports and the persistence layers.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Message is a single entry of a conversation.
// Text and Reasoning only ever grow while a response is streaming.
type Message struct {
	ID             string    `json:"id"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	Reasoning      string    `json:"reasoning,omitempty"`
	ContentStarted bool      `json:"content_started"`
	IsError        bool      `json:"is_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh identifier
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:             uuid.NewString(),
		Sender:         sender,
		Text:           text,
		ContentStarted: text != "",
		CreatedAt:      time.Now(),
	}
}

// NewPlaceholder creates an empty assistant message that a stream will fill
func NewPlaceholder() Message {
	return NewMessage(SenderAssistant, "")
}

// IsUntouchedPlaceholder reports whether m is an assistant message that never
// received any content and did not fail.
func (m Message) IsUntouchedPlaceholder() bool {
	return m.Sender == SenderAssistant &&
		!m.ContentStarted &&
		!m.IsError &&
		m.Text == "" &&
		m.Reasoning == ""
}

// IsBlank reports whether the visible text is empty after trimming
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Increment is one unit of streamed output.
// Either field may be empty.
type Increment struct {
	Text      string
	Reasoning string
}

// Empty reports whether the increment carries nothing
func (i Increment) Empty() bool {
	return i.Text == "" && i.Reasoning == ""
}

// Role is the role name sent to a backend
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a role-tagged message as sent to a backend
type ChatMessage struct {
	Role    Role
	Content string
}

// RoleFor maps a sender to its backend role
func RoleFor(s Sender) Role {
	switch s {
	case SenderAssistant:
		return RoleAssistant
	case SenderSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}
