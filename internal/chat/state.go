// Package chat implements the streaming response engine: the conversation
// state, the session controller that owns the single in-flight model call,
// and the loop that confines every state mutation to one goroutine.
package chat

import (
	"slices"

	"github.com/diogo/llmchat/internal/models"
)

// MessageFlags are transient display flags kept next to a message
type MessageFlags struct {
	ReasoningExpanded bool
	ReasoningComplete bool
	AnimationComplete bool
}

// State is the conversation shown to the user.
//
// State is not safe for concurrent use. It belongs to the goroutine that
// drains the Loop; workers reach it only through posted closures.
type State struct {
	messages []models.Message
	flags    map[string]*MessageFlags

	userScrolledAway bool
	calling          bool
	streamingID      string
	active           *Session

	version uint64
}

// NewState creates an empty conversation
func NewState() *State {
	return &State{flags: make(map[string]*MessageFlags)}
}

// Version increases on every mutation
func (s *State) Version() uint64 { return s.version }

// IsCalling reports whether a response is in flight
func (s *State) IsCalling() bool { return s.calling }

// StreamingID is the message currently receiving increments, "" when none
func (s *State) StreamingID() string { return s.streamingID }

// Active returns the in-flight session, nil when none
func (s *State) Active() *Session { return s.active }

// UserScrolledAway reports whether the user left the bottom of the transcript
func (s *State) UserScrolledAway() bool { return s.userScrolledAway }

// SetUserScrolledAway records whether the user left the bottom of the transcript
func (s *State) SetUserScrolledAway(v bool) { s.userScrolledAway = v }

// Len returns the number of messages
func (s *State) Len() int { return len(s.messages) }

// Snapshot returns a copy of the conversation for readers
func (s *State) Snapshot() []models.Message {
	return slices.Clone(s.messages)
}

// Message returns the message with id
func (s *State) Message(id string) (models.Message, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.messages[i], true
	}
	return models.Message{}, false
}

// Flags returns the display flags of the message with id
func (s *State) Flags(id string) MessageFlags {
	if f, ok := s.flags[id]; ok {
		return *f
	}
	return MessageFlags{}
}

// ToggleReasoning expands or collapses the reasoning of a message
func (s *State) ToggleReasoning(id string) {
	if f, ok := s.flags[id]; ok {
		f.ReasoningExpanded = !f.ReasoningExpanded
		s.version++
	}
}

// AppendUserMessage adds a user message and returns its id
func (s *State) AppendUserMessage(text string) string {
	m := models.NewMessage(models.SenderUser, text)
	s.append(m, MessageFlags{AnimationComplete: true, ReasoningComplete: true})
	s.userScrolledAway = false
	return m.ID
}

// AppendPlaceholderAssistantMessage adds an empty assistant message and returns its id
func (s *State) AppendPlaceholderAssistantMessage() string {
	m := models.NewPlaceholder()
	s.append(m, MessageFlags{})
	return m.ID
}

// AppendSystemMessage adds a local notice that is never sent or saved
func (s *State) AppendSystemMessage(text string) string {
	m := models.NewMessage(models.SenderSystem, text)
	s.append(m, MessageFlags{AnimationComplete: true, ReasoningComplete: true})
	return m.ID
}

// ApplyTextIncrement appends delta to the visible text of a message.
// Failed messages are frozen and ignore increments.
func (s *State) ApplyTextIncrement(id, delta string) bool {
	i := s.indexOf(id)
	if i < 0 || s.messages[i].IsError || delta == "" {
		return false
	}
	m := &s.messages[i]
	m.Text += delta
	m.ContentStarted = true
	if m.Reasoning != "" {
		s.flagsFor(id).ReasoningComplete = true
	}
	s.version++
	return true
}

// ApplyReasoningIncrement appends delta to the reasoning of a message
func (s *State) ApplyReasoningIncrement(id, delta string) bool {
	i := s.indexOf(id)
	if i < 0 || s.messages[i].IsError || delta == "" {
		return false
	}
	m := &s.messages[i]
	m.Reasoning += delta
	m.ContentStarted = true
	s.version++
	return true
}

// MarkError appends an error notice to a message and freezes it.
// The reasoning is dropped. A message already marked stays unchanged.
func (s *State) MarkError(id, errText string) bool {
	i := s.indexOf(id)
	if i < 0 || s.messages[i].IsError {
		return false
	}
	m := &s.messages[i]
	if m.Text != "" {
		m.Text += "\n\n"
	}
	m.Text += "Error: " + errText
	m.Reasoning = ""
	m.IsError = true
	m.ContentStarted = true
	f := s.flagsFor(id)
	f.ReasoningExpanded = false
	f.ReasoningComplete = true
	s.version++
	return true
}

// RemoveIfEmptyPlaceholder removes the message only when it is an
// untouched placeholder. With removePairedUser the user message right
// before it goes too.
func (s *State) RemoveIfEmptyPlaceholder(id string, removePairedUser bool) bool {
	i := s.indexOf(id)
	if i < 0 || !s.messages[i].IsUntouchedPlaceholder() {
		return false
	}

	start := i
	if removePairedUser && i > 0 && s.messages[i-1].Sender == models.SenderUser {
		start = i - 1
	}
	for _, m := range s.messages[start : i+1] {
		delete(s.flags, m.ID)
	}
	s.messages = slices.Delete(s.messages, start, i+1)
	s.version++
	return true
}

// RemoveMessage removes the message with id
func (s *State) RemoveMessage(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	delete(s.flags, id)
	s.messages = slices.Delete(s.messages, i, i+1)
	s.version++
	return true
}

// TruncateFrom removes the message with id and everything after it
func (s *State) TruncateFrom(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	for _, m := range s.messages[i:] {
		delete(s.flags, m.ID)
	}
	s.messages = slices.Delete(s.messages, i, len(s.messages))
	s.version++
	return true
}

// LastUserMessage returns the most recent user message
func (s *State) LastUserMessage() (models.Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Sender == models.SenderUser {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// Replace swaps in a saved conversation. Every message is shown finished.
func (s *State) Replace(msgs []models.Message) {
	s.messages = slices.Clone(msgs)
	s.flags = make(map[string]*MessageFlags, len(msgs))
	for _, m := range s.messages {
		s.flags[m.ID] = &MessageFlags{AnimationComplete: true, ReasoningComplete: true}
	}
	s.userScrolledAway = false
	s.version++
}

// Clear removes every message
func (s *State) Clear() {
	s.Replace(nil)
}

func (s *State) append(m models.Message, f MessageFlags) {
	s.messages = append(s.messages, m)
	s.flags[m.ID] = &f
	s.version++
}

func (s *State) flagsFor(id string) *MessageFlags {
	f, ok := s.flags[id]
	if !ok {
		f = &MessageFlags{}
		s.flags[id] = f
	}
	return f
}

func (s *State) setFinished(id string) {
	if s.indexOf(id) < 0 {
		return
	}
	f := s.flagsFor(id)
	f.AnimationComplete = true
	f.ReasoningComplete = true
	s.version++
}

func (s *State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
