package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle position of a streaming session
type SessionState int

const (
	StateIdle SessionState = iota
	StateStarting
	StateStreaming
	StateCompleting
	StateCommitted
	StateCancelled
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateCompleting:
		return "completing"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has ended
func (s SessionState) Terminal() bool {
	return s == StateCommitted || s == StateCancelled || s == StateFailed
}

// CancelReason records who ended a session early
type CancelReason int

const (
	CancelNone CancelReason = iota
	CancelStop
	CancelRestart
	CancelRegenerate
	CancelConfigChange
	CancelDelete
	CancelNewConversation
	CancelLoad
	CancelShutdown
)

func (r CancelReason) String() string {
	switch r {
	case CancelStop:
		return "stop"
	case CancelRestart:
		return "restart"
	case CancelRegenerate:
		return "regenerate"
	case CancelConfigChange:
		return "config_change"
	case CancelDelete:
		return "delete"
	case CancelNewConversation:
		return "new_conversation"
	case CancelLoad:
		return "load"
	case CancelShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// userInitiated reports whether the user asked for the cancellation directly
func (r CancelReason) userInitiated() bool {
	return r == CancelStop || r == CancelRestart || r == CancelRegenerate
}

// Session is one in-flight model call targeting one placeholder message.
// Apart from Done, its accessors are for the owner goroutine.
type Session struct {
	id       string
	userID   string
	targetID string
	started  time.Time

	state  SessionState
	reason CancelReason
	err    error

	cancel  context.CancelFunc
	cleaned bool
	done    chan struct{}
}

func newSession(userID, targetID string, cancel context.CancelFunc) *Session {
	return &Session{
		id:       uuid.NewString(),
		userID:   userID,
		targetID: targetID,
		started:  time.Now(),
		state:    StateIdle,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// ID identifies the session in logs
func (s *Session) ID() string { return s.id }

// UserID is the user message that started the session
func (s *Session) UserID() string { return s.userID }

// TargetID is the assistant message receiving the response
func (s *Session) TargetID() string { return s.targetID }

// State returns the lifecycle position
func (s *Session) State() SessionState { return s.state }

// CancelReason returns why the session was cancelled, CancelNone otherwise
func (s *Session) CancelReason() CancelReason { return s.reason }

// Err returns the failure of a failed session
func (s *Session) Err() error { return s.err }

// Done is closed once terminal cleanup has run
func (s *Session) Done() <-chan struct{} { return s.done }
