package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/diogo/llmchat/internal/api"
	"github.com/diogo/llmchat/internal/config"
	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/logging"
	"github.com/diogo/llmchat/internal/models"
)

// DefaultHistoryLimit is how many prior messages are sent with a prompt
const DefaultHistoryLimit = 50

// ErrNothingToRegenerate is returned when the conversation has no user message
var ErrNothingToRegenerate = errors.New("no user message to regenerate")

// ConfigSource yields the API configuration used for new sessions
type ConfigSource interface {
	Selected() (models.APIConfig, bool)
}

// HistoryStore is the part of history.History the controller drives
type HistoryStore interface {
	CommitIfNeeded(transcript []models.Message) (history.CommitResult, error)
	Open(index int) (history.Record, error)
	ResetLoaded()
}

// EventKind tells observers what happened
type EventKind int

const (
	EventIncrement EventKind = iota
	EventSessionEnded
	EventNotice
)

// Event is delivered to the observer on the owner goroutine
type Event struct {
	Kind      EventKind
	Session   *Session
	MessageID string
	Increment models.Increment
	Notice    string
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNotifier sets the channel for short user-facing notices
func WithNotifier(n config.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithObserver registers a callback for session events
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithHistoryLimit bounds how many prior messages are sent with a prompt
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// Controller runs at most one streaming session against a State.
//
// Every method must be called on the goroutine that drains the loop.
// The worker of a session only posts closures to it. History writes are
// queued to a writer goroutine so saving never blocks the loop.
type Controller struct {
	state     *State
	transport api.Transport
	configs   ConfigSource
	history   HistoryStore
	loop      Dispatcher

	notifier     config.Notifier
	observer     func(Event)
	logger       *slog.Logger
	historyLimit int

	// History calls run in order on the writer goroutine
	writes     chan func()
	writerDone chan struct{}
	closed     bool
}

var _ config.Canceller = (*Controller)(nil)

// NewController wires a controller. history may be nil when nothing is saved.
func NewController(state *State, transport api.Transport, configs ConfigSource, hist HistoryStore, loop Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		state:        state,
		transport:    transport,
		configs:      configs,
		history:      hist,
		loop:         loop,
		notifier:     config.NotifierFunc(func(string) {}),
		logger:       logging.Discard(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if hist != nil {
		c.writes = make(chan func(), 32)
		c.writerDone = make(chan struct{})
		go c.writer()
	}
	return c
}

// State returns the conversation driven by c
func (c *Controller) State() *State { return c.state }

// Start sends userText with the prior conversation and streams the reply
// into a new assistant message. Any running session is cancelled first.
func (c *Controller) Start(userText string) (*Session, error) {
	cfg, ok := c.configs.Selected()
	if !ok {
		c.notify("Select an API configuration first")
		return nil, apierrors.ErrNoActiveConfig
	}
	if strings.TrimSpace(userText) == "" {
		return nil, apierrors.ErrEmptyPrompt
	}

	c.cancelActive(CancelRestart)
	if stale := c.state.streamingID; stale != "" {
		c.state.RemoveIfEmptyPlaceholder(stale, false)
		c.state.streamingID = ""
	}

	userID := c.state.AppendUserMessage(userText)
	targetID := c.state.AppendPlaceholderAssistantMessage()

	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(userID, targetID, cancel)
	s.state = StateStarting
	c.state.active = s
	c.state.calling = true
	c.state.streamingID = targetID

	req := api.NewRequest(cfg, c.buildHistory())
	c.logger.Info("session started",
		"session", s.id,
		"provider", req.Provider,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	go c.run(ctx, s, req)
	return s, nil
}

// Stop cancels the running session, keeping any partial reply
func (c *Controller) Stop() {
	c.cancelActive(CancelStop)
}

// CancelActive cancels the running session because the configuration changed
func (c *Controller) CancelActive() {
	c.cancelActive(CancelConfigChange)
}

// Regenerate drops the last exchange and asks the same question again
func (c *Controller) Regenerate() (*Session, error) {
	if _, ok := c.configs.Selected(); !ok {
		c.notify("Select an API configuration first")
		return nil, apierrors.ErrNoActiveConfig
	}

	// Read the question first: cancelling a session that has not reached
	// the network removes its user message.
	last, ok := c.state.LastUserMessage()
	if !ok {
		return nil, ErrNothingToRegenerate
	}
	c.cancelActive(CancelRegenerate)
	c.state.TruncateFrom(last.ID)
	return c.Start(last.Text)
}

// DeleteMessage removes a message, cancelling the session that writes to it
func (c *Controller) DeleteMessage(id string) {
	if s := c.state.active; s != nil && !s.state.Terminal() && (s.targetID == id || s.userID == id) {
		c.cancelSession(s, CancelDelete)
	}
	if c.state.RemoveMessage(id) {
		c.commit()
	}
}

// NewConversation cancels the running session and starts an empty transcript
func (c *Controller) NewConversation() {
	c.cancelActive(CancelNewConversation)
	c.state.Clear()
	c.persist(func() { c.history.ResetLoaded() })
}

// OpenConversation replaces the transcript with a saved record
func (c *Controller) OpenConversation(index int) error {
	if c.history == nil {
		return errors.New("history is disabled")
	}
	c.cancelActive(CancelLoad)

	var rec history.Record
	var err error
	if !c.await(func() { rec, err = c.history.Open(index) }) {
		return errors.New("history is closed")
	}
	if err != nil {
		return err
	}
	c.state.Replace(rec.Messages)
	c.logger.Info("conversation opened", "record", rec.ID, "messages", len(rec.Messages))
	return nil
}

// Flush waits until every queued history write is done
func (c *Controller) Flush() {
	c.await(func() {})
}

// Close cancels the running session and waits for queued history writes.
// Later commits are dropped.
func (c *Controller) Close() {
	c.cancelActive(CancelShutdown)
	if c.writes == nil || c.closed {
		return
	}
	c.closed = true
	close(c.writes)
	<-c.writerDone
}

// run consumes the transport on the worker goroutine
func (c *Controller) run(ctx context.Context, s *Session, req api.Request) {
	ch, err := c.transport.Stream(ctx, req)
	if err != nil {
		c.loop.Post(func() { c.finish(s, err) })
		return
	}
	if !c.loop.Post(func() { c.opened(s) }) {
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			err := chunk.Err
			c.loop.Post(func() { c.finish(s, err) })
			return
		}
		if chunk.Increment.Empty() {
			continue
		}
		inc := chunk.Increment
		if !c.loop.Post(func() { c.apply(s, inc) }) {
			return
		}
	}
	c.loop.Post(func() { c.finish(s, nil) })
}

func (c *Controller) opened(s *Session) {
	if s.state == StateStarting {
		s.state = StateStreaming
	}
}

// apply writes one increment if s still owns its target message
func (c *Controller) apply(s *Session, inc models.Increment) {
	if s.state.Terminal() || s.state == StateCompleting {
		c.logger.Debug("dropped increment of ended session", "session", s.id)
		return
	}
	if c.state.streamingID != s.targetID {
		c.logger.Debug("dropped increment of replaced session", "session", s.id)
		return
	}
	msg, ok := c.state.Message(s.targetID)
	if !ok || msg.IsError {
		return
	}

	if s.state == StateStarting {
		s.state = StateStreaming
	}
	c.state.ApplyReasoningIncrement(s.targetID, inc.Reasoning)
	c.state.ApplyTextIncrement(s.targetID, inc.Text)
	c.emit(Event{Kind: EventIncrement, Session: s, MessageID: s.targetID, Increment: inc})
}

// finish ends a session the transport completed or failed
func (c *Controller) finish(s *Session, err error) {
	if s.state.Terminal() {
		return
	}
	if err != nil && apierrors.IsCanceled(err) {
		c.cancelSession(s, CancelStop)
		return
	}

	s.state = StateCompleting
	msg, ok := c.state.Message(s.targetID)
	switch {
	case !ok:
		s.state = StateCancelled
	case err != nil:
		s.state = StateFailed
		s.err = err
		c.state.MarkError(s.targetID, apierrors.DisplayMessage(err))
		c.state.setFinished(s.targetID)
		c.logger.Warn("session failed", "session", s.id, "error", err)
	case msg.IsUntouchedPlaceholder():
		s.state = StateFailed
		s.err = apierrors.ErrEmptyResponse
		c.state.MarkError(s.targetID, apierrors.DisplayMessage(apierrors.ErrEmptyResponse))
		c.state.setFinished(s.targetID)
		c.logger.Warn("session failed", "session", s.id, "error", s.err)
	default:
		s.state = StateCommitted
		c.state.setFinished(s.targetID)
	}

	c.cleanup(s)
	if s.state == StateCommitted {
		c.commit()
	}
	c.logger.Info("session ended",
		"session", s.id,
		"outcome", s.state.String(),
		"duration", time.Since(s.started).Round(time.Millisecond).String(),
	)
	c.emit(Event{Kind: EventSessionEnded, Session: s, MessageID: s.targetID})
}

func (c *Controller) cancelActive(reason CancelReason) {
	if s := c.state.active; s != nil && !s.state.Terminal() {
		c.cancelSession(s, reason)
	}
}

// cancelSession ends s early. An untouched placeholder is removed, and
// partial content is kept frozen.
func (c *Controller) cancelSession(s *Session, reason CancelReason) {
	beforeNetwork := s.state == StateStarting
	s.reason = reason
	s.state = StateCancelled
	s.cancel()

	keep := false
	if msg, ok := c.state.Message(s.targetID); ok {
		switch {
		case msg.IsUntouchedPlaceholder():
			c.state.RemoveIfEmptyPlaceholder(s.targetID, beforeNetwork && reason.userInitiated())
		case !msg.IsError:
			c.state.setFinished(s.targetID)
			keep = true
		}
	}

	c.cleanup(s)
	if keep {
		c.commit()
	}
	c.logger.Info("session cancelled", "session", s.id, "reason", reason.String(), "partial", keep)
	c.emit(Event{Kind: EventSessionEnded, Session: s, MessageID: s.targetID})
}

// cleanup releases s exactly once
func (c *Controller) cleanup(s *Session) {
	if s.cleaned {
		return
	}
	s.cleaned = true
	s.cancel()
	if c.state.active == s {
		c.state.active = nil
		c.state.calling = false
	}
	if c.state.streamingID == s.targetID {
		c.state.streamingID = ""
	}
	close(s.done)
}

// commit queues a save of the current transcript. A failure is reported
// back on the loop.
func (c *Controller) commit() {
	transcript := c.state.Snapshot()
	c.persist(func() {
		res, err := c.history.CommitIfNeeded(transcript)
		if err != nil {
			c.logger.Error("failed to save conversation", "error", err)
			go c.loop.Post(func() { c.notify("Failed to save conversation") })
			return
		}
		c.logger.Debug("conversation committed", "result", res.String())
	})
}

func (c *Controller) writer() {
	defer close(c.writerDone)
	for job := range c.writes {
		job()
	}
}

// persist queues fn behind earlier history calls
func (c *Controller) persist(fn func()) bool {
	if c.writes == nil || c.closed {
		return false
	}
	c.writes <- fn
	return true
}

// await runs fn on the writer and waits for it
func (c *Controller) await(fn func()) bool {
	done := make(chan struct{})
	if !c.persist(func() { fn(); close(done) }) {
		return false
	}
	<-done
	return true
}

// buildHistory turns the transcript into the messages sent to the backend
func (c *Controller) buildHistory() []models.ChatMessage {
	var out []models.ChatMessage
	for _, m := range c.state.messages {
		if m.Sender == models.SenderSystem || m.IsError {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		out = append(out, models.ChatMessage{Role: models.RoleFor(m.Sender), Content: text})
	}
	if len(out) > c.historyLimit {
		out = out[len(out)-c.historyLimit:]
	}
	return out
}

func (c *Controller) notify(msg string) {
	c.notifier.Notify(msg)
	c.emit(Event{Kind: EventNotice, Notice: msg})
}

func (c *Controller) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}
