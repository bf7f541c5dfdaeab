package api

import (
	"context"
	"strings"
	"time"

	"github.com/diogo/llmchat/internal/models"
)

// MockBackend streams a canned reply without any network access. It backs
// the "mock" provider, which is useful for trying the client offline.
type MockBackend struct {
	// Delay is the pause between increments
	Delay time.Duration
	// Reasoning is streamed before the reply when set
	Reasoning string
}

// NewMockBackend creates a mock backend with a typing-speed delay
func NewMockBackend() *MockBackend {
	return &MockBackend{Delay: 20 * time.Millisecond}
}

// Reply returns the text the mock answers with
func (m *MockBackend) Reply(req Request) string {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == models.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	return "You said: " + last
}

// Stream implements Transport
func (m *MockBackend) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for _, word := range splitKeep(m.Reasoning) {
			if !m.send(ctx, ch, models.Increment{Reasoning: word}) {
				return
			}
		}
		for _, word := range splitKeep(m.Reply(req)) {
			if !m.send(ctx, ch, models.Increment{Text: word}) {
				return
			}
		}
	}()
	return ch, nil
}

func (m *MockBackend) send(ctx context.Context, ch chan<- Chunk, inc models.Increment) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- Chunk{Increment: inc}:
	}
	if m.Delay <= 0 {
		return true
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// splitKeep splits s after each space, keeping the separators
func splitKeep(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, " ")
}
