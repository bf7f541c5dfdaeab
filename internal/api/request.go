// Package api implements the streaming transports for the supported model
// backends.
package api

import (
	"context"

	"github.com/diogo/llmchat/internal/models"
)

// Request is one streamed completion call
type Request struct {
	Provider   models.Provider
	Address    string
	Credential string
	Model      string
	Messages   []models.ChatMessage
}

// NewRequest binds messages to the connection parameters of cfg
func NewRequest(cfg models.APIConfig, messages []models.ChatMessage) Request {
	cfg = cfg.Normalized()
	return Request{
		Provider:   cfg.Provider,
		Address:    cfg.Address,
		Credential: cfg.Credential,
		Model:      cfg.Model,
		Messages:   messages,
	}
}

// Chunk is one element of a response stream. A chunk with Err set is the
// last one sent before the channel closes.
type Chunk struct {
	models.Increment
	Err error
}

// Transport opens response streams.
//
// Stream returns an error when the request could not be opened. Otherwise
// the channel delivers increments in order and is closed when the response
// ends, fails or ctx is cancelled. Cancellation is never reported as an
// error chunk.
type Transport interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
