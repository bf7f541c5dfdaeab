package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diogo/llmchat/internal/api"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/models"
)

const waitTimeout = 2 * time.Second

// fakeStream is one scripted response. The test feeds chunks through in;
// the returned channel closes when in is closed or the context ends.
type fakeStream struct {
	ctx context.Context
	req api.Request
	in  chan api.Chunk
}

func (s *fakeStream) push(t *testing.T, c api.Chunk) {
	t.Helper()
	select {
	case s.in <- c:
	case <-s.ctx.Done():
		t.Fatal("stream context already cancelled")
	case <-time.After(waitTimeout):
		t.Fatal("stream not consumed")
	}
}

func (s *fakeStream) text(t *testing.T, delta string) {
	t.Helper()
	s.push(t, api.Chunk{Increment: models.Increment{Text: delta}})
}

func (s *fakeStream) reasoning(t *testing.T, delta string) {
	t.Helper()
	s.push(t, api.Chunk{Increment: models.Increment{Reasoning: delta}})
}

func (s *fakeStream) fail(t *testing.T, err error) {
	t.Helper()
	s.push(t, api.Chunk{Err: err})
	close(s.in)
}

func (s *fakeStream) end() {
	close(s.in)
}

type fakeTransport struct {
	mu      sync.Mutex
	openErr error
	streams chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan *fakeStream, 8)}
}

func (f *fakeTransport) failOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *fakeTransport) Stream(ctx context.Context, req api.Request) (<-chan api.Chunk, error) {
	f.mu.Lock()
	err := f.openErr
	f.mu.Unlock()

	st := &fakeStream{ctx: ctx, req: req, in: make(chan api.Chunk)}
	f.streams <- st
	if err != nil {
		return nil, err
	}

	out := make(chan api.Chunk)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-st.in:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type fakeConfigs struct {
	cfg models.APIConfig
	ok  bool
}

func (f *fakeConfigs) Selected() (models.APIConfig, bool) { return f.cfg, f.ok }

// fakeHistory is only touched by the controller's writer goroutine. Tests
// read it after Flush or Close.
type fakeHistory struct {
	commits [][]models.Message
	records []history.Record
	resets  int
	failErr error
	// block holds every commit until it is closed
	block chan struct{}
}

func (f *fakeHistory) CommitIfNeeded(transcript []models.Message) (history.CommitResult, error) {
	if f.block != nil {
		<-f.block
	}
	if f.failErr != nil {
		return history.CommitSkipped, f.failErr
	}
	f.commits = append(f.commits, transcript)
	return history.CommitInserted, nil
}

func (f *fakeHistory) Open(index int) (history.Record, error) {
	if index < 0 || index >= len(f.records) {
		return history.Record{}, errors.New("index out of range")
	}
	return f.records[index], nil
}

func (f *fakeHistory) ResetLoaded() { f.resets++ }

func (f *fakeHistory) lastCommit() []models.Message {
	if len(f.commits) == 0 {
		return nil
	}
	return f.commits[len(f.commits)-1]
}

type harness struct {
	t         *testing.T
	state     *State
	loop      *Loop
	transport *fakeTransport
	configs   *fakeConfigs
	history   *fakeHistory
	notices   []string
	events    []Event
	ctrl      *Controller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		state:     NewState(),
		loop:      NewLoop(64),
		transport: newFakeTransport(),
		configs: &fakeConfigs{
			cfg: models.APIConfig{ID: "cfg-1", Name: "local", Provider: models.ProviderMock, Model: "echo"},
			ok:  true,
		},
		history: &fakeHistory{},
	}
	opts = append([]Option{
		WithNotifier(noticeRecorder{h}),
		WithObserver(func(ev Event) { h.events = append(h.events, ev) }),
	}, opts...)
	h.ctrl = NewController(h.state, h.transport, h.configs, h.history, h.loop, opts...)
	t.Cleanup(func() {
		h.ctrl.Close()
		h.loop.Close()
	})
	return h
}

type noticeRecorder struct{ h *harness }

func (r noticeRecorder) Notify(msg string) { r.h.notices = append(r.h.notices, msg) }

// nextStream waits for the worker to open a transport stream
func (h *harness) nextStream() *fakeStream {
	h.t.Helper()
	select {
	case st := <-h.transport.streams:
		return st
	case <-time.After(waitTimeout):
		h.t.Fatal("no stream opened")
		return nil
	}
}

// runUntil drains the loop on the test goroutine until cond holds
func (h *harness) runUntil(cond func() bool) {
	h.t.Helper()
	deadline := time.After(waitTimeout)
	for !cond() {
		select {
		case fn := <-h.loop.C():
			fn()
		case <-deadline:
			h.t.Fatal("condition not reached")
		}
	}
}

func (h *harness) waitDone(s *Session) {
	h.t.Helper()
	h.runUntil(func() bool {
		select {
		case <-s.Done():
			return true
		default:
			return false
		}
	})
}

func (h *harness) savedCommits() [][]models.Message {
	h.ctrl.Flush()
	return h.history.commits
}

func (h *harness) lastSaved() []models.Message {
	h.ctrl.Flush()
	return h.history.lastCommit()
}

func (h *harness) savedResets() int {
	h.ctrl.Flush()
	return h.history.resets
}

func (h *harness) text(id string) string {
	m, _ := h.state.Message(id)
	return m.Text
}

func (h *harness) textIs(id, want string) func() bool {
	return func() bool { return h.text(id) == want }
}
