package history

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/diogo/llmchat/internal/logging"
	"github.com/diogo/llmchat/internal/models"
)

// RecordStore is the durable store behind History.
// SaveRecords replaces the whole stored list with records, newest first.
type RecordStore interface {
	LoadRecords() ([]Record, error)
	SaveRecords(records []Record) error
}

// CommitResult describes what CommitIfNeeded did
type CommitResult int

const (
	// CommitSkipped means nothing needed to be written
	CommitSkipped CommitResult = iota
	// CommitUpdated means the loaded record was overwritten in place
	CommitUpdated
	// CommitAdopted means an identical record already existed and became the loaded one
	CommitAdopted
	// CommitInserted means a new record was added at the front
	CommitInserted
)

func (r CommitResult) String() string {
	switch r {
	case CommitUpdated:
		return "updated"
	case CommitAdopted:
		return "adopted"
	case CommitInserted:
		return "inserted"
	default:
		return "skipped"
	}
}

// Option configures a History
type Option func(*History)

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(h *History) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

// History holds the saved conversations, newest first, and the index of
// the one currently loaded in the chat (-1 when none).
//
// Structural changes are written to the RecordStore before they are
// applied in memory.
type History struct {
	store  RecordStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	records []Record
	byHash  map[string]int
	loaded  int
}

// New loads the stored records
func New(store RecordStore, opts ...Option) (*History, error) {
	h := &History{
		store:  store,
		logger: logging.Discard(),
		now:    time.Now,
		loaded: -1,
	}
	for _, opt := range opts {
		opt(h)
	}

	records, err := store.LoadRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	for i := range records {
		records[i].Hash = ContentHash(records[i].Messages)
	}
	h.apply(records, -1)
	return h, nil
}

// CommitIfNeeded saves the persistable part of transcript.
//
// When a valid record is loaded it is overwritten if its content differs.
// Otherwise an identical existing record is adopted as the loaded one, or
// a new record is inserted at the front. An empty transcript is ignored.
func (h *History) CommitIfNeeded(transcript []models.Message) (CommitResult, error) {
	msgs := Persistable(transcript)
	if len(msgs) == 0 {
		return CommitSkipped, nil
	}
	hash := ContentHash(msgs)

	h.mu.Lock()
	defer h.mu.Unlock()

	existing, found := h.byHash[hash]
	if found && !sameContent(h.records[existing].Messages, msgs) {
		h.logger.Warn("history hash collision", "index", existing)
		found = false
	}

	if h.loaded >= 0 && h.loaded < len(h.records) {
		if cur := h.records[h.loaded]; cur.Hash == hash && sameContent(cur.Messages, msgs) {
			return CommitSkipped, nil
		}
		if found {
			// Overwriting would leave two identical records
			h.loaded = existing
			h.logger.Debug("history commit adopted identical record", "index", existing)
			return CommitAdopted, nil
		}

		next := cloneRecords(h.records)
		rec := next[h.loaded]
		rec.Messages = slices.Clone(msgs)
		rec.Hash = hash
		rec.Title = deriveTitle(msgs, rec.CreatedAt)
		rec.UpdatedAt = h.now()
		next[h.loaded] = rec

		if err := h.store.SaveRecords(next); err != nil {
			h.logger.Error("failed to save history", "error", err)
			return CommitSkipped, fmt.Errorf("failed to save history: %w", err)
		}
		h.apply(next, h.loaded)
		h.logger.Debug("history record updated", "index", h.loaded, "messages", len(msgs))
		return CommitUpdated, nil
	}

	if found {
		h.loaded = existing
		h.logger.Debug("history commit adopted identical record", "index", existing)
		return CommitAdopted, nil
	}

	rec := newRecord(msgs, h.now())
	next := append([]Record{rec}, cloneRecords(h.records)...)
	if err := h.store.SaveRecords(next); err != nil {
		h.logger.Error("failed to save history", "error", err)
		return CommitSkipped, fmt.Errorf("failed to save history: %w", err)
	}
	h.apply(next, 0)
	h.logger.Info("history record added", "id", rec.ID, "messages", len(msgs))
	return CommitInserted, nil
}

// Delete removes the record at index and keeps the loaded index pointing
// at the same record.
func (h *History) Delete(index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.records) {
		return fmt.Errorf("history index %d out of range (0-%d)", index, len(h.records)-1)
	}

	next := slices.Delete(cloneRecords(h.records), index, index+1)
	if err := h.store.SaveRecords(next); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	loaded := h.loaded
	switch {
	case loaded == index:
		loaded = -1
	case loaded > index:
		loaded--
	}
	h.apply(next, loaded)
	return nil
}

// ClearAll removes every record
func (h *History) ClearAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.SaveRecords(nil); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	h.apply(nil, -1)
	return nil
}

// Open marks the record at index as loaded and returns a copy of it
func (h *History) Open(index int) (Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.records) {
		return Record{}, fmt.Errorf("history index %d out of range (0-%d)", index, len(h.records)-1)
	}
	h.loaded = index
	return h.records[index].Clone(), nil
}

// ResetLoaded forgets the loaded record, so the next commit inserts
func (h *History) ResetLoaded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = -1
}

// Loaded returns the loaded index, -1 when none
func (h *History) Loaded() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Records returns a copy of the records, newest first
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneRecords(h.records)
}

// Len returns the number of records
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// IndexOf returns the index of the record with id, -1 when absent
func (h *History) IndexOf(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.IndexFunc(h.records, func(r Record) bool { return r.ID == id })
}

// apply installs records and rebuilds the hash index. Callers hold mu.
func (h *History) apply(records []Record, loaded int) {
	h.records = records
	h.loaded = loaded
	h.byHash = make(map[string]int, len(records))
	for i, r := range records {
		if _, dup := h.byHash[r.Hash]; !dup {
			h.byHash[r.Hash] = i
		}
	}
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
