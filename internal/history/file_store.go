package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	metaFileName = "meta.json"
	metaVersion  = 1
)

// historyMeta stores the display order of the record files
type historyMeta struct {
	Version int      `json:"version"`
	Order   []string `json:"order"`
}

// FileStore keeps one JSON file per record plus a meta.json holding the
// order, newest first.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{baseDir: dir}, nil
}

// Dir returns the directory holding the record files
func (s *FileStore) Dir() string {
	return s.baseDir
}

// LoadRecords reads the records in stored order.
// Without meta.json, every record file is loaded, most recent first.
// Corrupted files are skipped.
func (s *FileStore) LoadRecords() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}

	if meta == nil {
		return s.loadAll()
	}

	records := make([]Record, 0, len(meta.Order))
	for _, id := range meta.Order {
		rec, err := s.loadRecord(id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveRecords writes every record, then the order, then removes files of
// records no longer present.
func (s *FileStore) SaveRecords(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if err := s.saveRecord(rec); err != nil {
			return err
		}
		keep[rec.ID] = true
		order = append(order, rec.ID)
	}

	if err := s.saveMeta(&historyMeta{Version: metaVersion, Order: order}); err != nil {
		return err
	}

	return s.removeOrphans(keep)
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *FileStore) metaPath() string {
	return filepath.Join(s.baseDir, metaFileName)
}

func (s *FileStore) loadRecord(id string) (Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse record: %w", err)
	}
	return rec, nil
}

func (s *FileStore) saveRecord(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := s.recordPath(rec.ID)
	if existing, err := os.ReadFile(path); err == nil && string(existing) == string(data) {
		return nil
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// loadMeta returns nil when meta.json does not exist
func (s *FileStore) loadMeta() (*historyMeta, error) {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read meta file: %w", err)
	}

	var meta historyMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta file: %w", err)
	}
	if meta.Order == nil {
		meta.Order = []string{}
	}
	return &meta, nil
}

func (s *FileStore) saveMeta(meta *historyMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	if err := writeFileAtomic(s.metaPath(), data); err != nil {
		return fmt.Errorf("failed to write meta file: %w", err)
	}
	return nil
}

func (s *FileStore) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || name == metaFileName || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *FileStore) loadAll() ([]Record, error) {
	ids, err := s.recordFiles()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, id := range ids {
		rec, err := s.loadRecord(id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (s *FileStore) removeOrphans(keep map[string]bool) error {
	ids, err := s.recordFiles()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if keep[id] {
			continue
		}
		if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
