package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketRecords = []byte("records")
	bucketOrder   = []byte("record_order")
	keyOrder      = []byte("order")
)

// BoltStore keeps the records in a single bbolt database file.
// The database is opened per call so several processes can share it.
type BoltStore struct {
	path string
}

// NewBoltStore creates a store backed by the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &BoltStore{path: path}, nil
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open(timeout time.Duration) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// LoadRecords reads the records in stored order. Malformed entries are skipped.
func (s *BoltStore) LoadRecords() ([]Record, error) {
	db, err := s.open(time.Second)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var records []Record
	err = db.View(func(tx *bolt.Tx) error {
		ob := tx.Bucket(bucketOrder)
		rb := tx.Bucket(bucketRecords)
		if ob == nil || rb == nil {
			return nil
		}

		var order []string
		if raw := ob.Get(keyOrder); len(raw) > 0 {
			if err := json.Unmarshal(raw, &order); err != nil {
				return fmt.Errorf("failed to parse record order: %w", err)
			}
		}

		for _, id := range order {
			raw := rb.Get([]byte(id))
			if len(raw) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveRecords replaces the stored snapshot in one transaction
func (s *BoltStore) SaveRecords(records []Record) error {
	db, err := s.open(2 * time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		// Recreate buckets so they reflect the snapshot exactly
		for _, name := range [][]byte{bucketRecords, bucketOrder} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}

		rb, err := tx.CreateBucket(bucketRecords)
		if err != nil {
			return err
		}
		ob, err := tx.CreateBucket(bucketOrder)
		if err != nil {
			return err
		}

		order := make([]string, 0, len(records))
		for _, rec := range records {
			enc, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := rb.Put([]byte(rec.ID), enc); err != nil {
				return err
			}
			order = append(order, rec.ID)
		}

		enc, err := json.Marshal(order)
		if err != nil {
			return err
		}
		return ob.Put(keyOrder, enc)
	})
}
