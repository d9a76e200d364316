// Package store persists extracted appointment requests in a local
// JSONL file. The store owns its file handle and path; mutations
// rewrite through a temp file and an atomic rename so a fault mid-write
// never corrupts committed records.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/extract"
	"github.com/klinikwerk/praxisd/internal/pseudonym"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one stored appointment request: the extracted fields plus
// the generated id, the pseudonymized dedup key, and the processed
// flag maintained by the caller.
type Record struct {
	ID        string `json:"id"`
	EmailHash string `json:"email_hash"`
	extract.AppointmentRequest
	Processed bool `json:"processed"`
}

// Store is a file-backed appointment record store.
type Store struct {
	path  string
	log   *zap.Logger
	clock func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// Open returns a store backed by path. The file is created lazily on
// the first save.
func Open(path string, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		path:  path,
		log:   log,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists one extracted request, assigning a fresh id and the
// pseudonymized email key. The raw contact address stays inside the
// record itself; only its hash serves as a lookup key.
func (s *Store) Save(req extract.AppointmentRequest) (Record, error) {
	rec := Record{
		ID:                 uuid.NewString(),
		EmailHash:          pseudonym.Hash(req.ContactEmail),
		AppointmentRequest: req,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshaling record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return Record{}, fmt.Errorf("opening record store: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("appending record: %w", err)
	}
	return rec, nil
}

// List returns all parseable records and the number of malformed lines
// skipped. A missing store file lists as empty.
func (s *Store) List() ([]Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// FindByEmailHash returns all records sharing the pseudonymized
// address key, oldest first. Used to deduplicate repeat requests
// without ever comparing raw addresses.
func (s *Store) FindByEmailHash(hash string) ([]Record, error) {
	records, _, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.EmailHash == hash {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkProcessed sets the processed flag on one record.
func (s *Store) MarkProcessed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.readLocked()
	if err != nil {
		return err
	}
	found := false
	for i := range records {
		if records[i].ID == id {
			records[i].Processed = true
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("marking record %s: %w", id, ErrNotFound)
	}
	return s.replaceLocked(records)
}

// DeleteOlderThan removes every record whose creation time precedes
// now minus the horizon and reports how many were removed.
func (s *Store) DeleteOlderThan(days int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, skipped, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		s.log.Warn("skipped malformed record lines", zap.Int("count", skipped))
	}

	cutoff := s.clock().AddDate(0, 0, -days)
	kept := records[:0]
	removed := 0
	for _, r := range records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if removed == 0 && skipped == 0 {
		return 0, nil
	}
	if err := s.replaceLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) readLocked() ([]Record, int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening record store: %w", err)
	}
	defer f.Close()

	var (
		records []Record
		skipped int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("scanning record store: %w", err)
	}
	return records, skipped, nil
}

func (s *Store) replaceLocked(records []Record) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing temp store: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp store: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("restricting temp store permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing record store: %w", err)
	}
	return nil
}
