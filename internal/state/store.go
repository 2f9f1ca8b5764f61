// Package state persists the fingerprints and executed-command hashes that
// make repeated runs idempotent. The store is a single JSON document under
// the user's configuration directory, read fully at open and flushed
// atomically after every reconciler pass.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steadyops/steady/internal/logger"
	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

// Record stores the fingerprint of an applied resource plus optional
// metadata such as a container's last-known image digest.
type Record struct {
	Fingerprint string            `json:"fingerprint"`
	AppliedAt   time.Time         `json:"applied_at"`
	Meta        map[string]string `json:"meta,omitempty"`
}

type document struct {
	Records  map[string]Record    `json:"records"`
	Executed map[string]time.Time `json:"executed"`
}

// Store is the in-memory view of the persisted state file. It is only ever
// touched by the single run goroutine; the mutex is defensive.
type Store struct {
	mu       sync.Mutex
	path     string
	records  map[string]Record
	executed map[string]time.Time
	dirty    bool
	log      *logger.Logger
}

// DefaultPath returns the state file location under the user's
// configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "steady", "state.json"), nil
}

// Open reads the state file at path into memory. A missing or unreadable
// file is not fatal: the store starts empty (fail-open), since destructive
// actions are separately gated by backups and confirmation.
func Open(path string, log *logger.Logger) *Store {
	s := &Store{
		path:     path,
		records:  make(map[string]Record),
		executed: make(map[string]time.Time),
		log:      log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("state file %s unreadable, starting empty: %v", path, err)
		}
		return s
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warnf("state file %s corrupt, starting empty: %v", path, err)
		return s
	}

	if doc.Records != nil {
		s.records = doc.Records
	}
	if doc.Executed != nil {
		s.executed = doc.Executed
	}
	return s
}

// Get returns the record stored for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put records a fingerprint for key. Callers must only invoke this after the
// corresponding action has been confirmed to have succeeded.
func (s *Store) Put(key, fingerprint string, meta map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = Record{Fingerprint: fingerprint, AppliedAt: time.Now().UTC(), Meta: meta}
	s.dirty = true
}

// Delete removes the record for key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		delete(s.records, key)
		s.dirty = true
	}
}

// Keys returns all record keys with the given prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// HasExecuted reports whether the run-once command with this hash already
// completed successfully on a previous run.
func (s *Store) HasExecuted(commandHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.executed[commandHash]
	return ok
}

// MarkExecuted records a successful run-once command execution.
func (s *Store) MarkExecuted(commandHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed[commandHash] = time.Now().UTC()
	s.dirty = true
}

// Flush writes the store to disk via write-temp-then-rename so a crash can
// never truncate the file. Flushing a clean store is a no-op, which makes
// the per-pass flush in the orchestrator safe to call repeatedly.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	doc := document{Records: s.records, Executed: s.executed}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return steadyerrors.NewStateError(s.path, "encode failed", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return steadyerrors.NewStateError(s.path, "create state directory failed", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return steadyerrors.NewStateError(s.path, "write failed", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return steadyerrors.NewStateError(s.path, "rename failed", err)
	}

	s.dirty = false
	return nil
}
