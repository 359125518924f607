// Package checkpoint persists per-item outcomes as a single JSON document
// rewritten atomically after every item. The store's existence is the
// retry mechanism: rerunning the batch skips everything it holds.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/batch"
)

// Statter reports whether an item's backing artifact is still present and
// how large it is. The artifact store satisfies this.
type Statter interface {
	Stat(id string) (int64, bool)
}

// Store implements batch.CheckpointStore on top of one JSON file. It
// assumes single-process access; there is no cross-process locking.
type Store struct {
	path      string
	artifacts Statter
	records   map[string]batch.Record
	logger    *zap.Logger
}

// New creates a store backed by the file at path. Call Load before use.
func New(path string, artifacts Statter, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:      path,
		artifacts: artifacts,
		records:   make(map[string]batch.Record),
		logger:    logger,
	}
}

// Load reads the persisted document. A missing file means a first run and
// a corrupt file means start fresh; neither is an error, because halting
// an unattended batch over a recoverable document defeats the resume
// contract. The returned map is a copy.
func (s *Store) Load() (map[string]batch.Record, error) {
	s.records = make(map[string]batch.Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("checkpoint unreadable, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return s.snapshot(), nil
	}

	var loaded map[string]batch.Record
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("checkpoint corrupt, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return s.snapshot(), nil
	}

	s.records = loaded
	s.logger.Info("checkpoint loaded",
		zap.String("path", s.path), zap.Int("records", len(loaded)))
	return s.snapshot(), nil
}

// ShouldSkip reports whether the item is durably done: a record exists AND
// its backing artifact is still present with the recorded size. A record
// whose artifact vanished is stale and triggers reprocessing.
func (s *Store) ShouldSkip(id string) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	if s.artifacts == nil {
		return true
	}
	size, exists := s.artifacts.Stat(id)
	return exists && size == rec.Size
}

// Save upserts one record and rewrites the whole document atomically.
// Rewriting everything per item trades O(n^2) total I/O for crash safety:
// a kill at any instant leaves either the old or the new document, never a
// torn one.
func (s *Store) Save(id string, rec batch.Record) error {
	// Marshal from a copy and commit it only after the rename lands. A
	// failed write must leave the record absent so the item is retried on
	// the next invocation instead of riding along with a later Save.
	next := s.snapshot()
	next[id] = rec

	payload, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint %s: %w", s.path, err)
	}
	s.records = next
	return nil
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) snapshot() map[string]batch.Record {
	out := make(map[string]batch.Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
