package checkpoint_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmwhit/docdriver/internal/batch"
	"github.com/jmwhit/docdriver/internal/checkpoint"
)

// statterMap is a canned artifact view keyed by item ID.
type statterMap map[string]int64

func (m statterMap) Stat(id string) (int64, bool) {
	size, ok := m[id]
	return size, ok
}

func storePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "checkpoint.json")
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	s := checkpoint.New(storePath(t), nil, nil)
	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := storePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := checkpoint.New(path, nil, nil)
	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := storePath(t)
	s := checkpoint.New(path, nil, nil)
	_, err := s.Load()
	require.NoError(t, err)

	rec := batch.Record{
		ID:          "charter",
		Label:       "Project Charter",
		Size:        42,
		Fingerprint: "abc123",
		Strategy:    "rendered",
		SavedAt:     time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, s.Save("charter", rec))

	reopened := checkpoint.New(path, nil, nil)
	records, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records["charter"])
}

func TestSaveWritesSingleJSONDocument(t *testing.T) {
	path := storePath(t)
	s := checkpoint.New(path, nil, nil)
	_, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.Save("a", batch.Record{ID: "a", Size: 1}))
	require.NoError(t, s.Save("b", batch.Record{ID: "b", Size: 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]batch.Record
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 2)

	// No temp files may survive the atomic rewrite.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "checkpoint.json")
	s := checkpoint.New(path, nil, nil)
	_, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.Save("a", batch.Record{ID: "a"}))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFailedSaveLeavesRecordUncommitted(t *testing.T) {
	path := storePath(t)
	s := checkpoint.New(path, nil, nil)
	_, err := s.Load()
	require.NoError(t, err)

	// Occupy the target path with a directory so the atomic rename fails.
	require.NoError(t, os.Mkdir(path, 0o750))
	require.Error(t, s.Save("a", batch.Record{ID: "a", Size: 1}))
	assert.False(t, s.ShouldSkip("a"))

	// A later successful Save must not carry the failed record along.
	require.NoError(t, os.Remove(path))
	require.NoError(t, s.Save("b", batch.Record{ID: "b", Size: 2}))

	reopened := checkpoint.New(path, nil, nil)
	records, err := reopened.Load()
	require.NoError(t, err)
	assert.NotContains(t, records, "a")
	assert.Contains(t, records, "b")
}

func TestShouldSkip(t *testing.T) {
	artifacts := statterMap{"present": 10, "resized": 99}
	s := checkpoint.New(storePath(t), artifacts, nil)
	_, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.Save("present", batch.Record{ID: "present", Size: 10}))
	require.NoError(t, s.Save("resized", batch.Record{ID: "resized", Size: 10}))
	require.NoError(t, s.Save("vanished", batch.Record{ID: "vanished", Size: 10}))

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "record and matching artifact", id: "present", want: true},
		{name: "artifact size drifted", id: "resized", want: false},
		{name: "artifact missing", id: "vanished", want: false},
		{name: "no record at all", id: "unknown", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ShouldSkip(tt.id))
		})
	}
}

func TestShouldSkipWithoutStatterTrustsRecord(t *testing.T) {
	s := checkpoint.New(storePath(t), nil, nil)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save("a", batch.Record{ID: "a", Size: 5}))

	assert.True(t, s.ShouldSkip("a"))
}

func TestLoadReturnsCopy(t *testing.T) {
	path := storePath(t)
	s := checkpoint.New(path, nil, nil)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save("a", batch.Record{ID: "a"}))

	records, err := s.Load()
	require.NoError(t, err)
	delete(records, "a")

	assert.True(t, s.ShouldSkip("a"))
	assert.Equal(t, 1, s.Len())
}
