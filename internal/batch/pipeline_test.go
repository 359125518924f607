package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records map[string]Record
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (m *memStore) Load() (map[string]Record, error) { return m.records, nil }

func (m *memStore) ShouldSkip(id string) bool {
	_, ok := m.records[id]
	return ok
}

func (m *memStore) Save(id string, rec Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[id] = rec
	return nil
}

type memArtifacts struct {
	contents    map[string][]byte
	diagnostics map[string][]byte
	putErr      error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{
		contents:    make(map[string][]byte),
		diagnostics: make(map[string][]byte),
	}
}

func (m *memArtifacts) Put(_ context.Context, id string, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.contents[id] = data
	return id, nil
}

func (m *memArtifacts) Stat(id string) (int64, bool) {
	data, ok := m.contents[id]
	return int64(len(data)), ok
}

func (m *memArtifacts) PutDiagnostic(_ context.Context, id string, data []byte) (string, error) {
	m.diagnostics[id] = data
	return id, nil
}

type fakeExtractor struct {
	ext Extraction
	err error
}

func (f fakeExtractor) Extract(context.Context, Session, Item) (Extraction, error) {
	return f.ext, f.err
}

type navSession struct {
	stubSession
	navErr error
	html   string
}

func (s navSession) Navigate(context.Context, string) error { return s.navErr }

func (s navSession) CaptureHTML(context.Context) (string, error) {
	if s.html == "" {
		return "", errors.New("no snapshot")
	}
	return s.html, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) (string, error) {
	return fmt.Sprintf("h-%d", len(data)), nil
}

func TestPipelineProcessPersists(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	now := time.Unix(1700000000, 0).UTC()
	p := NewPipeline(store, artifacts,
		fakeExtractor{ext: Extraction{Text: "document body", Strategy: "rendered"}},
		fakeHasher{}, fixedClock{t: now}, nil)

	item := Item{ID: "charter", Label: "Project Charter", Target: "https://app/docs/charter"}
	res, err := p.Process(context.Background(), item, navSession{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)
	assert.Equal(t, "rendered", res.Strategy)

	assert.Equal(t, []byte("document body"), artifacts.contents["charter"])

	rec := store.records["charter"]
	assert.Equal(t, "Project Charter", rec.Label)
	assert.Equal(t, int64(len("document body")), rec.Size)
	assert.Equal(t, "h-13", rec.Fingerprint)
	assert.Equal(t, "rendered", rec.Strategy)
	assert.Equal(t, now, rec.SavedAt)
	// A document item carries no conversational fields.
	assert.Empty(t, rec.Question)
	assert.Empty(t, rec.Answer)
}

func TestPipelineProcessConversationalRecord(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, newMemArtifacts(),
		fakeExtractor{ext: Extraction{
			Text:     "The refund window is 30 days.",
			Sources:  []string{"policy.md"},
			Strategy: "conversation",
		}},
		fakeHasher{}, fixedClock{t: time.Now()}, nil)

	item := Item{ID: "refund", Label: "What is the refund policy?", Prompt: "What is the refund policy?"}
	res, err := p.Process(context.Background(), item, navSession{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)

	rec := store.records["refund"]
	assert.Equal(t, "What is the refund policy?", rec.Question)
	assert.Equal(t, "The refund window is 30 days.", rec.Answer)
	assert.Equal(t, []string{"policy.md"}, rec.Sources)
}

func TestPipelineNavigateInvalidPassesThrough(t *testing.T) {
	p := NewPipeline(newMemStore(), newMemArtifacts(), fakeExtractor{}, fakeHasher{}, fixedClock{t: time.Now()}, nil)

	res, err := p.Process(context.Background(), Item{ID: "a"}, navSession{navErr: ErrSessionInvalid})
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestPipelineNavigateTimeoutFailsItem(t *testing.T) {
	p := NewPipeline(newMemStore(), newMemArtifacts(), fakeExtractor{}, fakeHasher{}, fixedClock{t: time.Now()}, nil)

	res, err := p.Process(context.Background(), Item{ID: "a"}, navSession{navErr: ErrNavigationTimeout})
	assert.ErrorIs(t, err, ErrNavigationTimeout)
	assert.NotErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestPipelineExtractionFailureCapturesDiagnostic(t *testing.T) {
	artifacts := newMemArtifacts()
	p := NewPipeline(newMemStore(), artifacts,
		fakeExtractor{err: ErrExtractionFailed},
		fakeHasher{}, fixedClock{t: time.Now()}, nil)

	res, err := p.Process(context.Background(), Item{ID: "a"}, navSession{html: "<html>broken</html>"})
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, []byte("<html>broken</html>"), artifacts.diagnostics["a"])
}

func TestPipelineExtractionInvalidSkipsDiagnostic(t *testing.T) {
	artifacts := newMemArtifacts()
	p := NewPipeline(newMemStore(), artifacts,
		fakeExtractor{err: ErrSessionInvalid},
		fakeHasher{}, fixedClock{t: time.Now()}, nil)

	_, err := p.Process(context.Background(), Item{ID: "a"}, navSession{html: "<html/>"})
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Empty(t, artifacts.diagnostics)
}

func TestPipelineEmptyResultFailsItem(t *testing.T) {
	p := NewPipeline(newMemStore(), newMemArtifacts(),
		fakeExtractor{err: ErrEmptyResult},
		fakeHasher{}, fixedClock{t: time.Now()}, nil)

	res, err := p.Process(context.Background(), Item{ID: "a"}, navSession{})
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestPipelinePersistFailureFailsItem(t *testing.T) {
	artifacts := newMemArtifacts()
	artifacts.putErr = errors.New("disk full")
	p := NewPipeline(newMemStore(), artifacts,
		fakeExtractor{ext: Extraction{Text: "body", Strategy: "rendered"}},
		fakeHasher{}, fixedClock{t: time.Now()}, nil)

	res, err := p.Process(context.Background(), Item{ID: "a"}, navSession{})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestPipelineShouldSkipDelegatesToStore(t *testing.T) {
	store := newMemStore()
	store.records["done"] = Record{ID: "done"}
	p := NewPipeline(store, newMemArtifacts(), fakeExtractor{}, fakeHasher{}, fixedClock{t: time.Now()}, nil)

	assert.True(t, p.ShouldSkip(Item{ID: "done"}))
	assert.False(t, p.ShouldSkip(Item{ID: "fresh"}))
}
