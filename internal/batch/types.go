// Package batch defines the core types and the driver/pipeline loop for
// resumable batch automation against a remote notebook application.
package batch

import (
	"errors"
	"time"
)

// Outcome classifies what happened to a single item.
type Outcome string

// Outcomes reported by the pipeline for each item.
const (
	OutcomePersisted Outcome = "persisted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Sentinel errors shared across the engine.
var (
	// ErrSessionExpired means the remote application demanded authentication.
	// It is fatal to the run; re-authentication happens out of band.
	ErrSessionExpired = errors.New("session expired: re-authenticate and rerun")

	// ErrSessionInvalid means the current session became unusable mid-item.
	// The driver discards the session and retries the item on a fresh one.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrExtractionFailed means every strategy in the chain returned
	// trivial output for the item.
	ErrExtractionFailed = errors.New("extraction failed: all strategies returned trivial output")

	// ErrEmptyResult means post-processing reduced the output to nothing.
	ErrEmptyResult = errors.New("empty result after cleaning")

	// ErrNavigationTimeout means the surface never reached a stable state
	// within the bounded wait.
	ErrNavigationTimeout = errors.New("navigation timeout")
)

// Item is one unit of work in the ordered input list: either a document
// reference to synchronize or a prompt to submit.
type Item struct {
	// ID is the stable identity derived from the label; it keys the
	// checkpoint store and the artifact store.
	ID string
	// Label is the human-readable title or question text.
	Label string
	// Target is the navigation destination for the item.
	Target string
	// Prompt carries the question text for conversational items; empty
	// for document synchronization.
	Prompt string
	// Ordinal is the position in the input list, for reporting only.
	Ordinal int
}

// Record is the durable evidence that an item was successfully processed.
// A record exists if and only if the item succeeded in some run.
type Record struct {
	ID          string    `json:"id"`
	Label       string    `json:"label,omitempty"`
	Question    string    `json:"question,omitempty"`
	Answer      string    `json:"answer,omitempty"`
	Sources     []string  `json:"sources,omitempty"`
	Size        int64     `json:"size"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Strategy    string    `json:"strategy,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// Extraction is the transient result of one successful extraction step.
type Extraction struct {
	Text     string
	Sources  []string
	Strategy string
}

// Tally accumulates per-outcome counts across a run.
type Tally struct {
	Persisted int
	Skipped   int
	Failed    int
}

// Add records one outcome.
func (t *Tally) Add(o Outcome) {
	switch o {
	case OutcomePersisted:
		t.Persisted++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeFailed:
		t.Failed++
	}
}

// Total returns the number of items accounted for.
func (t Tally) Total() int {
	return t.Persisted + t.Skipped + t.Failed
}
