package batch

import (
	"context"
	"time"
)

// Session is one authenticated, stateful connection to the remote
// application. The pipeline borrows a session for the duration of one item
// and must not retain it afterward.
type Session interface {
	// Navigate drives the session to target and waits, bounded by the
	// configured timeout, for the surface to become interactable. It
	// returns ErrSessionInvalid when the surface indicates a logged-out
	// state and ErrNavigationTimeout (wrapped) when the wait expires.
	Navigate(ctx context.Context, target string) error
	// Location reports the current surface identifier (URL).
	Location(ctx context.Context) (string, error)
	// ReadFirst returns the first non-empty text among candidate
	// structural queries, preserving their priority order.
	ReadFirst(ctx context.Context, selectors []string) (string, error)
	// CaptureHTML snapshots the current surface for diagnostics.
	CaptureHTML(ctx context.Context) (string, error)
	// Close releases the session.
	Close(ctx context.Context) error
}

// Conversationalist is the optional conversational capability of a
// session, used by the interactive-QA variant.
type Conversationalist interface {
	// Ask submits prompt text and blocks until the generation-in-progress
	// indicator disappears, bounded by a generous timeout. On timeout it
	// returns whatever is currently rendered rather than failing.
	Ask(ctx context.Context, prompt string) (string, error)
	// SourceEntries discloses and returns the raw source entries attached
	// to the latest response, one multi-line block per entry.
	SourceEntries(ctx context.Context) ([]string, error)
}

// SessionProvider hands session handles to the driver. Implementations own
// session lifecycle: quota-based rotation, invalidation, teardown.
type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
	Release(ctx context.Context, itemSucceeded bool)
	Invalidate(ctx context.Context)
	Close(ctx context.Context)
}

// Extractor produces an item's content using a borrowed session.
type Extractor interface {
	Extract(ctx context.Context, sess Session, item Item) (Extraction, error)
}

// CheckpointStore persists one record per successfully processed item.
type CheckpointStore interface {
	// Load returns all previously persisted records. A missing or corrupt
	// store yields an empty map, never an error that halts the run.
	Load() (map[string]Record, error)
	// ShouldSkip reports whether the item may be skipped: a record exists
	// and its backing artifact is still present with the recorded size.
	ShouldSkip(id string) bool
	// Save upserts a record and atomically rewrites the whole store.
	Save(id string, rec Record) error
}

// ArtifactStore holds per-item extracted output addressed by identity.
type ArtifactStore interface {
	Put(ctx context.Context, id string, data []byte) (string, error)
	Stat(id string) (int64, bool)
	PutDiagnostic(ctx context.Context, id string, data []byte) (string, error)
}

// Hasher computes content fingerprints for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
