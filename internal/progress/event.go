// Package progress defines the event stream emitted by the batch driver
// and the sink interface used to report it.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageItemDone    Stage = "ITEM_DONE"
	StageSessionOpen Stage = "SESSION_OPEN"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
)

// Event captures a single milestone of batch progress. Outcome values
// mirror the batch package ("persisted", "skipped", "failed") but are kept
// as plain strings so sinks stay decoupled from the engine.
type Event struct {
	// RunID identifies the driver invocation emitting the event.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// ItemID and Ordinal scope item events.
	ItemID  string
	Ordinal int
	// Total is the item count for the run; set on every event so sinks
	// can render running tallies without extra state.
	Total int
	// Outcome is set for ITEM_DONE events.
	Outcome string
	// Strategy names the extraction strategy that produced the output.
	Strategy string
	// Persisted/Skipped/Failed carry the final tally on RUN_DONE.
	Persisted int
	Skipped   int
	Failed    int
	// Dur captures item or run latency.
	Dur time.Duration
	// Note attaches low-volume context, typically error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageSessionOpen, StageRunDone, StageRunError:
	case StageItemDone:
		if e.ItemID == "" {
			return errors.New("item done requires item id")
		}
		if e.Outcome == "" {
			return errors.New("item done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
