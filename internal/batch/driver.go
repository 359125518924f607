package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jmwhit/docdriver/internal/progress"
)

// invalidRetries bounds how many fresh sessions a single item may burn
// through after a mid-item invalidation before it is marked failed.
const invalidRetries = 1

// Processor is the per-item pipeline the driver feeds.
type Processor interface {
	ShouldSkip(item Item) bool
	Process(ctx context.Context, item Item, sess Session) (ProcessResult, error)
}

// ProcessResult reports how one item went through the pipeline.
type ProcessResult struct {
	Outcome  Outcome
	Strategy string
}

// Driver is the top-level batch loop: it resumes from the checkpoint
// state, feeds items to the pipeline one at a time inside session windows,
// and reports a final tally. Per-item failures never abort the run; only
// session expiry does.
type Driver struct {
	sessions SessionProvider
	pipeline Processor
	emitter  progress.Emitter
	limiter  *rate.Limiter
	clock    Clock
	logger   *zap.Logger
	runID    string
}

// NewDriver wires the run loop. limiter may be nil to disable pacing.
func NewDriver(
	runID string,
	sessions SessionProvider,
	pipeline Processor,
	emitter progress.Emitter,
	limiter *rate.Limiter,
	clock Clock,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		sessions: sessions,
		pipeline: pipeline,
		emitter:  emitter,
		limiter:  limiter,
		clock:    clock,
		logger:   logger,
		runID:    runID,
	}
}

// Run processes the ordered item list to completion or fatal session
// expiry. The tally reflects whatever was accounted for before return, so
// an interrupted run still reports truthfully.
func (d *Driver) Run(ctx context.Context, items []Item) (Tally, error) {
	items = Dedupe(items)
	total := len(items)
	start := d.clock.Now()

	defer d.sessions.Close(ctx)

	d.emit(progress.Event{Stage: progress.StageRunStart, Total: total})

	var tally Tally
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return tally, fmt.Errorf("run interrupted: %w", err)
		}

		// Skip decisions cost nothing: no session, no network.
		if d.pipeline.ShouldSkip(item) {
			tally.Add(OutcomeSkipped)
			d.emit(progress.Event{
				Stage:   progress.StageItemDone,
				ItemID:  item.ID,
				Ordinal: i,
				Total:   total,
				Outcome: string(OutcomeSkipped),
			})
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return tally, fmt.Errorf("pacing wait: %w", err)
			}
		}

		itemStart := d.clock.Now()
		res, err := d.runItem(ctx, item)
		if errors.Is(err, ErrSessionExpired) {
			d.emit(progress.Event{
				Stage: progress.StageRunError,
				Total: total,
				Note:  err.Error(),
			})
			return tally, err
		}

		tally.Add(res.Outcome)
		note := ""
		if err != nil {
			note = err.Error()
			d.logger.Warn("item failed",
				zap.String("item", item.ID),
				zap.Int("ordinal", i),
				zap.Error(err),
			)
		}
		d.emit(progress.Event{
			Stage:    progress.StageItemDone,
			ItemID:   item.ID,
			Ordinal:  i,
			Total:    total,
			Outcome:  string(res.Outcome),
			Strategy: res.Strategy,
			Dur:      d.clock.Now().Sub(itemStart),
			Note:     note,
		})
	}

	d.emit(progress.Event{
		Stage:     progress.StageRunDone,
		Total:     total,
		Persisted: tally.Persisted,
		Skipped:   tally.Skipped,
		Failed:    tally.Failed,
		Dur:       d.clock.Now().Sub(start),
	})
	return tally, nil
}

// runItem borrows a session and runs the pipeline once, replacing the
// session and retrying the same item when it went invalid mid-flight.
func (d *Driver) runItem(ctx context.Context, item Item) (ProcessResult, error) {
	for attempt := 0; ; attempt++ {
		sess, err := d.sessions.Acquire(ctx)
		if err != nil {
			return ProcessResult{Outcome: OutcomeFailed}, err
		}

		res, procErr := d.pipeline.Process(ctx, item, sess)
		if errors.Is(procErr, ErrSessionInvalid) {
			d.sessions.Invalidate(ctx)
			if attempt < invalidRetries {
				d.logger.Warn("session went invalid, retrying item on a fresh one",
					zap.String("item", item.ID))
				continue
			}
			return res, procErr
		}

		d.sessions.Release(ctx, res.Outcome == OutcomePersisted)
		return res, procErr
	}
}

func (d *Driver) emit(evt progress.Event) {
	if d.emitter == nil {
		return
	}
	evt.RunID = d.runID
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}
