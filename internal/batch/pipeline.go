package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Pipeline runs the per-item stage sequence: skip check, navigate,
// extract, persist. Failures are reported, never escalated past the item,
// except for session-level conditions the driver must act on.
type Pipeline struct {
	store     CheckpointStore
	artifacts ArtifactStore
	extractor Extractor
	hasher    Hasher
	clock     Clock
	logger    *zap.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	store CheckpointStore,
	artifacts ArtifactStore,
	extractor Extractor,
	hasher Hasher,
	clock Clock,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		artifacts: artifacts,
		extractor: extractor,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
	}
}

// ShouldSkip reports whether the item is already durably processed. The
// driver consults this before paying any session or network cost.
func (p *Pipeline) ShouldSkip(item Item) bool {
	return p.store.ShouldSkip(item.ID)
}

// Process runs one item on a borrowed session. The returned error explains
// a failed outcome; ErrSessionInvalid additionally tells the driver the
// session must be replaced before the item is retried.
func (p *Pipeline) Process(ctx context.Context, item Item, sess Session) (ProcessResult, error) {
	failed := ProcessResult{Outcome: OutcomeFailed}

	if err := sess.Navigate(ctx, item.Target); err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return failed, err
		}
		return failed, fmt.Errorf("navigate %s: %w", item.ID, err)
	}

	ext, err := p.extractor.Extract(ctx, sess, item)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return failed, err
		}
		p.captureDiagnostic(ctx, item, sess)
		return failed, fmt.Errorf("extract %s: %w", item.ID, err)
	}

	if err := p.persist(ctx, item, ext); err != nil {
		return failed, err
	}
	return ProcessResult{Outcome: OutcomePersisted, Strategy: ext.Strategy}, nil
}

func (p *Pipeline) persist(ctx context.Context, item Item, ext Extraction) error {
	body := []byte(ext.Text)
	if _, err := p.artifacts.Put(ctx, item.ID, body); err != nil {
		return fmt.Errorf("persist artifact %s: %w", item.ID, err)
	}
	fingerprint, err := p.hasher.Hash(body)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", item.ID, err)
	}

	rec := Record{
		ID:          item.ID,
		Label:       item.Label,
		Sources:     ext.Sources,
		Size:        int64(len(body)),
		Fingerprint: fingerprint,
		Strategy:    ext.Strategy,
		SavedAt:     p.clock.Now(),
	}
	if item.Prompt != "" {
		rec.Question = item.Prompt
		rec.Answer = ext.Text
	}
	if err := p.store.Save(item.ID, rec); err != nil {
		return fmt.Errorf("persist record %s: %w", item.ID, err)
	}
	return nil
}

// captureDiagnostic snapshots the surface for manual inspection. It is
// best effort and never fails the item loop.
func (p *Pipeline) captureDiagnostic(ctx context.Context, item Item, sess Session) {
	html, err := sess.CaptureHTML(ctx)
	if err != nil {
		p.logger.Debug("diagnostic capture failed", zap.String("item", item.ID), zap.Error(err))
		return
	}
	path, err := p.artifacts.PutDiagnostic(ctx, item.ID, []byte(html))
	if err != nil {
		p.logger.Debug("diagnostic write failed", zap.String("item", item.ID), zap.Error(err))
		return
	}
	p.logger.Info("diagnostic snapshot captured", zap.String("item", item.ID), zap.String("path", path))
}
