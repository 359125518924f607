// Package extract implements the priority-ordered extraction strategy
// chain used by the document synchronization pipeline.
package extract

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/batch"
)

// DefaultMinContentChars guards against strategies that match structurally
// but return placeholder content.
const DefaultMinContentChars = 40

// Strategy is one attempt at obtaining an item's content.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, sess batch.Session, item batch.Item) (string, error)
}

// Chain tries strategies in fixed priority order and short-circuits on the
// first non-trivial output. Remote rendering surfaces drift; the fallback
// order tolerates layout changes without per-item intervention.
type Chain struct {
	strategies []Strategy
	minChars   int
	logger     *zap.Logger
}

// NewChain builds a chain. minChars <= 0 selects the default threshold.
func NewChain(logger *zap.Logger, minChars int, strategies ...Strategy) *Chain {
	if minChars <= 0 {
		minChars = DefaultMinContentChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		strategies: strategies,
		minChars:   minChars,
		logger:     logger,
	}
}

// Extract implements batch.Extractor.
func (c *Chain) Extract(ctx context.Context, sess batch.Session, item batch.Item) (batch.Extraction, error) {
	for _, st := range c.strategies {
		text, err := st.Extract(ctx, sess, item)
		if err != nil {
			if errors.Is(err, batch.ErrSessionInvalid) {
				return batch.Extraction{}, err
			}
			c.logger.Warn("extraction strategy failed",
				zap.String("item", item.ID),
				zap.String("strategy", st.Name()),
				zap.Error(err),
			)
			continue
		}
		trimmed := strings.TrimSpace(text)
		if len([]rune(trimmed)) < c.minChars {
			c.logger.Debug("extraction strategy returned trivial output",
				zap.String("item", item.ID),
				zap.String("strategy", st.Name()),
				zap.Int("chars", len([]rune(trimmed))),
			)
			continue
		}
		return batch.Extraction{Text: trimmed, Strategy: st.Name()}, nil
	}
	return batch.Extraction{}, batch.ErrExtractionFailed
}
