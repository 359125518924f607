package extract

import (
	"context"

	"github.com/jmwhit/docdriver/internal/batch"
)

// Rendered reads the document text straight out of the rendered surface,
// probing a candidate selector list in priority order.
type Rendered struct {
	selectors []string
}

// NewRendered builds the rendered-content strategy.
func NewRendered(selectors []string) *Rendered {
	return &Rendered{selectors: selectors}
}

// Name implements Strategy.
func (r *Rendered) Name() string {
	return "rendered"
}

// Extract implements Strategy.
func (r *Rendered) Extract(ctx context.Context, sess batch.Session, _ batch.Item) (string, error) {
	return sess.ReadFirst(ctx, r.selectors)
}
