package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmwhit/docdriver/internal/batch"
)

// Querier performs a single structured request/response exchange for a
// document slug and returns its text content. The colly-backed fallback
// client satisfies this.
type Querier interface {
	Fetch(ctx context.Context, slug string) (string, error)
}

// Structured is the fallback strategy: when the rendered surface yields
// nothing usable, ask the application's export endpoint directly, keyed by
// the slug of the current location.
type Structured struct {
	querier Querier
}

// NewStructured builds the structured-query strategy.
func NewStructured(querier Querier) *Structured {
	return &Structured{querier: querier}
}

// Name implements Strategy.
func (s *Structured) Name() string {
	return "structured"
}

// Extract implements Strategy.
func (s *Structured) Extract(ctx context.Context, sess batch.Session, _ batch.Item) (string, error) {
	loc, err := sess.Location(ctx)
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	slug := SlugFromLocation(loc)
	if slug == "" {
		return "", fmt.Errorf("no document slug in location %q", loc)
	}
	return s.querier.Fetch(ctx, slug)
}

// SlugFromLocation extracts the trailing path segment of a location,
// ignoring query and fragment.
func SlugFromLocation(loc string) string {
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	loc = strings.TrimRight(loc, "/")
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		loc = loc[i+1:]
	}
	return loc
}
