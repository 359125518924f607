package qa

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/batch"
)

// StrategyName labels conversational extractions in records and events.
const StrategyName = "conversation"

// Turn is the batch.Extractor for the ask workflow: one conversational
// exchange per item, cleaned and annotated with source attribution.
type Turn struct {
	logger *zap.Logger
}

// NewTurn builds the conversational extractor.
func NewTurn(logger *zap.Logger) *Turn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Turn{logger: logger}
}

// Extract submits the item's prompt and reads back the cleaned answer.
// Source attribution is best effort: a failure to disclose sources never
// fails an item that produced an answer.
func (t *Turn) Extract(ctx context.Context, sess batch.Session, item batch.Item) (batch.Extraction, error) {
	conv, ok := sess.(batch.Conversationalist)
	if !ok {
		return batch.Extraction{}, fmt.Errorf("session %T does not support conversation", sess)
	}

	raw, err := conv.Ask(ctx, item.Prompt)
	if err != nil {
		return batch.Extraction{}, fmt.Errorf("submit prompt: %w", err)
	}

	text := Clean(raw)
	if text == "" {
		return batch.Extraction{}, batch.ErrEmptyResult
	}

	entries, err := conv.SourceEntries(ctx)
	if err != nil {
		t.logger.Warn("source disclosure failed", zap.String("item", item.ID), zap.Error(err))
		entries = nil
	}

	return batch.Extraction{
		Text:     text,
		Sources:  ParseSourceEntries(entries),
		Strategy: StrategyName,
	}, nil
}
