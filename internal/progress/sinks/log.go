package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/progress"
)

// LogSink emits structured logs for the progress stream. Useful when the
// batch runs unattended and the console is not being watched.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("progress event",
		zap.String("run_id", evt.RunID),
		zap.String("stage", string(evt.Stage)),
		zap.String("item_id", evt.ItemID),
		zap.Int("ordinal", evt.Ordinal),
		zap.Int("total", evt.Total),
		zap.String("outcome", evt.Outcome),
		zap.String("strategy", evt.Strategy),
		zap.Duration("dur", evt.Dur),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
