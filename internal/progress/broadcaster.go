package progress

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultSinkTimeout = 5 * time.Second

// Broadcaster fans events out to registered sinks synchronously. The batch
// loop processes one item at a time, so there is nothing to buffer; sink
// errors are logged and swallowed.
type Broadcaster struct {
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *zap.Logger
}

// NewBroadcaster wires the given sinks. Nil sinks are ignored.
func NewBroadcaster(logger *zap.Logger, sinks ...Sink) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Broadcaster{
		sinks:       kept,
		sinkTimeout: defaultSinkTimeout,
		logger:      logger,
	}
}

// Emit validates the event and delivers it to every sink.
func (b *Broadcaster) Emit(evt Event) {
	if b == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		b.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	for _, sink := range b.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), b.sinkTimeout)
		if err := sink.Consume(ctx, evt); err != nil {
			b.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

// Close closes every sink, reporting but not propagating failures.
func (b *Broadcaster) Close(ctx context.Context) {
	if b == nil {
		return
	}
	for _, sink := range b.sinks {
		if err := sink.Close(ctx); err != nil {
			b.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
