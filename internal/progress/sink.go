package progress

import "context"

// Sink consumes individual progress events. Implementations must honor ctx
// deadlines and must never let a reporting failure disturb the batch.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Broadcaster satisfies this so the
// driver stays agnostic about how events are rendered or exported.
type Emitter interface {
	Emit(evt Event)
}
