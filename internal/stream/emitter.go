package stream

import (
	"context"
	"time"
)

// DefaultPace is the delay after each content frame. It produces the
// typing effect and caps the outbound event rate.
const DefaultPace = 50 * time.Millisecond

// Emitter sequences the framed events of one generation onto a Sink and
// paces content emission. Not safe for concurrent use; one generation
// session owns one Emitter.
type Emitter struct {
	sink Sink
	pace time.Duration
	seq  int
}

// NewEmitter wraps sink. A non-positive pace disables the delay.
func NewEmitter(sink Sink, pace time.Duration) *Emitter {
	return &Emitter{sink: sink, pace: pace}
}

// Start sends the start frame. Must be called once, before any content.
func (e *Emitter) Start() error {
	return e.sink.Send(Event{Type: TypeStart})
}

// Content sends one chunk with the next sequence id, then sleeps the
// pacing interval. Returns the context error when the session is cancelled
// during the pace wait.
func (e *Emitter) Content(ctx context.Context, chunk string) error {
	e.seq++
	if err := e.sink.Send(Event{Type: TypeContent, Chunk: chunk, ChunkID: e.seq}); err != nil {
		return err
	}
	if e.pace <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.pace):
		return nil
	}
}

// Done sends the terminal success frame carrying the total chunk count.
func (e *Emitter) Done() error {
	return e.sink.Send(Event{Type: TypeDone, TotalChunks: e.seq})
}

// Error sends the terminal failure frame.
func (e *Emitter) Error(message string) error {
	return e.sink.Send(Event{Type: TypeError, Message: message})
}

// Emitted returns the number of content frames sent so far.
func (e *Emitter) Emitted() int { return e.seq }
