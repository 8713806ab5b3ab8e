// Package sink implements the Sink Adapter (§4.11): a bounded-back-
// pressure receiver for the engine's event stream. The JSONL writer
// sink follows this codebase's buffered-io.Writer-with-newline-
// delimited-records convention; the channel sink gives an external
// consumer (a browser worker's postMessage loop, a test) a pull-based
// alternative without the engine importing anything about how that
// consumer is implemented.
package sink

import (
	"bufio"
	"context"
	"io"

	"csvdiff/internal/diffcore"
)

// writeBufSize mirrors this codebase's buffered-writer sizing for
// sequential output.
const writeBufSize = 256 * 1024

// EventSink is what the engine emits every event to. The engine
// guarantees at most one Schema before any data event, exactly one
// terminal event, and no calls after Close.
type EventSink interface {
	Emit(ev diffcore.Event) error
	Close() error
}

// Writer adapts an io.Writer into an EventSink by rendering each event
// as one newline-terminated JSON line (JSONL).
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter wraps w in a buffered JSONL sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, writeBufSize)}
}

func (s *Writer) Emit(ev diffcore.Event) error {
	s.buf = ev.AppendJSON(s.buf[:0])
	s.buf = append(s.buf, '\n')
	_, err := s.w.Write(s.buf)
	return err
}

// Close flushes any buffered bytes. It does not close an underlying
// *os.File; callers own that lifecycle.
func (s *Writer) Close() error { return s.w.Flush() }

// Channel adapts a buffered channel into an EventSink, giving external
// consumers — a browser worker relaying events via postMessage, a test
// collecting them for assertions — a pull-based interface. Emit blocks
// when the channel is full, which is this sink's back-pressure: the
// spec leaves back-pressure to the sink, and blocking the engine's
// single producer is the native-side mechanism for it.
type Channel struct {
	ctx context.Context
	ch  chan diffcore.Event
}

// NewChannel returns a Channel sink with the given buffer depth. ctx
// lets Emit return promptly (as context.Canceled) instead of blocking
// forever against a consumer that has stopped reading.
func NewChannel(ctx context.Context, depth int) *Channel {
	return &Channel{ctx: ctx, ch: make(chan diffcore.Event, depth)}
}

// Events returns the receive side for the consumer to drain.
func (s *Channel) Events() <-chan diffcore.Event { return s.ch }

func (s *Channel) Emit(ev diffcore.Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Channel) Close() error {
	close(s.ch)
	return nil
}
