package spill

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

func init() {
	Register("memory", openMemoryBackend)
}

// memoryBackend keeps every partition's records in process memory. It
// exists for small inputs, tests, and WASM targets without disk access.
type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]Record
}

func openMemoryBackend(ctx context.Context, runID uuid.UUID, cfg Config) (Backend, error) {
	return &memoryBackend{data: make(map[string][]Record)}, nil
}

func (b *memoryBackend) Append(ctx context.Context, side Side, partition int, rec Record) error {
	key := partitionFileName(side, partition)
	b.mu.Lock()
	b.data[key] = append(b.data[key], rec)
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Flush(ctx context.Context) error { return nil }

func (b *memoryBackend) Iterate(ctx context.Context, side Side, partition int) (Cursor, error) {
	key := partitionFileName(side, partition)
	b.mu.Lock()
	recs := append([]Record(nil), b.data[key]...)
	b.mu.Unlock()
	return &memoryCursor{recs: recs}, nil
}

func (b *memoryBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
	return nil
}

type memoryCursor struct {
	recs []Record
	pos  int
}

func (c *memoryCursor) Next(ctx context.Context) (Record, error) {
	if c.pos >= len(c.recs) {
		return Record{}, io.EOF
	}
	rec := c.recs[c.pos]
	c.pos++
	return rec, nil
}

func (c *memoryCursor) Close() error { return nil }
