package spill

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"csvdiff/internal/diffcore"
)

func init() {
	Register("tempdir", openTempDirBackend)
}

// tempDirBackend is the native backend: one JSONL file per (side,
// partition), under a per-run temp directory, matching the spill file
// layout in the wire contract exactly.
type tempDirBackend struct {
	root       string
	partitions int

	mu      sync.Mutex
	writers map[string]*bufio.Writer
	files   map[string]*os.File
}

func openTempDirBackend(ctx context.Context, runID uuid.UUID, cfg Config) (Backend, error) {
	base := cfg.Dir
	if base == "" {
		base = os.TempDir()
	}
	root := filepath.Join(base, "csvdiff-"+runID.String())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &tempDirBackend{
		root:       root,
		partitions: cfg.Partitions,
		writers:    make(map[string]*bufio.Writer),
		files:      make(map[string]*os.File),
	}, nil
}

func (b *tempDirBackend) writerFor(side Side, partition int) (*bufio.Writer, error) {
	key := partitionFileName(side, partition)
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.writers[key]; ok {
		return w, nil
	}
	f, err := os.OpenFile(filepath.Join(b.root, key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 256*1024)
	b.files[key] = f
	b.writers[key] = w
	return w, nil
}

func (b *tempDirBackend) Append(ctx context.Context, side Side, partition int, rec Record) error {
	w, err := b.writerFor(side, partition)
	if err != nil {
		return diffcore.Wrap(diffcore.CodeStorageError, err, "opening partition file: %v", err)
	}
	buf, err := EncodeRecord(nil, rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	_, err = w.Write(buf)
	b.mu.Unlock()
	if err != nil {
		return diffcore.Wrap(diffcore.CodeStorageError, err, "writing partition file: %v", err)
	}
	return nil
}

func (b *tempDirBackend) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, w := range b.writers {
		if err := w.Flush(); err != nil {
			return diffcore.Wrap(diffcore.CodeStorageError, err, "flushing %s: %v", key, err)
		}
	}
	return nil
}

func (b *tempDirBackend) Iterate(ctx context.Context, side Side, partition int) (Cursor, error) {
	path := filepath.Join(b.root, partitionFileName(side, partition))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newLineCursor(emptyReader{}, nil), nil
		}
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening partition file: %v", err)
	}
	adviseSequential(f)
	return newLineCursor(f, f), nil
}

func (b *tempDirBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.files {
		_ = f.Close()
	}
	b.writers = map[string]*bufio.Writer{}
	b.files = map[string]*os.File{}
	return os.RemoveAll(b.root)
}

type emptyReader struct{}

func (emptyReader) Read(p []byte) (int, error) { return 0, io.EOF }
