package spill

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"csvdiff/internal/diffcore"
)

// wireRecord is Record's on-disk/on-wire shape. Unlike the Event wire
// format, this one is safe to hand to encoding/json as-is: every field is
// an array or scalar, never a map, so Go's alphabetical map-key sorting
// never enters the picture.
type wireRecord struct {
	Key      []string `json:"key"`
	RowIndex uint64   `json:"row_index"`
	Row      []string `json:"row"`
}

// EncodeRecord appends one JSONL line (including trailing newline) for
// rec to dst.
func EncodeRecord(dst []byte, rec Record) ([]byte, error) {
	b, err := json.Marshal(wireRecord{Key: rec.Key, RowIndex: rec.RowIndex, Row: rec.Row})
	if err != nil {
		return dst, diffcore.Wrap(diffcore.CodeStorageError, err, "encoding spill record: %v", err)
	}
	dst = append(dst, b...)
	dst = append(dst, '\n')
	return dst, nil
}

// DecodeRecord parses one JSONL line back into a Record.
func DecodeRecord(line []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return Record{}, diffcore.Wrap(diffcore.CodeStorageError, err, "decoding spill record: %v", err)
	}
	return Record{Key: diffcore.KeyTuple(w.Key), RowIndex: w.RowIndex, Row: diffcore.Row(w.Row)}, nil
}

// lineCursor adapts a bufio.Scanner over JSONL text into a Cursor. Both
// the tempdir and sql backends read their partition data as JSONL lines,
// so they share this decoding loop.
type lineCursor struct {
	sc     *bufio.Scanner
	closer io.Closer
}

func newLineCursor(r io.Reader, closer io.Closer) *lineCursor {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &lineCursor{sc: sc, closer: closer}
}

func (c *lineCursor) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return Record{}, diffcore.New(diffcore.CodeCancelled, "cancelled")
	default:
	}
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return Record{}, diffcore.Wrap(diffcore.CodeStorageError, err, "reading spill partition: %v", err)
		}
		return Record{}, io.EOF
	}
	return DecodeRecord(c.sc.Bytes())
}

func (c *lineCursor) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
