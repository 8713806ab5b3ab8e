package diffcore

import (
	"strconv"
)

// Row is one data row's values, positionally aligned to a header. Event
// payloads never carry the header itself; callers encode against the
// RowEncoder built for the side's header.
type Row []string

// RowEncoder renders a Row (or any ordered column/value pairing) as a
// JSON object with columns in a fixed order, without going through
// encoding/json and a map[string]string — map iteration order is
// unspecified in Go and encoding/json sorts map keys alphabetically,
// either of which would silently violate the wire contract's requirement
// that row fields appear in header/comparison-column order.
//
// The prefix-precomputation trick (and the reused scratch buffer it
// plugs into at the Sink Adapter) is the same one used for bulk CSV row
// encoding elsewhere in this codebase's lineage.
type RowEncoder struct {
	columns  []string
	prefixes [][]byte
}

// NewRowEncoder precomputes the `"column":` byte prefixes for columns.
func NewRowEncoder(columns []string) *RowEncoder {
	pfx := make([][]byte, len(columns))
	for i, c := range columns {
		q := strconv.AppendQuote(nil, c)
		b := make([]byte, 0, len(q)+1)
		b = append(b, q...)
		b = append(b, ':')
		pfx[i] = b
	}
	return &RowEncoder{columns: columns, prefixes: pfx}
}

// AppendRow appends `{"c1":"v1","c2":"v2"}` to dst and returns it. len(row)
// must equal len(columns); callers are expected to have already validated
// row width (row_width_mismatch is fatal earlier in the pipeline).
func (e *RowEncoder) AppendRow(dst []byte, row []string) []byte {
	dst = append(dst, '{')
	for i, v := range row {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, e.prefixes[i]...)
		dst = strconv.AppendQuote(dst, v)
	}
	dst = append(dst, '}')
	return dst
}

// Identity is the `key` or `row_index` of one data event. Exactly one of
// Key/RowIndex is meaningful, selected by HasKey — mirroring the spec's
// "never both" invariant instead of letting a consumer observe a
// half-populated struct.
type Identity struct {
	// None marks a multiset-mode event, whose rows are anonymous peers
	// with no identity field at all — distinct from RowIndex==0, which
	// would otherwise be indistinguishable from "row_index":0 on the
	// wire.
	None     bool
	HasKey   bool
	Key      KeyTuple
	KeyCols  []string
	RowIndex uint64
}

func (id Identity) appendJSON(dst []byte) []byte {
	if id.HasKey {
		dst = append(dst, `"key":{`...)
		for i, c := range id.KeyCols {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = strconv.AppendQuote(dst, c)
			dst = append(dst, ':')
			dst = strconv.AppendQuote(dst, id.Key[i])
		}
		dst = append(dst, '}')
		return dst
	}
	dst = append(dst, `"row_index":`...)
	dst = strconv.AppendUint(dst, id.RowIndex, 10)
	return dst
}

// EventType is the tagged-variant discriminator on the wire.
type EventType string

const (
	EventSchema    EventType = "schema"
	EventAdded     EventType = "added"
	EventRemoved   EventType = "removed"
	EventChanged   EventType = "changed"
	EventUnchanged EventType = "unchanged"
	EventProgress  EventType = "progress"
	EventStats     EventType = "stats"
)

// Event is anything that can render itself as one JSONL line. Identity
// events (added/removed/changed/unchanged) additionally expose their
// sort key so the Event Orderer can merge without re-parsing JSON.
type Event interface {
	Type() EventType
	AppendJSON(dst []byte) []byte
}

// SchemaEvent is always the first event of a successful run.
type SchemaEvent struct {
	ColumnsA []string
	ColumnsB []string
}

func (e *SchemaEvent) Type() EventType { return EventSchema }

func (e *SchemaEvent) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":"schema","columns_a":`...)
	dst = appendStringArray(dst, e.ColumnsA)
	dst = append(dst, `,"columns_b":`...)
	dst = appendStringArray(dst, e.ColumnsB)
	dst = append(dst, '}')
	return dst
}

func appendStringArray(dst []byte, vals []string) []byte {
	dst = append(dst, '[')
	for i, v := range vals {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendQuote(dst, v)
	}
	dst = append(dst, ']')
	return dst
}

// RowEvent covers added/removed/unchanged: an identity plus one row,
// encoded against enc (the side's or comparison-column RowEncoder).
type RowEvent struct {
	Kind     EventType // EventAdded, EventRemoved, or EventUnchanged
	Identity Identity
	Row      Row
	Enc      *RowEncoder
}

func (e *RowEvent) Type() EventType { return e.Kind }

func (e *RowEvent) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":"`...)
	dst = append(dst, e.Kind...)
	dst = append(dst, `"`...)
	if !e.Identity.None {
		dst = append(dst, ',')
		dst = e.Identity.appendJSON(dst)
	}
	dst = append(dst, `,"row":`...)
	dst = e.Enc.AppendRow(dst, e.Row)
	dst = append(dst, '}')
	return dst
}

// Delta is one column's before/after pair in a ChangedEvent.
type Delta struct {
	Column string
	From   string
	To     string
}

// ChangedEvent carries the full before/after rows plus the minimal
// changed-column list and delta map, in comparison-column order.
// Before and After are encoded with separate encoders because under
// header_mode=sorted the two sides' own column orders can differ even
// though their comparison columns reconcile — a single shared encoder
// would silently mislabel After's values with Before's column names.
type ChangedEvent struct {
	Identity   Identity
	Changed    []string
	Before     Row
	After      Row
	Deltas     []Delta
	EncBefore  *RowEncoder
	EncAfter   *RowEncoder
}

func (e *ChangedEvent) Type() EventType { return EventChanged }

func (e *ChangedEvent) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":"changed",`...)
	dst = e.Identity.appendJSON(dst)
	dst = append(dst, `,"changed":`...)
	dst = appendStringArray(dst, e.Changed)
	dst = append(dst, `,"before":`...)
	dst = e.EncBefore.AppendRow(dst, e.Before)
	dst = append(dst, `,"after":`...)
	dst = e.EncAfter.AppendRow(dst, e.After)
	dst = append(dst, `,"delta":{`...)
	for i, d := range e.Deltas {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendQuote(dst, d.Column)
		dst = append(dst, `:{"from":`...)
		dst = strconv.AppendQuote(dst, d.From)
		dst = append(dst, `,"to":`...)
		dst = strconv.AppendQuote(dst, d.To)
		dst = append(dst, '}')
	}
	dst = append(dst, `}}`...)
	return dst
}

// Phase names for ProgressEvent, in the fixed order the engine reports
// them; never skipped when no cancellation occurs.
type Phase string

const (
	PhasePrepare         Phase = "prepare"
	PhasePartitioning    Phase = "partitioning"
	PhaseDiffPartitions  Phase = "diff_partitions"
	PhaseEmitEvents      Phase = "emit_events"
	PhaseDone            Phase = "done"
)

type ProgressEvent struct {
	Phase   Phase
	Done    uint64
	Total   uint64
	Message string
}

func (e *ProgressEvent) Type() EventType { return EventProgress }

func (e *ProgressEvent) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":"progress","phase":`...)
	dst = strconv.AppendQuote(dst, string(e.Phase))
	dst = append(dst, `,"done":`...)
	dst = strconv.AppendUint(dst, e.Done, 10)
	dst = append(dst, `,"total":`...)
	dst = strconv.AppendUint(dst, e.Total, 10)
	if e.Message != "" {
		dst = append(dst, `,"message":`...)
		dst = strconv.AppendQuote(dst, e.Message)
	}
	dst = append(dst, '}')
	return dst
}

// StatsEvent is always the last event of a successful run.
type StatsEvent struct {
	RowsTotalCompared uint64
	RowsAdded         uint64
	RowsRemoved       uint64
	RowsChanged       uint64
	RowsUnchanged     uint64
}

func (e *StatsEvent) Type() EventType { return EventStats }

func (e *StatsEvent) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":"stats","rows_total_compared":`...)
	dst = strconv.AppendUint(dst, e.RowsTotalCompared, 10)
	dst = append(dst, `,"rows_added":`...)
	dst = strconv.AppendUint(dst, e.RowsAdded, 10)
	dst = append(dst, `,"rows_removed":`...)
	dst = strconv.AppendUint(dst, e.RowsRemoved, 10)
	dst = append(dst, `,"rows_changed":`...)
	dst = strconv.AppendUint(dst, e.RowsChanged, 10)
	dst = append(dst, `,"rows_unchanged":`...)
	dst = strconv.AppendUint(dst, e.RowsUnchanged, 10)
	dst = append(dst, '}')
	return dst
}
