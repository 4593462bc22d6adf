// Package dumpable implements the generic "header + fixed-size-element
// payload" record that can live in RAM, be flushed to a dumpstore.Store,
// and be re-faulted lazily through a memory-mapped chunk.
//
// It mirrors dumpable<Header, DataType> from the original implementation:
// at any time at most one of {RAM slice non-empty, mapped view live} is
// authoritative, and once a record has been dumped with discard it reads
// back only through Load.
package dumpable

import (
	"unsafe"

	"github.com/fulldump/memscan/dumpstore"
)

// Record holds Elem values behind a RAM slice or a mapped chunk, backed
// by a shared dumpstore.Store. Header is kept by the owner (region.Region,
// scanresult.Result); Record only knows how many elements it holds and
// where they live.
type Record[Elem any] struct {
	store *dumpstore.Store

	data    []Elem
	mapped  *dumpstore.Chunk
	offset  *int64 // nil until Dump has been called at least once
	count   int    // element count as of the last Dump, survives a discard
	valid   bool
	discard bool
}

// New returns a Record bound to store. It holds no data until the owner
// populates it (via SetData) or Load faults it in from a prior Dump.
func New[Elem any](store *dumpstore.Store) *Record[Elem] {
	return &Record[Elem]{store: store}
}

// SetData installs ram as the record's authoritative RAM payload and
// marks the record valid. Used by readers/builders (region read, scan
// result append) rather than by Dump/Load round-tripping.
func (r *Record[Elem]) SetData(ram []Elem) {
	r.data = ram
	r.valid = len(ram) > 0 || r.valid
	r.discard = false
	r.mapped = nil
}

// Append adds a single element to the RAM payload, promoting a live
// mapped view first if necessary, and marks the record valid.
func (r *Record[Elem]) Append(e Elem) {
	r.CopyMapView()
	r.data = append(r.data, e)
	r.valid = true
}

// Valid reports whether the record currently carries data, in RAM or
// via a live/loadable mapping.
func (r *Record[Elem]) Valid() bool { return r.valid }

// Discarded reports whether the RAM payload has been cleared by a
// discarding Dump.
func (r *Record[Elem]) Discarded() bool { return r.discard }

// Len returns the number of elements the record currently describes,
// independent of where they're stored. Once discarded, this comes from
// the count recorded at Dump time rather than any live slice/mapping.
func (r *Record[Elem]) Len() int {
	if !r.discard {
		return len(r.data)
	}
	return r.count
}

// CopyMapView promotes a currently-mapped read-only view into the
// owning RAM slice, so the record can be mutated. No-op if there is no
// live mapping.
func (r *Record[Elem]) CopyMapView() {
	if r.mapped == nil {
		return
	}
	elems := bytesToElems[Elem](r.mapped.Bytes())
	r.data = append([]Elem(nil), elems...)
	r.discard = false
	r.mapped = nil
}

// Elements returns a read-only view over the record's current payload,
// loading a mapping on demand if the record was discarded. Returns nil
// if the record is invalid or cannot be mapped — callers treat that the
// same as an empty view, matching the ambiguity the original leaves
// open (scan_result::elements()).
func (r *Record[Elem]) Elements() []Elem {
	if !r.valid {
		return nil
	}
	if !r.discard {
		return r.data
	}
	if r.mapped == nil {
		if !r.Load() {
			return nil
		}
	}
	return bytesToElems[Elem](r.mapped.Bytes())
}

// Load faults in a mapped view over the record's last-written range, if
// one isn't already live. Returns false if the record was never dumped
// or the mapping fails.
func (r *Record[Elem]) Load() bool {
	if r.mapped != nil || (!r.discard && len(r.data) > 0) {
		return true
	}
	if r.offset == nil {
		return false
	}
	size := r.Len() * elemSize[Elem]()
	chunk, err := r.store.Read(*r.offset, size)
	if err != nil {
		return false
	}
	r.mapped = chunk
	return true
}

// Dump writes the current RAM payload to the store. If discard is true,
// the RAM slice and any live mapping are cleared, and subsequent access
// must go through Load. The element count is recorded at this point so
// Len keeps reporting it after a discard. Returns false without writing
// anything if the RAM payload is empty.
func (r *Record[Elem]) Dump(discard bool) bool {
	if len(r.data) == 0 {
		return false
	}

	raw := elemsToBytes(r.data)
	offset, err := r.store.Write(raw)
	if err != nil {
		return false
	}
	r.offset = &offset
	r.count = len(r.data)

	if discard {
		r.data = nil
		r.mapped = nil
		r.discard = true
	}
	return true
}

func elemSize[Elem any]() int {
	var e Elem
	return int(unsafe.Sizeof(e))
}

func bytesToElems[Elem any](b []byte) []Elem {
	n := len(b) / elemSize[Elem]()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Elem)(unsafe.Pointer(&b[0])), n)
}

func elemsToBytes[Elem any](elems []Elem) []byte {
	if len(elems) == 0 {
		return nil
	}
	sz := elemSize[Elem]()
	return unsafe.Slice((*byte)(unsafe.Pointer(&elems[0])), len(elems)*sz)
}
