// Package scanresult implements the per-region match list (component D):
// dumpable over a {count} header and (value, address) entries, with the
// parallel-chunked search described in spec.md §4.D and §8 property 2.
package scanresult

import (
	"sync"
	"unsafe"

	"github.com/fulldump/memscan/dumpable"
	"github.com/fulldump/memscan/dumpstore"
	"github.com/fulldump/memscan/region"
)

// ParallelThreshold is the element count above which SearchValue fans
// out across SearchWorkers goroutines instead of scanning serially.
// Matches PARALLEL_THRESHOLD in the original C++ (scan_result.hpp).
const ParallelThreshold = 10000

// SearchWorkers is the fixed worker-pool size used for intra-region
// parallel search (spec.md §4.F: "size 4 for the intra-region parallel
// search").
const SearchWorkers = 4

// Entry is one surviving match: the value observed and the virtual
// address it was observed at.
type Entry[T any] struct {
	Value   T
	Address uint64
}

// Comparator decides whether a candidate value is a match. newValue is
// the freshly read element; reference is the comparator's primary
// reference argument (v1 for seed/absolute scans, the element's prior
// value for next-pass relative scans); extra carries a second argument
// (value_between's v2, or the v1 delta for increased_by/decreased_by)
// when the scan type needs one.
type Comparator[T any] func(newValue, reference T, extra T) bool

// Result is a region's match list: extends dumpable.Record with a count
// header (implicit in slice length) plus a back-pointer to the region
// snapshot it was produced from, needed by the next pass to walk raw
// bytes retained from an unknown_value seed.
type Result[T any] struct {
	Region *region.Region
	Type   ScanType
	Index  int32 // stable pass-local region index, the join key

	rec *dumpable.Record[Entry[T]]
}

// ScanType names the comparator family selected for a pass; kept on the
// result so the next pass knows how to interpret retained state (in
// particular, unknown_value results retain the raw region dump rather
// than materialized entries).
type ScanType int

const (
	ExactValue ScanType = iota
	BiggerThan
	SmallerThan
	Changed
	Unchanged
	IncreasedValue
	DecreasedValue
	IncreasedBy
	DecreasedBy
	ValueBetween
	UnknownValue
)

// New allocates an empty result bound to r and store, for the given
// region index and scan type.
func New[T any](store *dumpstore.Store, r *region.Region, index int32, t ScanType) *Result[T] {
	return &Result[T]{
		Region: r,
		Type:   t,
		Index:  index,
		rec:    dumpable.New[Entry[T]](store),
	}
}

// AddElement appends entry and marks the result valid. Used by
// next-pass workers building a fresh result.
func (r *Result[T]) AddElement(e Entry[T]) {
	r.rec.Append(e)
}

// Elements returns a read-only view over the result's current entries,
// faulting a mapping in if the result was discarded.
func (r *Result[T]) Elements() []Entry[T] {
	return r.rec.Elements()
}

// Len returns the current entry count.
func (r *Result[T]) Len() int {
	return r.rec.Len()
}

// Dump flushes the result's entries to its store, optionally discarding
// the RAM copy.
func (r *Result[T]) Dump(discard bool) bool {
	return r.rec.Dump(discard)
}

// SearchValue scans r.Region's payload as a contiguous array of T,
// count = region.size/sizeof(T), and appends {value, address} for every
// index at which cmp(value, reference, extra) holds. Returns true iff at
// least one match was appended. Above ParallelThreshold elements the
// scan is partitioned into SearchWorkers equal chunks; worker-local
// buffers are concatenated in worker order, producing the same address
// ordering a serial scan would (spec.md §8 property 2).
func (r *Result[T]) SearchValue(cmp Comparator[T], reference, extra T) bool {
	payload := r.Region.Payload()
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 || len(payload) < elemSize {
		return false
	}
	count := len(payload) / elemSize
	base := r.Region.Base

	elemAt := func(i int) T {
		return *(*T)(unsafeAddr(payload, i*elemSize))
	}

	if count <= ParallelThreshold {
		matches := scanRange[T](elemAt, cmp, reference, extra, 0, count, base, elemSize)
		for _, m := range matches {
			r.rec.Append(m)
		}
		return len(matches) > 0
	}

	chunks := make([][]Entry[T], SearchWorkers)
	chunkSize := (count + SearchWorkers - 1) / SearchWorkers

	var wg sync.WaitGroup
	for w := 0; w < SearchWorkers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > count {
			hi = count
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			chunks[w] = scanRange[T](elemAt, cmp, reference, extra, lo, hi, base, elemSize)
		}(w, lo, hi)
	}
	wg.Wait()

	found := false
	for _, c := range chunks {
		for _, m := range c {
			r.rec.Append(m)
			found = true
		}
	}
	return found
}

func scanRange[T any](elemAt func(int) T, cmp Comparator[T], reference, extra T, lo, hi int, base uint64, elemSize int) []Entry[T] {
	var out []Entry[T]
	for i := lo; i < hi; i++ {
		v := elemAt(i)
		if cmp(v, reference, extra) {
			out = append(out, Entry[T]{Value: v, Address: base + uint64(i*elemSize)})
		}
	}
	return out
}

func unsafeAddr(b []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&b[off])
}
