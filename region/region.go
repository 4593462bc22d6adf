// Package region implements the region snapshot (component C): one
// contiguous range of a target process's address space, captured once
// per pass, extending dumpable.Record with a {base, size} header and
// OS attributes the engine uses to filter candidate regions.
package region

import (
	"unsafe"

	"github.com/fulldump/memscan/dumpable"
	"github.com/fulldump/memscan/dumpstore"
)

// Protection is a bitmask of the OS-reported page protection for a
// region, normalized across platforms by the osproc bindings.
type Protection uint32

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExecute
	ProtCopyOnWrite
)

// Intersects reports whether any bit of mask is set in p.
func (p Protection) Intersects(mask Protection) bool {
	return p&mask != 0
}

// Reader reads size bytes of the target's memory starting at base into
// buf, returning whether the read succeeded and how many bytes were
// actually delivered. Bound to osproc's read_remote collaborator.
type Reader func(base uint64, buf []byte, size int) (ok bool, n int)

// Region is a single enumerated address range, snapshotted for the
// duration of one pass. Region's payload lives in a dumpable.Record[byte]
// so it can spill to a dumpstore.Store during an unknown_value seed pass.
type Region struct {
	Base uint64
	Size uint64 // shrinks to bytes_actually_read after ReadFromTarget

	Protection Protection
	Committed  bool
	FileMapped bool

	Valid bool

	rec *dumpable.Record[byte]
}

// New allocates an empty region snapshot over [base, base+size), backed
// by store for later spill.
func New(store *dumpstore.Store, base, size uint64, prot Protection, committed, fileMapped bool) *Region {
	return &Region{
		Base:       base,
		Size:       size,
		Protection: prot,
		Committed:  committed,
		FileMapped: fileMapped,
		rec:        dumpable.New[byte](store),
	}
}

// ReadFromTarget sizes the payload to r.Size, invokes reader, and on
// success shrinks r.Size to the number of bytes actually delivered,
// marks the region valid, and keeps the payload in RAM. On failure the
// payload is cleared and the region is marked invalid.
func (r *Region) ReadFromTarget(reader Reader) bool {
	buf := make([]byte, r.Size)
	ok, n := reader(r.Base, buf, int(r.Size))
	if !ok {
		r.rec.SetData(nil)
		r.Valid = false
		return false
	}
	r.Size = uint64(n)
	r.rec.SetData(buf[:n])
	r.Valid = true
	return true
}

// Contains reports whether addr falls within the region, using the
// intentionally inclusive upper bound the cross-pass join depends on:
// base <= addr <= base+size.
func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr <= r.Base+r.Size
}

// Dump flushes the region's current RAM payload to its store, optionally
// discarding the RAM copy. Used for unknown_value seed-pass regions,
// whose raw bytes must survive to the next pass without staying in RAM.
func (r *Region) Dump(discard bool) bool {
	return r.rec.Dump(discard)
}

// Payload returns the region's current byte payload, faulting a mapping
// in if the region was discarded.
func (r *Region) Payload() []byte {
	return r.rec.Elements()
}

// AtOffset returns a typed pointer into the region's payload at byte
// offset off, valid only while the backing storage stays loaded/mapped.
// Returns nil if the region is invalid or the offset is out of range.
func AtOffset[T any](r *Region, off int) *T {
	if !r.Valid {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	payload := r.Payload()
	if off < 0 || size == 0 || off+size > len(payload) {
		return nil
	}
	return (*T)(unsafe.Pointer(&payload[off]))
}

// AtIndex returns a typed pointer to the i-th T-sized element of the
// region's payload.
func AtIndex[T any](r *Region, i int) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	return AtOffset[T](r, i*size)
}

// AtAddress returns a typed pointer to the element of the region's
// payload located at virtual address addr, or nil if addr doesn't fall
// within the region.
func AtAddress[T any](r *Region, addr uint64) *T {
	if !r.Contains(addr) {
		return nil
	}
	return AtOffset[T](r, int(addr-r.Base))
}

// ElementCount returns how many T-sized elements fit in the region's
// current size.
func ElementCount[T any](r *Region) int {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return 0
	}
	return int(r.Size) / size
}
