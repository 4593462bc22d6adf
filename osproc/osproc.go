// Package osproc provides the OS collaborators the scan engine is
// parameterized over (spec.md §6): region enumeration, remote memory
// reads, and address-space bounds. Concrete bindings live in
// osproc_unix.go (golang.org/x/sys/unix) and osproc_windows.go
// (golang.org/x/sys/windows), selected by build tag.
package osproc

// Protection bits are normalized across platforms by each Collaborator
// implementation, so callers never deal with native PAGE_* / mmap perm
// strings directly.
const (
	ProtRead uint32 = 1 << iota
	ProtWrite
	ProtExecute
	ProtCopyOnWrite
)

// Info describes one region as reported by the OS, prior to any
// clamping or filtering by the engine.
type Info struct {
	Base       uint64
	Size       uint64
	Protection uint32 // normalized ProtXxx bits
	Committed  bool
	FileMapped bool
}

// Collaborator is the engine's view of the host OS: everything that
// touches a foreign process. A real binary wires the unix or windows
// implementation; tests inject a fake.
type Collaborator interface {
	// EnumerateRegion returns the region covering or immediately
	// following address, or ok=false if the query fails (end of the
	// address space, or the OS refuses to describe it).
	EnumerateRegion(pid int, address uint64) (info Info, ok bool)

	// ReadRemote reads up to len(buf) bytes of pid's memory starting at
	// base into buf, returning whether the read succeeded and how many
	// bytes were actually delivered.
	ReadRemote(pid int, base uint64, buf []byte) (ok bool, n int)

	// RangeBounds returns the usable virtual-address range [min, max)
	// the engine should enumerate over.
	RangeBounds(pid int) (min, max uint64, err error)
}
