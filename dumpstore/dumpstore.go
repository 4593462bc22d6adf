// Package dumpstore implements the append-only scratch file that backs
// dumpable records: a bounded RAM write buffer with durable spillover to
// disk, and a chunked, memory-mapped read path.
package dumpstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// BufferSize is the fixed capacity of the store's RAM write buffer.
// Matches the 100 MiB recommendation in the spec; the original C++
// implementation (file_dump.hpp) uses the same figure for both its
// initial map size and its write buffer.
const BufferSize = 100 * 1024 * 1024

// Store is an append-only scratch file. Small writes are staged in a
// fixed-size RAM buffer and acknowledged immediately; large writes, or a
// buffer flush, go straight to disk. Reads always go through a
// memory-mapped view, never through the RAM buffer — read is only valid
// for offsets previously returned by Write, by which point the bytes are
// either on disk or about to be flushed there.
type Store struct {
	path string

	mu         sync.Mutex
	file       *os.File
	logicalEnd int64 // durable size on disk, excludes the buffered tail

	buffer    []byte
	bufferPos int
}

// Open creates a new scratch file at path with the default BufferSize
// RAM write buffer. The file is created empty; Close removes it.
func Open(path string) (*Store, error) {
	return OpenSized(path, BufferSize)
}

// OpenSized is Open with an explicit buffer capacity, for callers (the
// configuration package's DumpBufferSize knob) that want to tune it.
func OpenSized(path string, bufferSize int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("dumpstore: open %s: %w", path, err)
	}
	if bufferSize <= 0 {
		bufferSize = BufferSize
	}
	return &Store{
		path:   path,
		file:   f,
		buffer: make([]byte, bufferSize),
	}, nil
}

// Size returns the durable logical size of the store, excluding whatever
// is currently staged in the RAM buffer.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logicalEnd
}

// Write appends data to the store and returns the logical offset at which
// it will be readable. A write that fits in the remaining buffer capacity
// is memcpy'd in and acknowledged without touching disk; otherwise the
// buffer is flushed first, and the incoming write either seeds the
// now-empty buffer or, if it's bigger than the buffer itself, goes
// straight to disk.
func (s *Store) Write(data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferPos+len(data) <= len(s.buffer) {
		offset := s.logicalEnd + int64(s.bufferPos)
		copy(s.buffer[s.bufferPos:], data)
		s.bufferPos += len(data)
		return offset, nil
	}

	if s.bufferPos > 0 {
		if err := s.flushLocked(); err != nil {
			return 0, err
		}
	}

	if len(data) > len(s.buffer) {
		offset := s.logicalEnd
		if err := s.writeFileLocked(data); err != nil {
			return 0, err
		}
		return offset, nil
	}

	copy(s.buffer, data)
	s.bufferPos = len(data)
	return s.logicalEnd, nil
}

// flushLocked durably writes the buffered tail to disk and resets the
// cursor. Caller must hold mu.
func (s *Store) flushLocked() error {
	if s.bufferPos == 0 {
		return nil
	}
	if err := s.writeFileLocked(s.buffer[:s.bufferPos]); err != nil {
		return err
	}
	s.bufferPos = 0
	return nil
}

func (s *Store) writeFileLocked(data []byte) error {
	n, err := s.file.WriteAt(data, s.logicalEnd)
	if err != nil {
		return fmt.Errorf("dumpstore: write at %d: %w", s.logicalEnd, err)
	}
	s.logicalEnd += int64(n)
	return nil
}

// Read flushes any pending buffer so the requested range is addressable
// on disk, grows the file if needed, and returns a memory-mapped chunk
// covering [offset, offset+size). The chunk owns the mapping and must be
// closed by the caller.
func (s *Store) Read(offset int64, size int) (*Chunk, error) {
	s.mu.Lock()
	if err := s.flushLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	required := offset + int64(size)
	if required > s.logicalEnd {
		if err := s.file.Truncate(required); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("dumpstore: grow to %d: %w", required, err)
		}
		s.logicalEnd = required
	}
	s.mu.Unlock()

	if size == 0 {
		return &Chunk{data: nil}, nil
	}

	// MapRegion requires a page-aligned offset; round down and carry the
	// remainder as a forward slice into the mapped view.
	pageSize := int64(os.Getpagesize())
	aligned := offset - offset%pageSize
	shift := int(offset - aligned)

	view, err := mmap.MapRegion(s.file, size+shift, mmap.RDWR, 0, aligned)
	if err != nil {
		return nil, fmt.Errorf("dumpstore: map offset %d size %d: %w", offset, size, err)
	}

	return &Chunk{view: view, data: []byte(view)[shift : shift+size]}, nil
}

// Close unmaps nothing (callers own their Chunks), closes, and removes
// the backing file. The store is scratch space; it never survives the
// engine that owns it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.file.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Chunk is a read-only, memory-mapped view over a range of the store.
// Its Bytes are valid only while the chunk is open.
type Chunk struct {
	view mmap.MMap
	data []byte
}

// Bytes returns the mapped byte range.
func (c *Chunk) Bytes() []byte { return c.data }

// Close unmaps the chunk's view.
func (c *Chunk) Close() error {
	if c.view == nil {
		return nil
	}
	return c.view.Unmap()
}
