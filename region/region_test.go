package region

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/fulldump/memscan/dumpstore"
)

func newStore(t *testing.T) *dumpstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.dump")
	s, err := dumpstore.Open(path)
	if err != nil {
		t.Fatalf("dumpstore.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fakeReader(data []byte, ok bool) Reader {
	return func(base uint64, buf []byte, size int) (bool, int) {
		if !ok {
			return false, 0
		}
		n := copy(buf, data)
		return true, n
	}
}

func TestReadFromTargetSuccess(t *testing.T) {
	r := New(newStore(t), 0x1000, 16, ProtRead|ProtWrite, true, false)
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}

	if !r.ReadFromTarget(fakeReader(data, true)) {
		t.Fatal("expected ReadFromTarget to succeed")
	}
	if !r.Valid {
		t.Fatal("expected region to be valid")
	}
	if r.Size != 16 {
		t.Fatalf("expected size 16, got %d", r.Size)
	}
	if got := r.Payload(); len(got) != 16 || got[15] != 15 {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestReadFromTargetFailure(t *testing.T) {
	r := New(newStore(t), 0x1000, 16, ProtRead, true, false)
	if r.ReadFromTarget(fakeReader(nil, false)) {
		t.Fatal("expected ReadFromTarget to fail")
	}
	if r.Valid {
		t.Fatal("expected region to be invalid after a failed read")
	}
}

func TestReadFromTargetShrinksSizeToBytesDelivered(t *testing.T) {
	r := New(newStore(t), 0x1000, 16, ProtRead, true, false)
	short := func(base uint64, buf []byte, size int) (bool, int) {
		return true, 8 // fewer bytes than requested
	}
	if !r.ReadFromTarget(short) {
		t.Fatal("expected success")
	}
	if r.Size != 8 {
		t.Fatalf("expected size to shrink to 8, got %d", r.Size)
	}
}

func TestContainsInclusiveUpperBound(t *testing.T) {
	r := &Region{Base: 0x1000, Size: 0x100}
	if !r.Contains(0x1000) {
		t.Fatal("base address should be contained")
	}
	if !r.Contains(0x1000 + 0x100) {
		t.Fatal("base+size should be contained (inclusive upper bound)")
	}
	if r.Contains(0x1000 + 0x101) {
		t.Fatal("one past base+size should not be contained")
	}
	if r.Contains(0x0FFF) {
		t.Fatal("address before base should not be contained")
	}
}

func TestAtOffsetAndAtIndex(t *testing.T) {
	r := New(newStore(t), 0x2000, 16, ProtRead, true, false)
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], 111)
	binary.LittleEndian.PutUint32(buf[4:8], 222)
	binary.LittleEndian.PutUint32(buf[8:12], 333)

	if !r.ReadFromTarget(fakeReader(buf, true)) {
		t.Fatal("expected read to succeed")
	}

	if v := AtOffset[uint32](r, 0); v == nil || *v != 111 {
		t.Fatalf("AtOffset(0) = %v, want 111", v)
	}
	if v := AtIndex[uint32](r, 1); v == nil || *v != 222 {
		t.Fatalf("AtIndex(1) = %v, want 222", v)
	}
	if v := AtOffset[uint32](r, 13); v != nil {
		t.Fatal("AtOffset out of range should return nil")
	}
}

func TestAtAddress(t *testing.T) {
	r := New(newStore(t), 0x3000, 16, ProtRead, true, false)
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[4:8], 9999)
	if !r.ReadFromTarget(fakeReader(buf, true)) {
		t.Fatal("expected read to succeed")
	}

	if v := AtAddress[uint32](r, 0x3000+4); v == nil || *v != 9999 {
		t.Fatalf("AtAddress = %v, want 9999", v)
	}
	if v := AtAddress[uint32](r, 0x4000); v != nil {
		t.Fatal("AtAddress outside the region should return nil")
	}
}

func TestElementCount(t *testing.T) {
	r := &Region{Size: 40, Valid: true}
	if n := ElementCount[uint32](r); n != 10 {
		t.Fatalf("expected 10 uint32 elements in 40 bytes, got %d", n)
	}
}

func TestProtectionIntersects(t *testing.T) {
	p := ProtRead | ProtWrite
	if !p.Intersects(ProtWrite) {
		t.Fatal("expected intersection with ProtWrite")
	}
	if p.Intersects(ProtExecute) {
		t.Fatal("expected no intersection with ProtExecute")
	}
}
