// Package engine implements the scan engine (component G): region
// enumeration, comparator selection, and the seed/next-pass algorithms
// that join one pass's regions against the previous pass's results.
package engine

import (
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/fulldump/memscan/comparator"
	"github.com/fulldump/memscan/dumpstore"
	"github.com/fulldump/memscan/osproc"
	"github.com/fulldump/memscan/region"
	"github.com/fulldump/memscan/resultmap"
	"github.com/fulldump/memscan/scanresult"
	"github.com/fulldump/memscan/worker"
)

// joinWorkers sizes the next-pass join worker pool (spec.md §4.F and
// §5). The other fixed pool, 4 workers for intra-region parallel search,
// is scanresult.SearchWorkers, used inside scanresult.SearchValue and not
// owned by Engine directly.
const joinWorkers = 8

// Engine runs pass-based scans against one target process, for a fixed
// scalar type T. It owns the two dump stores region snapshots and scan
// results spill into, and the join worker pool.
type Engine[T comparator.Numeric] struct {
	pid  int
	os   osproc.Collaborator
	logs *log.Logger

	regionStore *dumpstore.Store
	resultStore *dumpstore.Store
	join        *worker.Pool

	mu        sync.Mutex // guards passCount/prev, serializing successive Scan calls
	passCount int
	prev      *resultmap.Map[T]

	lastPassID string
	lastType   scanresult.ScanType
}

// New constructs an Engine for pid, backed by two scratch dump stores at
// regionDumpPath and resultDumpPath, each with a RAM write buffer of
// bufferSize bytes (SPEC_FULL.md supplemented feature 7: engine-lifetime-
// scoped stores, never package-level globals). joinPoolSize overrides
// the next-pass join worker count; 0 uses the spec default of 8.
func New[T comparator.Numeric](pid int, coll osproc.Collaborator, regionDumpPath, resultDumpPath string, bufferSize, joinPoolSize int, logs *log.Logger) (*Engine[T], error) {
	regionStore, err := dumpstore.OpenSized(regionDumpPath, bufferSize)
	if err != nil {
		return nil, err
	}
	resultStore, err := dumpstore.OpenSized(resultDumpPath, bufferSize)
	if err != nil {
		regionStore.Close()
		return nil, err
	}
	if logs == nil {
		logs = log.Default()
	}
	if joinPoolSize <= 0 {
		joinPoolSize = joinWorkers
	}
	return &Engine[T]{
		pid:         pid,
		os:          coll,
		logs:        logs,
		regionStore: regionStore,
		resultStore: resultStore,
		join:        worker.NewPool(joinPoolSize),
	}, nil
}

// Close tears down the engine's worker pool and removes both dump
// stores (spec.md §5: "the dump file is unlinked").
func (e *Engine[T]) Close() {
	e.join.Shutdown()
	e.regionStore.Close()
	e.resultStore.Close()
}

// Scan runs one pass: the seed algorithm on the engine's first call,
// the next-pass join algorithm thereafter. It never fails — OS and
// store errors are absorbed per spec.md §7 and simply reduce the match
// count. Returns the total number of surviving entries across all
// regions in this pass.
func (e *Engine[T]) Scan(t scanresult.ScanType, v1, v2 T) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	passID := uuid.New()
	regions := e.enumerateRegions()

	var count int
	if e.passCount == 0 {
		count = e.seedPass(t, v1, v2, regions)
	} else {
		count = e.nextPass(t, v1, v2, regions)
	}
	e.passCount++
	e.lastPassID = passID.String()
	e.lastType = t
	e.logs.Printf("SCAN: pass=%s type=%d regions=%d entries=%d", passID, t, len(regions), count)
	return count
}

// PassCount returns the number of passes run so far.
func (e *Engine[T]) PassCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passCount
}

// Snapshot returns a plain, scalar-type-erased view of the most recent
// pass's surviving entries, for the introspection HTTP layer (package
// introspect.Source) or any other consumer that shouldn't need to be
// generic over T.
func (e *Engine[T]) Snapshot() (passID string, passNumber int, scanType scanresult.ScanType, entries []Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prev == nil {
		return e.lastPassID, e.passCount, e.lastType, nil
	}
	e.prev.ForEach(func(_ int32, h resultmap.Handle[T]) {
		for _, entry := range h.Result().Elements() {
			entries = append(entries, Entry{Address: entry.Address, Value: fmt.Sprintf("%v", entry.Value)})
		}
	})
	return e.lastPassID, e.passCount, e.lastType, entries
}

// Entry is a type-erased (address, value) match, value already rendered
// to a string so callers need not be generic over the engine's scalar
// type.
type Entry struct {
	Address uint64
	Value   string
}

// enumerateRegions implements spec.md §4.G.1: walk [lo, hi) querying
// the target, clamping each region to the range, and keeping only
// committed, non-file-mapped, writable regions.
func (e *Engine[T]) enumerateRegions() []*region.Region {
	lo, hi, err := e.os.RangeBounds(e.pid)
	if err != nil {
		e.logs.Printf("SCAN: range_bounds failed: %v", err)
		return nil
	}

	const writableMask = osproc.ProtWrite

	var out []*region.Region
	cursor := lo
	for cursor < hi {
		info, ok := e.os.EnumerateRegion(e.pid, cursor)
		if !ok {
			break
		}

		base, size := info.Base, info.Size
		end := base + size
		if base < lo {
			base = lo
		}
		if end > hi {
			end = hi
		}
		if end <= base {
			cursor = info.Base + info.Size
			if cursor <= info.Base {
				break
			}
			continue
		}

		if info.Committed && !info.FileMapped && (info.Protection&writableMask) != 0 {
			prot := region.Protection(info.Protection)
			r := region.New(e.regionStore, base, end-base, prot, info.Committed, info.FileMapped)
			out = append(out, r)
		}

		cursor = info.Base + info.Size
		if cursor <= info.Base {
			break // non-advancing region; avoid an infinite loop
		}
	}
	return out
}

// seedPass implements spec.md §4.G.3.
func (e *Engine[T]) seedPass(t scanresult.ScanType, v1, v2 T, regions []*region.Region) int {
	fresh := resultmap.New[T]()
	total := 0

	for idx, r := range regions {
		if !r.ReadFromTarget(e.readerFor()) {
			continue
		}

		index := int32(idx)

		if t == scanresult.UnknownValue {
			r.Dump(true)
			res := scanresult.New[T](e.resultStore, r, index, scanresult.UnknownValue)
			fresh.Insert(index, res)
			continue
		}

		res := scanresult.New[T](e.resultStore, r, index, t)
		cmp := comparator.For[T](t)
		if res.SearchValue(cmp, v1, v2) {
			total += res.Len()
			fresh.Insert(index, res)
		}
	}

	e.prev = fresh
	return total
}

// priorEntry is one node of the base-address-ordered index built fresh
// for every next pass, backing the overlap join in §4.G.4/§8.6.
type priorEntry[T comparator.Numeric] struct {
	base, end uint64
	index     int32
	handle    resultmap.Handle[T]
}

// nextPass implements spec.md §4.G.4 and the strict overlap predicate
// of §8.6 (SPEC_FULL supplemented feature 5: the redesigned join,
// preferred over the original's lockstep-per-key version).
func (e *Engine[T]) nextPass(t scanresult.ScanType, v1, v2 T, regions []*region.Region) int {
	prior := e.prev

	bt := btree.NewG(32, func(a, b priorEntry[T]) bool { return a.base < b.base })
	prior.ForEach(func(key int32, h resultmap.Handle[T]) {
		res := h.Result()
		bt.ReplaceOrInsert(priorEntry[T]{
			base:   res.Region.Base,
			end:    res.Region.Base + res.Region.Size,
			index:  key,
			handle: h,
		})
	})

	fresh := resultmap.New[T]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	dispatchSeq := 0

	for _, r := range regions {
		// Erase any old entries that end strictly before r's base; they
		// no longer correspond to any current writable region.
		for {
			min, ok := bt.Min()
			if !ok || min.end >= r.Base {
				break
			}
			bt.DeleteMin()
		}

		min, ok := bt.Min()
		if !ok || !(min.base < r.Base+r.Size) {
			continue // no overlap: r pairs with nothing
		}
		bt.DeleteMin()

		old := min.handle.Result()
		oldIndex := min.index
		dispatchSeq++
		seq := dispatchSeq

		wg.Add(1)
		e.join.Dispatch(seq, func() {
			defer wg.Done()
			defer min.handle.Release()

			n := e.joinPair(t, v1, v2, old, oldIndex, r, fresh)
			if n > 0 {
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}, 0)
	}

	wg.Wait()
	e.prev = fresh
	return total
}

// joinPair implements the per-pair body of spec.md §4.G.4 steps 1–5,
// returning the number of entries appended to the new result (0 if the
// pair produced nothing or the read failed).
func (e *Engine[T]) joinPair(t scanresult.ScanType, v1, v2 T, old *scanresult.Result[T], oldIndex int32, r *region.Region, fresh *resultmap.Map[T]) int {
	if !r.ReadFromTarget(e.readerFor()) {
		return 0
	}

	newRes := scanresult.New[T](e.resultStore, r, oldIndex, t)

	relative := comparator.IsRelative(t)
	var cmp scanresult.Comparator[T]
	if t == scanresult.IncreasedBy || t == scanresult.DecreasedBy {
		cmp = comparator.Delta[T](t)
	} else {
		cmp = comparator.For[T](t)
	}

	appended := 0
	visit := func(oldValue T, address uint64) {
		newPtr := region.AtAddress[T](r, address)
		if newPtr == nil {
			return
		}
		newValue := *newPtr

		var ok bool
		if relative {
			ok = cmp(newValue, oldValue, v1)
		} else {
			ok = cmp(newValue, v1, v2)
		}
		if ok {
			newRes.AddElement(scanresult.Entry[T]{Value: newValue, Address: address})
			appended++
		}
	}

	if old.Type == scanresult.UnknownValue {
		count := region.ElementCount[T](old.Region)
		for i := 0; i < count; i++ {
			valPtr := region.AtIndex[T](old.Region, i)
			if valPtr == nil {
				continue
			}
			addr := old.Region.Base + uint64(i)*elemSize[T]()
			visit(*valPtr, addr)
		}
	} else {
		for _, entry := range old.Elements() {
			visit(entry.Value, entry.Address)
		}
	}

	if appended > 0 {
		fresh.Insert(oldIndex, newRes)
	}
	return appended
}

func elemSize[T any]() uint64 {
	var z T
	return uint64(unsafe.Sizeof(z))
}

// readerFor adapts the engine's osproc.Collaborator into a
// region.Reader closure bound to e.pid.
func (e *Engine[T]) readerFor() region.Reader {
	return func(base uint64, buf []byte, size int) (bool, int) {
		return e.os.ReadRemote(e.pid, base, buf[:size])
	}
}
