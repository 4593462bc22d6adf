package worker

import (
	"sync"
	"testing"
	"time"
)

func TestProcessorRunsHighestPriorityFirst(t *testing.T) {
	p := NewProcessor()
	defer p.Shutdown()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(3)

	// Block the worker on a gate until all three tasks are queued, so
	// priority ordering is deterministic regardless of scheduling speed.
	gate := make(chan struct{})
	p.AddOperation(func() {
		<-gate
	}, 100)

	record := func(n int) Task {
		return func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		}
	}
	p.AddOperation(record(1), 1)
	p.AddOperation(record(2), 3)
	p.AddOperation(record(3), 2)

	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 2 || order[1] != 3 || order[2] != 1 {
		t.Fatalf("expected priority order [2,3,1], got %v", order)
	}
}

func TestProcessorFIFOTiebreak(t *testing.T) {
	p := NewProcessor()
	defer p.Shutdown()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	gate := make(chan struct{})
	p.AddOperation(func() { <-gate }, 0)

	for i := 1; i <= 3; i++ {
		n := i
		p.AddOperation(func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		}, 5)
	}

	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("expected FIFO order [1,2,3] among equal priorities, got %v", order)
		}
	}
}

func TestProcessorShutdownDrainsQueue(t *testing.T) {
	p := NewProcessor()

	var ran int32
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		p.AddOperation(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}, 0)
	}
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if ran != 5 {
		t.Fatalf("expected all 5 queued tasks to run before shutdown returns, got %d", ran)
	}
}

func TestProcessorAddAfterShutdownIsNoop(t *testing.T) {
	p := NewProcessor()
	p.Shutdown()

	done := make(chan struct{})
	p.AddOperation(func() { close(done) }, 0)

	select {
	case <-done:
		t.Fatal("task submitted after Shutdown should never run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoolDispatchPinsByIndexModN(t *testing.T) {
	pool := NewPool(4)
	defer pool.Shutdown()

	if pool.Size() != 4 {
		t.Fatalf("expected pool size 4, got %d", pool.Size())
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int]bool{}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Dispatch(i, func() {
			mu.Lock()
			seen[i%4] = true
			mu.Unlock()
			wg.Done()
		}, 0)
	}
	wg.Wait()

	for k, proc := range pool.procs {
		proc.mu.Lock()
		got := proc.nextSeq
		proc.mu.Unlock()
		if got != 2 {
			t.Fatalf("expected processor %d to receive exactly indices %d and %d, got %d tasks", k, k, k+4, got)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("expected work for all 4 index classes mod 4, got %d", len(seen))
	}
}

func TestPoolDispatchNegativeIndex(t *testing.T) {
	pool := NewPool(3)
	defer pool.Shutdown()

	done := make(chan struct{})
	pool.Dispatch(-1, func() { close(done) }, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("negative index dispatch should still resolve to a valid processor")
	}
}
