// Package worker implements the deferred processor (component F): a
// single worker backed by a max-priority queue, and a fixed-size pool of
// processors used as a trivial fan-out mechanism with no work stealing.
package worker

import (
	"container/heap"
	"sync"
)

// Task is a unit of deferred work. Tasks must not block on the same
// processor they were submitted to.
type Task func()

type operation struct {
	priority int
	task     Task
	seq      int64 // FIFO tiebreak among equal priorities
}

type operationQueue []*operation

func (q operationQueue) Len() int { return len(q) }
func (q operationQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority // max-heap
	}
	return q[i].seq < q[j].seq
}
func (q operationQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *operationQueue) Push(x any)   { *q = append(*q, x.(*operation)) }
func (q *operationQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Processor is a single worker draining a max-priority queue of tasks.
// On Shutdown it drains whatever is already queued before its goroutine
// exits; AddOperation after Shutdown is a no-op.
type Processor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    operationQueue
	done     bool
	nextSeq  int64
	wg       sync.WaitGroup
	shutdown sync.Once
}

// NewProcessor starts a Processor's worker goroutine.
func NewProcessor() *Processor {
	p := &Processor{}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Processor) run() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.done {
			p.cond.Wait()
		}
		if p.done && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		op := heap.Pop(&p.queue).(*operation)
		p.mu.Unlock()

		op.task()
	}
}

// AddOperation enqueues task under priority (higher runs first among
// pending tasks) and wakes the worker.
func (p *Processor) AddOperation(task Task, priority int) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	seq := p.nextSeq
	p.nextSeq++
	heap.Push(&p.queue, &operation{priority: priority, task: task, seq: seq})
	p.mu.Unlock()
	p.cond.Signal()
}

// Shutdown signals the worker to drain its queue and exit, then blocks
// until it has done so.
func (p *Processor) Shutdown() {
	p.shutdown.Do(func() {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
		p.cond.Broadcast()
	})
	p.wg.Wait()
}

// Pool is a fixed-size array of Processors used as a trivial worker
// pool: the i-th unit of work is dispatched to processor i mod N, with
// no work stealing (spec.md §4.F, §5).
type Pool struct {
	procs []*Processor
}

// NewPool starts size Processors.
func NewPool(size int) *Pool {
	procs := make([]*Processor, size)
	for i := range procs {
		procs[i] = NewProcessor()
	}
	return &Pool{procs: procs}
}

// Dispatch submits task, pinned to processor index mod the pool size.
func (p *Pool) Dispatch(index int, task Task, priority int) {
	n := len(p.procs)
	p.procs[((index%n)+n)%n].AddOperation(task, priority)
}

// Size returns the number of processors in the pool.
func (p *Pool) Size() int { return len(p.procs) }

// Shutdown drains and stops every processor in the pool.
func (p *Pool) Shutdown() {
	for _, proc := range p.procs {
		proc.Shutdown()
	}
}
