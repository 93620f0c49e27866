package engine

import (
	"runtime"
	"sort"
	"sync"

	"github.com/calebgr/tracedbg/internal/errors"
	"github.com/calebgr/tracedbg/pkg/types"
)

// Coordinator is the process-wide registry mapping traced threads to their
// execution contexts and session-stable numbers, and the implementation of
// the cooperative suspend-all/resume-all protocol.
//
// A single lock guards all bookkeeping. Parking itself happens on the
// condition variable, which releases the lock while waiting, so a thread
// parking itself can never deadlock against another thread resuming it.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	contexts map[types.ThreadKey]*ExecutionContext
	numbers  map[int]types.ThreadKey
	nextNum  int

	parked map[types.ThreadKey]bool

	// current is the last context that halted; protocol commands that do
	// not name a thread target it.
	current *ExecutionContext

	// haltOwner is the one thread currently running the controller's
	// command loop. Other halting threads park until it releases.
	haltOwner *ExecutionContext
}

// NewCoordinator creates an empty thread registry.
func NewCoordinator() *Coordinator {
	c := &Coordinator{
		contexts: make(map[types.ThreadKey]*ExecutionContext),
		numbers:  make(map[int]types.ThreadKey),
		nextNum:  1,
		parked:   make(map[types.ThreadKey]bool),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Context returns the execution context for the given thread, creating it
// on first observation. Numbers are assigned in first-seen order starting
// at 1 and are never reused within a session.
func (c *Coordinator) Context(key types.ThreadKey) *ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ec, ok := c.contexts[key]; ok {
		return ec
	}
	ec := newExecutionContext(key, c.nextNum)
	c.numbers[c.nextNum] = key
	c.nextNum++
	c.contexts[key] = ec
	return ec
}

// Lookup returns the context for a thread without creating one.
func (c *Coordinator) Lookup(key types.ThreadKey) *ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contexts[key]
}

// ByNumber resolves a thread number to its context. Unknown numbers yield
// a no-such-thread error and leave the coordinator untouched.
func (c *Coordinator) ByNumber(num int) (*ExecutionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.numbers[num]
	if !ok {
		return nil, errors.NoSuchThread(num)
	}
	ec, ok := c.contexts[key]
	if !ok {
		return nil, errors.NoSuchThread(num)
	}
	return ec, nil
}

// Drop removes a terminated thread's context. Its number is not reused.
func (c *Coordinator) Drop(key types.ThreadKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.key == key {
		c.current = nil
	}
	delete(c.contexts, key)
	delete(c.parked, key)
}

// Threads returns the known contexts ordered by thread number.
func (c *Coordinator) Threads() []*ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*ExecutionContext, 0, len(c.contexts))
	for _, ec := range c.contexts {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].num < out[j].num })
	return out
}

// SetCurrent records the thread that just halted.
func (c *Coordinator) SetCurrent(ec *ExecutionContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = ec
}

// Current returns the last thread that halted, or nil.
func (c *Coordinator) Current() *ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ResumeAll clears every pending suspend request and wakes every parked
// thread.
func (c *Coordinator) ResumeAll() {
	c.mu.Lock()
	for _, ec := range c.contexts {
		ec.suspendRequested = false
	}
	for key := range c.parked {
		delete(c.parked, key)
	}
	c.cond.Broadcast()
	c.mu.Unlock()
	runtime.Gosched()
}

// AcquireHalt blocks until the caller is the session's single halting
// thread, then requests every other thread to park at its next
// checkpoint. While another thread owns the halt, or while a suspend of
// the caller is already pending, the caller parks and retries on wake, so
// at most one thread at a time runs the controller's command loop. The
// ownership test and the parking happen under one lock, so a release
// between the test and the park cannot be missed.
func (c *Coordinator) AcquireHalt(ec *ExecutionContext) {
	c.mu.Lock()
	for c.haltOwner != nil || ec.suspendRequested {
		ec.suspendRequested = false
		c.parked[ec.key] = true
		for c.parked[ec.key] {
			c.cond.Wait()
		}
	}
	c.haltOwner = ec
	for _, other := range c.contexts {
		if other != ec {
			other.suspendRequested = true
		}
	}
	c.mu.Unlock()
	runtime.Gosched()
}

// ReleaseHalt gives up halt ownership, clears every pending suspend
// request and wakes every parked thread. A parked thread that halted on
// its own account re-enters AcquireHalt and re-halts.
func (c *Coordinator) ReleaseHalt(ec *ExecutionContext) {
	c.mu.Lock()
	if c.haltOwner == ec {
		c.haltOwner = nil
	}
	for _, other := range c.contexts {
		other.suspendRequested = false
	}
	for key := range c.parked {
		delete(c.parked, key)
	}
	c.cond.Broadcast()
	c.mu.Unlock()
	runtime.Gosched()
}

// Checkpoint is the suspend sampling point, reached only from the tracer's
// line/call handling. If a suspend was requested the calling thread parks
// itself and blocks until resumed.
func (c *Coordinator) Checkpoint(ec *ExecutionContext) {
	c.mu.Lock()
	if !ec.suspendRequested {
		c.mu.Unlock()
		return
	}
	ec.suspendRequested = false
	c.parked[ec.key] = true
	for c.parked[ec.key] {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// ParkedCount returns the number of currently parked threads.
func (c *Coordinator) ParkedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.parked)
}
