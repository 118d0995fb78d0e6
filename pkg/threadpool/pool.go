// Package threadpool implements a bounded worker thread pool: producers
// submit (function, argument) pairs, a dynamically sized set of worker
// goroutines dequeues and runs them, and the pool supports two distinct
// shutdown modes. It is a line-for-line behavioral port of OpenLDAP's
// ldap_pvt_thread_pool (libraries/libldap_r/tpool.c): one mutex and one
// condition variable per pool, a process-wide free list of recyclable work
// items, and the same spawn/drain policy — expressed with goroutines and
// sync.Mutex/sync.Cond in place of the original's pthread primitives.
package threadpool

import "time"

// state mirrors ldap_int_thread_pool_state.
type state int32

const (
	running state = iota
	finishing
	stopping
)

// Options configures optional, non-default pool behavior.
type Options struct {
	// Keepalive, when positive, lets idle workers exit after sitting idle
	// for this long, provided at least one other worker remains open and
	// no spawn is in flight. Zero disables idle reaping (the spec's
	// default: "idle-thread reaping by timer" is a documented but
	// unimplemented hook in the original; this is that hook, opt-in).
	Keepalive time.Duration

	// spawn overrides the thread-creation primitive; used only by tests
	// to force E_THREAD rollback paths deterministically.
	spawn spawner
}

// Pool is a bounded worker thread pool. The zero value is not usable;
// construct with NewPool.
type Pool struct {
	mu   mutex
	cond cond

	st         state
	maxCount   int
	maxPending int
	keepalive  time.Duration
	spawn      spawner

	pending     pendingQueue
	activeCount int
	openCount   int
	starting    int
}

// NewPool creates a pool with the given worker and pending-queue bounds.
// maxThreads <= 0 means unbounded worker growth; maxPending <= 0 means an
// unbounded pending queue. No worker is pre-spawned — the first worker is
// created lazily on the first Submit. The original source disables eager
// spawning because a pre-spawned thread does not survive a post-init
// fork() on some systems, leaving open_count==1 with no live thread and
// deadlocking shutdown; that rationale doesn't apply to a Go process (no
// fork+exec-free daemonization step), but the lazy-spawn behavior is kept
// to stay a faithful port and because it avoids a worker sitting idle
// before any work exists.
func NewPool(maxThreads, maxPending int) (*Pool, error) {
	return NewPoolWithOptions(maxThreads, maxPending, Options{})
}

// NewPoolWithOptions is NewPool with the optional knobs in Options.
func NewPoolWithOptions(maxThreads, maxPending int, opts Options) (*Pool, error) {
	ensureStarted()

	sp := opts.spawn
	if sp == nil {
		sp = realSpawn
	}

	p := &Pool{
		st:         running,
		maxCount:   maxThreads,
		maxPending: maxPending,
		keepalive:  opts.Keepalive,
		spawn:      sp,
	}
	p.cond.L = &p.mu

	globalRegistry.add(p)

	return p, nil
}

// Submit enqueues (f, arg) for execution by a worker goroutine and, per the
// spawn policy in spec.md §4.2, possibly starts a new worker. It returns
// ErrShutdown if Destroy has begun, ErrBackpressure if the pending queue is
// at capacity, and ErrThread only when worker creation fails AND no
// existing worker can ever service the item (it is rolled back and
// recycled in that case); a worker-creation failure that leaves another
// open worker is tolerated silently, exactly as the original does.
func (p *Pool) Submit(f func(arg any), arg any) error {
	p.mu.Lock()

	if p.st != running {
		p.mu.Unlock()
		return ErrShutdown
	}
	if p.maxPending > 0 && p.pending.count >= p.maxPending {
		p.mu.Unlock()
		return ErrBackpressure
	}

	wi := globalFreeList.get()
	if wi == nil {
		wi = &workItem{}
	}
	wi.f = f
	wi.arg = arg

	p.pending.push(wi)
	p.cond.Signal()

	needThread := (p.openCount <= 0 || p.pending.count > 1 || p.openCount == p.activeCount) &&
		(p.maxCount <= 0 || p.openCount < p.maxCount)

	if !needThread {
		p.mu.Unlock()
		return nil
	}

	p.openCount++
	p.starting++
	p.mu.Unlock()

	err := p.spawn(func() { p.workerMain() })

	p.mu.Lock()
	if err == nil {
		p.starting--
		p.mu.Unlock()
		return nil
	}

	// Thread creation failed: back out of openCount and check whether any
	// worker remains to service the item.
	p.openCount--
	p.starting--
	if p.openCount == 0 {
		if p.pending.remove(wi) {
			// No open threads, and the item is still unhandled: roll it
			// back and free it. The original source's rollback path
			// increments ltp_pending_count here instead of decrementing
			// it — a bug spec.md §9 flags and instructs to fix. This
			// corrected path decrements pending_count to match the
			// removed item, preserving pending_count == len(pending_list).
			p.mu.Unlock()
			globalFreeList.put(wi)
			return ErrThread
		}
	}
	// There is another open worker, so the item will be serviced eventually.
	p.mu.Unlock()
	return nil
}

// SetMaxThreads updates the worker-count bound. Surplus workers exit the
// next time they find the pending queue empty (see workerMain's over-bound
// exit check) rather than being interrupted mid-task.
func (p *Pool) SetMaxThreads(n int) {
	p.mu.Lock()
	p.maxCount = n
	p.mu.Unlock()
}

// Backload returns pending_count + active_count, an instantaneous snapshot
// with no guarantees once the mutex is released. Returns 0 if the pool has
// already been destroyed.
func (p *Pool) Backload() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.count + p.activeCount
}

// Destroy removes the pool from the global registry and shuts it down. If
// runPending is true ("graceful shutdown"), every already-submitted item
// runs to completion before Destroy returns. If false ("stop now"),
// in-flight items finish but queued items are discarded. Returns
// ErrUnknown if the pool was not found in the registry (e.g. Destroy was
// already called on it).
func (p *Pool) Destroy(runPending bool) error {
	if !globalRegistry.remove(p) {
		return ErrUnknown
	}
	return p.destroyRegistered(runPending)
}

// destroyRegistered performs the shutdown sequence assuming the caller has
// already removed p from the registry (Destroy does this itself; Shutdown
// drains the whole registry up front and calls this directly per pool).
func (p *Pool) destroyRegistered(runPending bool) error {
	p.mu.Lock()
	if runPending {
		p.st = finishing
	} else {
		p.st = stopping
	}
	waiting := p.openCount

	// Signal once per open worker, as the original does instead of a
	// broadcast (some target pthread implementations were known to
	// mis-broadcast). sync.Cond.Broadcast would also be correct here.
	for i := 0; i < waiting; i++ {
		p.cond.Signal()
	}
	p.mu.Unlock()

	// Busy-wait on drain rather than a dedicated "last worker out" condvar,
	// portable to primitives lacking a trustworthy broadcast (spec.md §9).
	// Go's scheduler makes this a cheap spin/yield loop, not a cost center.
	for {
		p.mu.Lock()
		open := p.openCount
		p.mu.Unlock()
		if open == 0 {
			break
		}
		yield()
	}

	p.mu.Lock()
	p.pending.clear()
	p.mu.Unlock()

	return nil
}

func yield() {
	// runtime.Gosched, named locally so the drain loop above reads as a
	// hint rather than a busy spin when skimmed.
	goschedHook()
}
