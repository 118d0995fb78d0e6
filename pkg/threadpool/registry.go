package threadpool

import "sync"

// registry is the process-wide set of live pools, mutated only by NewPool,
// Destroy, and Shutdown, and guarded by its own mutex — independent of any
// pool's mutex and of the global free list's mutex (spec.md §5's "lock
// order" note: the registry mutex must never be held while acquiring a
// pool mutex).
type registry struct {
	mu    sync.Mutex
	pools []*Pool
}

func (r *registry) add(p *Pool) {
	r.mu.Lock()
	r.pools = append(r.pools, p)
	r.mu.Unlock()
}

// remove deletes p from the registry, returning whether it was present.
func (r *registry) remove(p *Pool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.pools {
		if q == p {
			r.pools = append(r.pools[:i], r.pools[i+1:]...)
			return true
		}
	}
	return false
}

// drain removes and returns every pool currently registered, leaving the
// registry empty. Used by Shutdown.
func (r *registry) drain() []*Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pools := r.pools
	r.pools = nil
	return pools
}

// Process-wide singletons, initialized by Startup and torn down by
// Shutdown. Modeled as package-level state behind an explicit
// Startup/Shutdown pair rather than a hidden static constructor, per
// spec.md §9's design note on global mutable state.
var (
	globalOnce     sync.Once
	globalRegistry *registry
	globalFreeList *freeList
)

// Startup initializes the process-wide pool registry and work-item free
// list. Idempotent per process; safe to call more than once.
func Startup() error {
	globalOnce.Do(func() {
		globalRegistry = &registry{}
		globalFreeList = &freeList{}
	})
	return nil
}

// Shutdown destroys every live pool (as if by Destroy(runPending=false)),
// drains the global work-item free list, and resets process-wide state so
// a later Startup starts clean.
func Shutdown() error {
	ensureStarted()

	for _, p := range globalRegistry.drain() {
		_ = p.destroyRegistered(false)
	}
	globalFreeList.drain()

	globalOnce = sync.Once{}
	globalRegistry = nil
	globalFreeList = nil
	return nil
}

// ensureStarted lazily performs Startup so callers that skip the explicit
// call (acceptable for a library used as a single import, unlike the
// fork-sensitive C original) still get working global state.
func ensureStarted() {
	globalOnce.Do(func() {
		globalRegistry = &registry{}
		globalFreeList = &freeList{}
	})
}
