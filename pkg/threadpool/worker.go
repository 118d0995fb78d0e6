package threadpool

import "time"

// workerMain is the body every spawned worker goroutine runs. It mirrors
// ldap_int_thread_pool_wrapper: loop while not stopping, prefer dequeuing
// pending work, fall through to exit checks (drain complete, over the
// lowered max-threads bound, optional idle-timeout reaping), otherwise
// wait on the condvar; execute outside the lock; recycle the work item to
// the global free list; loop.
func (p *Pool) workerMain() {
	p.mu.Lock()

	for p.st != stopping {
		wi := p.pending.pop()
		if wi == nil {
			if p.st == finishing {
				break
			}
			if p.maxCount > 0 && p.openCount > p.maxCount {
				// SetMaxThreads lowered the bound while this worker was
				// already open: let it exit rather than interrupting
				// whatever it may be running (it isn't running anything
				// here — this check only fires while idle).
				break
			}
			if p.st == running {
				timedOut := p.waitIdle()
				// Optional idle-timeout reaping (spec.md §9's documented
				// but unimplemented hook, wired in behind Options.Keepalive):
				// only ever let a worker reap itself if another stays
				// open and no spawn is mid-flight, so the pool never
				// drops to zero runnable workers on its own.
				if timedOut && p.openCount > 1 && p.starting == 0 {
					break
				}
			}
			continue
		}

		p.activeCount++
		p.mu.Unlock()

		wi.f(wi.arg)

		globalFreeList.put(wi)

		p.mu.Lock()
		p.activeCount--
	}

	p.openCount--
	p.mu.Unlock()
}

// waitIdle blocks the calling worker (which must hold p.mu) until signaled
// or, if p.keepalive is positive, until that long has elapsed with no
// signal. Returns true only in the latter case. sync.Cond has no built-in
// timed wait, so a timer goroutine supplies the wakeup; it is a
// conservative approximation of "timedwait elapsed" (a late-arriving
// signal racing the timer is treated as a normal wakeup, not a timeout,
// since the loop re-checks the pending queue either way).
func (p *Pool) waitIdle() bool {
	if p.keepalive <= 0 {
		p.cond.Wait()
		return false
	}

	fired := false
	timer := time.AfterFunc(p.keepalive, func() {
		p.mu.Lock()
		fired = true
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	timer.Stop()
	return fired
}
