package threadpool

// workItem is the recyclable unit of work carried between a submitter and a
// worker. The same record lives on exactly one list at a time: either the
// process-wide free list or a single pool's pending queue. The original C
// implementation unions two link fields (one per list type, STAILQ vs SLIST)
// into the same struct slot to satisfy its queue macros; in Go a single
// `next` pointer already gives the same "on at most one list" invariant
// without the union, so one field does the job of both.
type workItem struct {
	f    func(arg any)
	arg  any
	next *workItem
}

// freeList is the process-wide singly-linked free list of workItem records,
// guarded by its own mutex, independent of any pool's mutex. It is shared
// across every pool in the process so short-lived work-item records are
// recycled instead of repeatedly allocated and garbage collected.
type freeList struct {
	mu   mutex
	head *workItem
}

// get pops the head of the free list, or returns nil if the list is empty.
func (fl *freeList) get() *workItem {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	wi := fl.head
	if wi != nil {
		fl.head = wi.next
		wi.next = nil
	}
	return wi
}

// put pushes wi onto the head of the free list, clearing its payload so a
// stale closure/arg cannot be retained (and so it cannot be mistaken for
// still being on the pending queue).
func (fl *freeList) put(wi *workItem) {
	wi.f = nil
	wi.arg = nil
	fl.mu.Lock()
	wi.next = fl.head
	fl.head = wi
	fl.mu.Unlock()
}

// drain frees every item currently on the free list. Used by Shutdown.
func (fl *freeList) drain() {
	fl.mu.Lock()
	fl.head = nil
	fl.mu.Unlock()
}

// pendingQueue is a FIFO queue of workItems local to one pool. Unlike
// freeList it is not safe for concurrent use on its own: callers hold the
// owning pool's mutex for every operation, matching the "pool mutex guards
// pending_list" invariant in the data model.
type pendingQueue struct {
	head, tail *workItem
	count      int
}

func (q *pendingQueue) push(wi *workItem) {
	wi.next = nil
	if q.tail == nil {
		q.head = wi
		q.tail = wi
	} else {
		q.tail.next = wi
		q.tail = wi
	}
	q.count++
}

func (q *pendingQueue) pop() *workItem {
	wi := q.head
	if wi == nil {
		return nil
	}
	q.head = wi.next
	if q.head == nil {
		q.tail = nil
	}
	wi.next = nil
	q.count--
	return wi
}

// remove deletes wi from the queue if present, returning whether it was
// found. Used only by the thread-creation rollback path in Submit, which
// must remove a specific, just-pushed item rather than the queue head.
func (q *pendingQueue) remove(target *workItem) bool {
	var prev *workItem
	for cur := q.head; cur != nil; prev, cur = cur, cur.next {
		if cur == target {
			if prev == nil {
				q.head = cur.next
			} else {
				prev.next = cur.next
			}
			if cur == q.tail {
				q.tail = prev
			}
			cur.next = nil
			q.count--
			return true
		}
	}
	return false
}

func (q *pendingQueue) clear() {
	q.head = nil
	q.tail = nil
	q.count = 0
}
