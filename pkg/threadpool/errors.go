package threadpool

import "errors"

// Sentinel errors returned by pool operations. Each corresponds to one of
// the error codes in the original source's taxonomy; Go's error interface
// is the "stronger API" that taxonomy anticipated in place of a bare -1.
var (
	// ErrShutdown is returned by Submit after the pool has begun shutting down.
	ErrShutdown = errors.New("threadpool: pool is shutting down")

	// ErrBackpressure is returned by Submit when the pending queue is at capacity.
	ErrBackpressure = errors.New("threadpool: pending queue at capacity")

	// ErrAlloc is returned when pool or work-item allocation fails.
	ErrAlloc = errors.New("threadpool: allocation failed")

	// ErrPrimitive is returned when a concurrency primitive fails to initialize.
	ErrPrimitive = errors.New("threadpool: primitive initialization failed")

	// ErrThread is returned when worker creation failed and no existing
	// worker can service the submitted item; the item is rolled back and freed.
	ErrThread = errors.New("threadpool: worker creation failed")

	// ErrUnknown is returned by Destroy when the handle is not in the registry.
	ErrUnknown = errors.New("threadpool: unknown pool handle")
)
