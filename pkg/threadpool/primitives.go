package threadpool

import (
	"runtime"
	"sync"
)

// goschedHook is the yield() half of the primitive contract
// ("yield() hint"): it lets a spinning goroutine (the destroy drain loop)
// give the scheduler a chance to run other goroutines instead of
// busy-looping uncooperatively.
func goschedHook() {
	runtime.Gosched()
}

// mutex and cond are the primitive layer the spec treats as an external
// collaborator (§1 "assumed available", §6 "primitive contract"). Go's
// runtime supplies them directly as sync.Mutex/sync.Cond, so there is no
// separate primitives package to inject — unlike the thread-spawn half of
// the contract below, which the spec's error taxonomy (E_THREAD) requires
// to be fallible, and Go's `go` statement is not.
type mutex = sync.Mutex
type cond = sync.Cond

// spawner is the thread-creation half of the primitive contract
// (ldap_pvt_thread_create's analogue: "accepting (fn, arg) and returning an
// error code"). NewPoolWithOptions uses realSpawn when none is given, which
// starts a real goroutine and never fails; tests substitute a spawner that fails on command to exercise the
// thread-creation-rollback path described in spec.md §4.2 and §9.
type spawner func(run func()) error

// realSpawn is the default spawner: it always succeeds and runs run on a
// new goroutine.
func realSpawn(run func()) error {
	go run()
	return nil
}
