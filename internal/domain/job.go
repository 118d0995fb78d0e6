// Package domain contains the core job type and shared metrics for the
// pool-backed pipeline.
package domain

import (
	"sync"
	"time"
)

// Job is one unit of work pulled from the job source and handed to the
// thread pool: a Redis stream entry awaiting processing and publication.
type Job struct {
	ID        string
	Stream    string
	Timestamp time.Time
	Payload   []byte
	Attempts  int32
}

// Reset clears j for reuse by a pool that recycles Job records instead of
// allocating a fresh one per stream entry.
func (j *Job) Reset() {
	j.ID = ""
	j.Stream = ""
	j.Timestamp = time.Time{}
	j.Payload = j.Payload[:0]
	j.Attempts = 0
}

// Result is what a completed Job produces: either a payload to publish or
// an error to route to the dead-letter path.
type Result struct {
	Job     Job
	Output  []byte
	Err     error
	Elapsed time.Duration
}

// Succeeded reports whether the job reached its publisher without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// JobPool recycles Job records between the consumer-group reader, which
// allocates one per stream entry, and the pipeline, which returns it once
// the job has been acked or dead-lettered.
var JobPool = sync.Pool{
	New: func() interface{} {
		return new(Job)
	},
}

// GetJob returns a zeroed Job from JobPool.
func GetJob() *Job {
	return JobPool.Get().(*Job)
}

// PutJob resets j and returns it to JobPool.
func PutJob(j *Job) {
	j.Reset()
	JobPool.Put(j)
}
