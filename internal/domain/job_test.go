package domain

import (
	"errors"
	"testing"
	"time"
)

func TestJobReset(t *testing.T) {
	j := &Job{
		ID:        "1-1",
		Stream:    "s",
		Timestamp: time.Now(),
		Payload:   []byte(`{"a":1}`),
		Attempts:  3,
	}

	j.Reset()

	if j.ID != "" || j.Stream != "" || !j.Timestamp.IsZero() || len(j.Payload) != 0 || j.Attempts != 0 {
		t.Fatalf("Reset left stale fields: %#v", j)
	}
}

func TestGetJobPutJobRoundTrip(t *testing.T) {
	j := GetJob()
	j.ID = "1-1"
	j.Attempts = 2

	PutJob(j)

	again := GetJob()
	if again.ID != "" || again.Attempts != 0 {
		t.Fatalf("expected a job drawn from JobPool after PutJob to be reset, got %#v", again)
	}
}

func TestResultSucceeded(t *testing.T) {
	ok := Result{Job: Job{ID: "1-1"}}
	if !ok.Succeeded() {
		t.Fatal("expected Result with nil Err to report success")
	}

	failed := Result{Job: Job{ID: "1-2"}, Err: errors.New("publish failed")}
	if failed.Succeeded() {
		t.Fatal("expected Result with non-nil Err to report failure")
	}
}
