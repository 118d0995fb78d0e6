package redisjobs

import (
	"encoding/json"
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func makeStreamsWithPayload(id string, payload interface{}) []goredis.XStream {
	return []goredis.XStream{
		{
			Stream: "s1",
			Messages: []goredis.XMessage{
				{ID: id, Values: map[string]interface{}{"payload": payload}},
			},
		},
	}
}

func TestConvertXStreamsPayloadString(t *testing.T) {
	jsonStr := `{"a":1,"b":"x"}`
	streams := makeStreamsWithPayload("1-1", jsonStr)

	jobs := convertXStreams(streams)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	var m map[string]interface{}
	if err := json.Unmarshal(jobs[0].Payload, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if m["a"] != float64(1) || m["b"] != "x" {
		t.Fatalf("unexpected payload: %#v", m)
	}
	if jobs[0].ID != "1-1" {
		t.Fatalf("expected id 1-1, got %s", jobs[0].ID)
	}
	if jobs[0].Stream != "s1" {
		t.Fatalf("expected stream s1, got %s", jobs[0].Stream)
	}
	if jobs[0].Timestamp.IsZero() {
		t.Fatalf("expected non-zero timestamp")
	}
}

func TestConvertXStreamsPayloadBytes(t *testing.T) {
	jsonBytes := []byte(`{"c":2,"d":"y"}`)
	streams := makeStreamsWithPayload("1-2", jsonBytes)

	jobs := convertXStreams(streams)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if string(jobs[0].Payload) != string(jsonBytes) {
		t.Fatalf("expected zero-copy passthrough, got %s", jobs[0].Payload)
	}
}

func TestConvertXStreamsPayloadNonJSONString(t *testing.T) {
	streams := makeStreamsWithPayload("1-3", "plain text")

	jobs := convertXStreams(streams)
	var s string
	if err := json.Unmarshal(jobs[0].Payload, &s); err != nil {
		t.Fatalf("expected payload re-encoded as a JSON string, got %s: %v", jobs[0].Payload, err)
	}
	if s != "plain text" {
		t.Fatalf("expected \"plain text\", got %q", s)
	}
}

func TestConvertXStreamsNoPayloadField(t *testing.T) {
	streams := []goredis.XStream{
		{
			Stream: "s1",
			Messages: []goredis.XMessage{
				{ID: "1-4", Values: map[string]interface{}{"foo": "bar"}},
			},
		},
	}

	jobs := convertXStreams(streams)
	var m map[string]interface{}
	if err := json.Unmarshal(jobs[0].Payload, &m); err != nil {
		t.Fatalf("unmarshal fallback payload: %v", err)
	}
	if m["foo"] != "bar" {
		t.Fatalf("unexpected fallback payload: %#v", m)
	}
}

func TestIsTransientRedisError(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"LOADING Redis is loading the dataset in memory", true},
		{"dial tcp: connect: connection refused", true},
		{"i/o timeout", true},
		{"unexpected protocol error", false},
	}
	for _, tc := range cases {
		got := isTransientRedisError(&testErr{tc.msg})
		if got != tc.want {
			t.Errorf("isTransientRedisError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }
