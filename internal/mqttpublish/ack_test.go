package mqttpublish

import (
	"testing"

	"github.com/ibs-source/threadpool/golang/internal/domain"
)

func TestParseAckValid(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected domain.AckMessage
	}{
		{
			name:     "ack true",
			payload:  []byte(`{"id":"job-123","ack":true}`),
			expected: domain.AckMessage{ID: "job-123", Ack: true},
		},
		{
			name:     "ack false",
			payload:  []byte(`{"id":"job-456","ack":false}`),
			expected: domain.AckMessage{ID: "job-456", Ack: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := ParseAck(tt.payload)
			if err != nil {
				t.Fatalf("ParseAck() failed: %v", err)
			}
			if ack.ID != tt.expected.ID || ack.Ack != tt.expected.Ack {
				t.Errorf("ParseAck() = %+v, want %+v", ack, tt.expected)
			}
		})
	}
}

func TestParseAckMissingID(t *testing.T) {
	_, err := ParseAck([]byte(`{"ack":true}`))
	if err == nil {
		t.Fatal("expected error for missing id field")
	}
}

func TestParseAckInvalidJSON(t *testing.T) {
	_, err := ParseAck([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestServerNameFromBroker(t *testing.T) {
	cases := map[string]string{
		"tcp://broker.example:1883":  "broker.example",
		"ssl://broker.example:8883":  "broker.example",
		"broker.example:1883":        "broker.example",
		"broker.example":             "broker.example",
	}
	for broker, want := range cases {
		if got := serverNameFromBroker(broker); got != want {
			t.Errorf("serverNameFromBroker(%q) = %q, want %q", broker, got, want)
		}
	}
}

func TestClampTick(t *testing.T) {
	if got := clampTick(0); got <= 0 {
		t.Errorf("clampTick(0) = %v, want a positive floor value", got)
	}
	if got := clampTick(10 * 1_000_000_000); got > 500_000_000 {
		t.Errorf("clampTick(10s) = %v, want capped at 500ms", got)
	}
}
