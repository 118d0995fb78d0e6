package domain

import (
	"bytes"
	"sync"
)

// AckMessage is the acknowledgment envelope a downstream consumer publishes
// back after a job: {"id": "...", "ack": true}.
type AckMessage struct {
	ID  string `json:"id"`
	Ack bool   `json:"ack"`
}

// BufferPool recycles bytes.Buffer values. The pipeline does not draw from
// it; job payloads are encoded by pkg/jsonx.
var BufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}
