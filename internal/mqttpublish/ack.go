package mqttpublish

import (
	"encoding/json"
	"fmt"

	"github.com/ibs-source/threadpool/golang/internal/domain"
)

// ParseAck decodes an acknowledgment payload received on the ack topic.
func ParseAck(payload []byte) (domain.AckMessage, error) {
	var ack domain.AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return domain.AckMessage{}, fmt.Errorf("parse ack: %w", err)
	}
	if ack.ID == "" {
		return domain.AckMessage{}, fmt.Errorf("ack missing required field: id")
	}
	return ack, nil
}
