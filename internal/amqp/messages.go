package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record lifecycle operations carried on the wire.
const (
	OpCreated = "created"
	OpDeleted = "deleted"
)

// RecordEventMessage tells the export worker that a record changed. The
// payload carries only the id and operation; the worker reads the full
// record from the database, which is the source of truth.
type RecordEventMessage struct {
	RecordID  string    `json:"record_id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEventMessage(recordID, op string) *RecordEventMessage {
	return &RecordEventMessage{
		RecordID:  recordID,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordEventMessage) Validate() error {
	if m.RecordID == "" {
		return fmt.Errorf("record event without record id")
	}
	if m.Op != OpCreated && m.Op != OpDeleted {
		return fmt.Errorf("unknown record event op %q", m.Op)
	}
	return nil
}

func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
