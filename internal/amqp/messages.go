package amqp

import (
	"encoding/json"
	"time"
)

// RecordAppendedMessage tells the mirror worker a ledger row landed in
// SQLite. It carries only the ID; the worker fetches the full record.
type RecordAppendedMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordAppendedMessage(id int64) *RecordAppendedMessage {
	return &RecordAppendedMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *RecordAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordAppendedMessageFromJSON(data []byte) (*RecordAppendedMessage, error) {
	var msg RecordAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
