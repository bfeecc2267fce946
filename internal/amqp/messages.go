package amqp

import (
	"encoding/json"
	"time"
)

// QuoteSyncMessage asks the worker to export a saved quote. It only carries
// the ID and version; the worker reads the full quote from the database.
type QuoteSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewQuoteSyncMessage creates a new sync message with just ID and version
func NewQuoteSyncMessage(id, version int64) *QuoteSyncMessage {
	return &QuoteSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *QuoteSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QuoteSyncMessageFromJSON creates a message from JSON bytes
func QuoteSyncMessageFromJSON(data []byte) (*QuoteSyncMessage, error) {
	var msg QuoteSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
