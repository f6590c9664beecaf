package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// DatasetReloadedMessage announces that a transaction snapshot was replaced.
// Consumers drop their cached copy of Source and reload on next use.
type DatasetReloadedMessage struct {
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Skipped   int       `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDatasetReloadedMessage(source string, rows, skipped int) *DatasetReloadedMessage {
	return &DatasetReloadedMessage{
		Source:    source,
		Rows:      rows,
		Skipped:   skipped,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetReloadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetReloadedMessageFromJSON decodes a message and checks it names a source.
func DatasetReloadedMessageFromJSON(data []byte) (*DatasetReloadedMessage, error) {
	var msg DatasetReloadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, errors.New("dataset reloaded message without source")
	}
	return &msg, nil
}
