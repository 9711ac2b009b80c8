package amqp

import (
	"encoding/json"
	"time"
)

// DatasetIngestMessage asks the worker to load one dataset file. It carries
// only the path and provenance; the worker reads the file itself.
type DatasetIngestMessage struct {
	Path      string    `json:"path"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetIngestMessage creates an ingest request for the given file.
func NewDatasetIngestMessage(path, source string) *DatasetIngestMessage {
	return &DatasetIngestMessage{
		Path:      path,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *DatasetIngestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetIngestMessageFromJSON creates a message from JSON bytes.
func DatasetIngestMessageFromJSON(data []byte) (*DatasetIngestMessage, error) {
	var msg DatasetIngestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DatasetRefreshedMessage announces that the stored dataset changed, so
// consumers (like the dashboard) can drop cached views.
type DatasetRefreshedMessage struct {
	Files     []string  `json:"files"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetRefreshedMessage creates a refresh notification.
func NewDatasetRefreshedMessage(files []string, records int) *DatasetRefreshedMessage {
	return &DatasetRefreshedMessage{
		Files:     files,
		Records:   records,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *DatasetRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetRefreshedMessageFromJSON creates a message from JSON bytes.
func DatasetRefreshedMessageFromJSON(data []byte) (*DatasetRefreshedMessage, error) {
	var msg DatasetRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
