// Package amqp carries budget load jobs between the publishing command
// and the ingestion worker over RabbitMQ: a direct exchange bound to a
// durable queue, persistent messages, manual acknowledgement.
package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Load-job sources.
const (
	SourceCSV   = "csv"
	SourceSheet = "sheet"
)

// LoadJobMessage asks the worker to load one year of payments for an
// entity. The worker resolves or creates the entity from its name, level
// and language; an existing budget for the year is replaced.
type LoadJobMessage struct {
	EntityName  string `json:"entity_name"`
	EntityLevel string `json:"entity_level"`
	Language    string `json:"language"`
	Year        int    `json:"year"`

	// Source selects where the payment rows come from: a CSV file
	// reachable from the worker, or a published Google spreadsheet.
	Source     string `json:"source"`
	Path       string `json:"path,omitempty"`
	SheetID    string `json:"sheet_id,omitempty"`
	SheetRange string `json:"sheet_range,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewLoadJobMessage creates a load-job message stamped with the current
// time.
func NewLoadJobMessage(entityName, entityLevel, language string, year int, source string) *LoadJobMessage {
	return &LoadJobMessage{
		EntityName:  entityName,
		EntityLevel: entityLevel,
		Language:    language,
		Year:        year,
		Source:      source,
		Timestamp:   time.Now(),
	}
}

// Validate checks the message is actionable before it is published or
// handled.
func (m *LoadJobMessage) Validate() error {
	if m.EntityName == "" {
		return errors.New("load job: entity name is required")
	}
	if m.Year < 1 {
		return errors.New("load job: year is required")
	}
	switch m.Source {
	case SourceCSV:
		if m.Path == "" {
			return errors.New("load job: csv source requires a path")
		}
	case SourceSheet:
		if m.SheetID == "" {
			return errors.New("load job: sheet source requires a sheet id")
		}
	default:
		return errors.New("load job: unknown source " + m.Source)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LoadJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LoadJobMessageFromJSON creates a message from JSON bytes
func LoadJobMessageFromJSON(data []byte) (*LoadJobMessage, error) {
	var msg LoadJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
