package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published by the API and handled by the worker.
const (
	EventTipsRefresh    = "tips.refresh"
	EventPeriodArchived = "period.archived"
)

// Event is a lightweight domain event. It carries only identifiers; the
// worker loads the full records from the database.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ArchiveID string    `json:"archive_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTipsRefreshEvent(userID string) *Event {
	return &Event{Type: EventTipsRefresh, UserID: userID, Timestamp: time.Now()}
}

func NewPeriodArchivedEvent(userID, archiveID string) *Event {
	return &Event{Type: EventPeriodArchived, UserID: userID, ArchiveID: archiveID, Timestamp: time.Now()}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates an event body.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("event %q: missing user_id", e.Type)
	}
	switch e.Type {
	case EventTipsRefresh:
	case EventPeriodArchived:
		if e.ArchiveID == "" {
			return nil, fmt.Errorf("event %q: missing archive_id", e.Type)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
