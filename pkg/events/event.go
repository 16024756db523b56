package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentProcessing = "DOCUMENT_PROCESSING"
	DocumentCompleted  = "DOCUMENT_COMPLETED"
	DocumentFailed     = "DOCUMENT_FAILED"
	DocumentDeleted    = "DOCUMENT_DELETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func newDocumentEvent(eventType string, documentID uuid.UUID, jobID string, data map[string]interface{}) BaseEvent {
	payload := map[string]interface{}{"document_id": documentID.String()}
	if jobID != "" {
		payload["job_id"] = jobID
	}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
}

func NewDocumentProcessing(documentID uuid.UUID, jobID string, attempt int) BaseEvent {
	return newDocumentEvent(DocumentProcessing, documentID, jobID, map[string]interface{}{"attempt": attempt})
}

func NewDocumentCompleted(documentID uuid.UUID, jobID string, counts map[string]interface{}) BaseEvent {
	return newDocumentEvent(DocumentCompleted, documentID, jobID, counts)
}

func NewDocumentFailed(documentID uuid.UUID, jobID, stage, message string) BaseEvent {
	return newDocumentEvent(DocumentFailed, documentID, jobID, map[string]interface{}{
		"stage": stage,
		"error": message,
	})
}

func NewDocumentDeleted(documentID uuid.UUID) BaseEvent {
	return newDocumentEvent(DocumentDeleted, documentID, "", nil)
}
