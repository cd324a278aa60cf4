package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventMedicoCreated = "medico_created"
	EventMedicoUpdated = "medico_updated"
	EventMedicoDeleted = "medico_deleted"
)

// MedicoEvent is the change notification published on the medico topic.
// Data is the record as stored after the change, or as it was before a delete.
type MedicoEvent struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	Data       Medico    `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewMedicoEvent(event string, medico Medico) MedicoEvent {
	return MedicoEvent{
		ID:         uuid.NewString(),
		Event:      event,
		Data:       medico,
		OccurredAt: time.Now().UTC(),
	}
}
