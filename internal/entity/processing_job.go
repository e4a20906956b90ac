package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingJob records one processing attempt for a document.
type ProcessingJob struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Status       string
	Stage        *string
	ErrorMessage *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
