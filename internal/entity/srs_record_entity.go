package entity

import (
	"time"

	"github.com/google/uuid"
)

type SRSRecord struct {
	Id           uuid.UUID
	CardId       uuid.UUID
	UserId       *uuid.UUID
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
	DueDate      *time.Time
	LastReviewed *time.Time
	LastGrade    *int
	Version      int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
