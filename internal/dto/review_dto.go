package dto

import (
	"time"

	"github.com/google/uuid"
)

type GradeCardRequest struct {
	CardId uuid.UUID `json:"card_id" validate:"required"`
	Grade  *int      `json:"grade" validate:"required"`
}

type EnrollDocumentResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
	Enrolled   int       `json:"enrolled"`
}

type DueCardsRequest struct {
	DocumentId string `query:"document_id" validate:"omitempty,uuid"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

type SRSStateResponse struct {
	CardId       uuid.UUID  `json:"card_id"`
	EaseFactor   float64    `json:"ease_factor"`
	IntervalDays int        `json:"interval_days"`
	Repetitions  int        `json:"repetitions"`
	DueDate      *time.Time `json:"due_date"`
	LastReviewed *time.Time `json:"last_reviewed"`
	LastGrade    *int       `json:"last_grade"`
	Due          bool       `json:"due"`
	Overdue      bool       `json:"overdue"`
}

type DueCardResponse struct {
	Card  CardResponse     `json:"card"`
	State SRSStateResponse `json:"state"`
}
