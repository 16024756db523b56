package entity

import (
	"time"

	"github.com/google/uuid"
)

type Card struct {
	Id          uuid.UUID
	KnowledgeId uuid.UUID
	DocumentId  uuid.UUID
	CardType    string
	Front       string
	Back        string
	Difficulty  float64
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
