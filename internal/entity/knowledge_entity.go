package entity

import (
	"time"

	"github.com/google/uuid"
)

type Anchor struct {
	Page         int         `json:"page"`
	Position     int         `json:"position"`
	BBox         BoundingBox `json:"bbox"`
	ChapterTitle string      `json:"chapter_title,omitempty"`
}

type Knowledge struct {
	Id         uuid.UUID
	ChapterId  uuid.UUID
	Kind       string
	Text       string
	Entities   []string
	Anchor     Anchor
	Language   string
	Embedding  []float32
	Confidence float64
	CreatedAt  time.Time
}

// ScoredKnowledge carries the cosine distance of a similarity hit.
type ScoredKnowledge struct {
	Knowledge *Knowledge
	Distance  float64
}
