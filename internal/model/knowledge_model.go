package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// KnowledgeAnchor points a knowledge row back at its place in the source file.
type KnowledgeAnchor struct {
	Page         int     `json:"page"`
	Position     int     `json:"position"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
}

type Knowledge struct {
	Id         uuid.UUID                           `gorm:"type:uuid;primaryKey"`
	ChapterId  uuid.UUID                           `gorm:"type:uuid;not null;index"`
	Kind       string                              `gorm:"type:varchar(20);not null;index"`
	Text       string                              `gorm:"type:text;not null"`
	Entities   datatypes.JSONSlice[string]         `gorm:"type:jsonb"`
	Anchor     datatypes.JSONType[KnowledgeAnchor] `gorm:"type:jsonb"`
	Language   string                              `gorm:"type:varchar(8)"`
	Embedding  *pgvector.Vector                    `gorm:"type:vector(384)"`
	Confidence float64                             `gorm:"not null"`
	CreatedAt  time.Time                           `gorm:"autoCreateTime"`
}

func (Knowledge) TableName() string {
	return "knowledge"
}
