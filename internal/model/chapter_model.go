package model

import (
	"time"

	"github.com/google/uuid"
)

type Chapter struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chapters_document_order,priority:1"`
	Title      string    `gorm:"type:varchar(500);not null"`
	Level      int       `gorm:"not null"`
	OrderIndex int       `gorm:"not null;uniqueIndex:idx_chapters_document_order,priority:2"`
	PageStart  *int
	PageEnd    *int
	Content    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (Chapter) TableName() string {
	return "chapters"
}
