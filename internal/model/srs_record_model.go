package model

import (
	"time"

	"github.com/google/uuid"
)

// SRSRecord is unique per (card, user). Version backs optimistic locking
// on grade updates.
type SRSRecord struct {
	Id           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CardId       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_srs_card_user,priority:1"`
	UserId       *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_srs_card_user,priority:2"`
	EaseFactor   float64    `gorm:"not null"`
	IntervalDays int        `gorm:"column:interval_days;not null"`
	Repetitions  int        `gorm:"not null"`
	DueDate      *time.Time `gorm:"index"`
	LastReviewed *time.Time
	LastGrade    *int
	Version      int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (SRSRecord) TableName() string {
	return "srs_records"
}
