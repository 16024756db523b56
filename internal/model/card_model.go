package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Card struct {
	Id          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	KnowledgeId uuid.UUID         `gorm:"type:uuid;not null;index"`
	DocumentId  uuid.UUID         `gorm:"type:uuid;not null;index"`
	CardType    string            `gorm:"type:varchar(20);not null"`
	Front       string            `gorm:"type:text;not null"`
	Back        string            `gorm:"type:text;not null"`
	Difficulty  float64           `gorm:"not null"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

func (Card) TableName() string {
	return "cards"
}
