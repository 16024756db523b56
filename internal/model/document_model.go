package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Document struct {
	Id                  uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserId              *uuid.UUID        `gorm:"type:uuid;index"`
	Filename            string            `gorm:"type:varchar(255);not null"`
	FileType            string            `gorm:"type:varchar(20);not null"`
	StoragePath         string            `gorm:"type:varchar(512);not null"`
	FileSize            int64             `gorm:"not null"`
	Status              string            `gorm:"type:varchar(20);not null;index"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb"`
	ErrorMessage        *string           `gorm:"type:text"`
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}
