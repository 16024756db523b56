package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Figure struct {
	Id          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ChapterId   uuid.UUID         `gorm:"type:uuid;not null;index"`
	StoragePath string            `gorm:"type:varchar(512)"`
	Caption     string            `gorm:"type:text"`
	PageNumber  int               `gorm:"not null"`
	BBoxX       float64           `gorm:"column:bbox_x"`
	BBoxY       float64           `gorm:"column:bbox_y"`
	BBoxWidth   float64           `gorm:"column:bbox_width"`
	BBoxHeight  float64           `gorm:"column:bbox_height"`
	Format      string            `gorm:"type:varchar(20)"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
}

func (Figure) TableName() string {
	return "figures"
}
