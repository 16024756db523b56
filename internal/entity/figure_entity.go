package entity

import (
	"time"

	"github.com/google/uuid"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Figure struct {
	Id          uuid.UUID
	ChapterId   uuid.UUID
	StoragePath string
	Caption     string
	PageNumber  int
	BBox        BoundingBox
	Format      string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}
