package entity

import (
	"time"

	"github.com/google/uuid"
)

type Chapter struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	Title      string
	Level      int
	OrderIndex int
	PageStart  *int
	PageEnd    *int
	Content    string
	CreatedAt  time.Time
}
