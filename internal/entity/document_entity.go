package entity

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentCompleted  DocumentStatus = "COMPLETED"
	DocumentFailed     DocumentStatus = "FAILED"
)

type Document struct {
	Id                  uuid.UUID
	UserId              *uuid.UUID
	Filename            string
	FileType            string
	StoragePath         string
	FileSize            int64
	Status              DocumentStatus
	Metadata            map[string]interface{}
	ErrorMessage        *string
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           *time.Time
}

// DocumentCounts is what a finished run leaves behind.
type DocumentCounts struct {
	Chapters  int64
	Figures   int64
	Knowledge int64
	Cards     int64
}
