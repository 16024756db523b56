package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentRequest struct {
	Filename    string `validate:"required,max=255"`
	ContentType string
	Data        []byte `validate:"required,min=1"`
	Priority    bool
}

type UploadDocumentResponse struct {
	Id     uuid.UUID `json:"id"`
	JobId  string    `json:"job_id"`
	Status string    `json:"status"`
}

type DocumentCountsResponse struct {
	Chapters  int64 `json:"chapters"`
	Figures   int64 `json:"figures"`
	Knowledge int64 `json:"knowledge"`
	Cards     int64 `json:"cards"`
}

type DocumentResponse struct {
	Id                  uuid.UUID               `json:"id"`
	Filename            string                  `json:"filename"`
	FileType            string                  `json:"file_type"`
	FileSize            int64                   `json:"file_size"`
	Status              string                  `json:"status"`
	ErrorMessage        *string                 `json:"error_message"`
	Metadata            map[string]interface{}  `json:"metadata"`
	Counts              *DocumentCountsResponse `json:"counts,omitempty"`
	ProcessingStartedAt *time.Time              `json:"processing_started_at"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           *time.Time              `json:"updated_at"`
}

type DocumentStatusResponse struct {
	Id           uuid.UUID               `json:"id"`
	Status       string                  `json:"status"`
	ErrorMessage *string                 `json:"error_message"`
	Counts       *DocumentCountsResponse `json:"counts,omitempty"`
	Job          *JobResponse            `json:"job"`
}

type ListDocumentsRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED"`
	FileType string `query:"file_type" validate:"omitempty,oneof=pdf docx markdown txt"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type DocumentListResponse struct {
	Items    []DocumentResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type ReprocessRequest struct {
	Priority bool `json:"priority"`
}

type ChapterResponse struct {
	Id         uuid.UUID `json:"id"`
	DocumentId uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Level      int       `json:"level"`
	OrderIndex int       `json:"order_index"`
	PageStart  *int      `json:"page_start"`
	PageEnd    *int      `json:"page_end"`
	Content    string    `json:"content,omitempty"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type FigureResponse struct {
	Id         uuid.UUID              `json:"id"`
	ChapterId  uuid.UUID              `json:"chapter_id"`
	Caption    string                 `json:"caption"`
	PageNumber int                    `json:"page_number"`
	BBox       BoundingBox            `json:"bbox"`
	Format     string                 `json:"format"`
	URL        string                 `json:"url,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type AnchorResponse struct {
	Page         int         `json:"page"`
	Position     int         `json:"position"`
	BBox         BoundingBox `json:"bbox"`
	ChapterTitle string      `json:"chapter_title,omitempty"`
}

type KnowledgeResponse struct {
	Id         uuid.UUID      `json:"id"`
	ChapterId  uuid.UUID      `json:"chapter_id"`
	Kind       string         `json:"kind"`
	Text       string         `json:"text"`
	Entities   []string       `json:"entities"`
	Anchor     AnchorResponse `json:"anchor"`
	Language   string         `json:"language"`
	Confidence float64        `json:"confidence"`
}

type CardResponse struct {
	Id          uuid.UUID              `json:"id"`
	KnowledgeId uuid.UUID              `json:"knowledge_id"`
	DocumentId  uuid.UUID              `json:"document_id"`
	CardType    string                 `json:"card_type"`
	Front       string                 `json:"front"`
	Back        string                 `json:"back"`
	Difficulty  float64                `json:"difficulty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
