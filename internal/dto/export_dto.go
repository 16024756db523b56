package dto

import "github.com/google/uuid"

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ImportResult struct {
	DocumentId        uuid.UUID `json:"document_id"`
	ImportedChapters  int       `json:"imported_chapters"`
	ImportedFigures   int       `json:"imported_figures"`
	ImportedKnowledge int       `json:"imported_knowledge"`
	ImportedCards     int       `json:"imported_cards"`
	Errors            []string  `json:"errors"`
}
