package unitofwork

import (
	"context"

	"docflash-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentRepository() contract.DocumentRepository
	ChapterRepository() contract.ChapterRepository
	FigureRepository() contract.FigureRepository
	KnowledgeRepository() contract.KnowledgeRepository
	CardRepository() contract.CardRepository
	SRSRecordRepository() contract.SRSRecordRepository
}
