package service

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

func documentCounts(ctx context.Context, uow unitofwork.UnitOfWork, documentId uuid.UUID) (*entity.DocumentCounts, error) {
	chapters, err := uow.ChapterRepository().Count(ctx, specification.ByDocumentID{DocumentID: documentId})
	if err != nil {
		return nil, err
	}
	figures, err := uow.FigureRepository().Count(ctx, specification.InDocument{DocumentID: documentId})
	if err != nil {
		return nil, err
	}
	knowledge, err := uow.KnowledgeRepository().Count(ctx, specification.InDocument{DocumentID: documentId})
	if err != nil {
		return nil, err
	}
	cards, err := uow.CardRepository().Count(ctx, specification.ByDocumentID{DocumentID: documentId})
	if err != nil {
		return nil, err
	}
	return &entity.DocumentCounts{Chapters: chapters, Figures: figures, Knowledge: knowledge, Cards: cards}, nil
}

// deleteDocumentTree removes everything derived from a document, children
// first, and returns the storage keys of the figures it dropped. The document
// row itself is left alone.
func deleteDocumentTree(ctx context.Context, uow unitofwork.UnitOfWork, documentId uuid.UUID) ([]string, error) {
	figures, err := uow.FigureRepository().FindAll(ctx, specification.InDocument{DocumentID: documentId})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(figures))
	for _, f := range figures {
		if f.StoragePath != "" {
			keys = append(keys, f.StoragePath)
		}
	}

	if err := uow.SRSRecordRepository().DeleteByDocumentId(ctx, documentId); err != nil {
		return nil, err
	}
	if err := uow.CardRepository().DeleteByDocumentId(ctx, documentId); err != nil {
		return nil, err
	}
	if err := uow.KnowledgeRepository().DeleteByDocumentId(ctx, documentId); err != nil {
		return nil, err
	}
	if err := uow.FigureRepository().DeleteByDocumentId(ctx, documentId); err != nil {
		return nil, err
	}
	if err := uow.ChapterRepository().DeleteByDocumentId(ctx, documentId); err != nil {
		return nil, err
	}
	return keys, nil
}
