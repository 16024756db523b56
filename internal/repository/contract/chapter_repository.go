package contract

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChapterRepository interface {
	CreateBatch(ctx context.Context, chapters []*entity.Chapter) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chapter, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chapter, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
}
