package contract

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type FigureRepository interface {
	CreateBatch(ctx context.Context, figures []*entity.Figure) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Figure, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
}
