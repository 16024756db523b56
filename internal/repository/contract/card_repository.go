package contract

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CardRepository interface {
	CreateBatch(ctx context.Context, cards []*entity.Card) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Card, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Card, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
}
