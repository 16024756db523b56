package contract

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type KnowledgeRepository interface {
	CreateBatch(ctx context.Context, points []*entity.Knowledge) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Knowledge, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Knowledge, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	// SearchSimilar orders by cosine distance; postgres with pgvector only.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, excludeId *uuid.UUID) ([]*entity.ScoredKnowledge, error)
}
