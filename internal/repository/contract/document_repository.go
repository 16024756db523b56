package contract

import (
	"context"
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Update(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// ClaimForProcessing moves the document to PROCESSING unless another run
	// holds it with a start time after staleBefore.
	ClaimForProcessing(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, metadata map[string]interface{}) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// MarkRetrying returns the document to PENDING after a failed attempt
	// that the queue will retry, keeping the error message.
	MarkRetrying(ctx context.Context, id uuid.UUID, message string) error
	ResetToPending(ctx context.Context, id uuid.UUID) error
}
