package contract

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SRSRecordRepository interface {
	Create(ctx context.Context, record *entity.SRSRecord) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SRSRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SRSRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// UpdateVersioned writes the record only if its stored version still
	// equals record.Version, then bumps the version. It reports whether the
	// row was written.
	UpdateVersioned(ctx context.Context, record *entity.SRSRecord) (bool, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
}
