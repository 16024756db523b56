package implementation

import (
	"context"
	"errors"
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/mapper"
	"docflash-be/internal/model"
	"docflash-be/internal/repository/contract"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *entity.Document) error {
	if doc.Id == uuid.Nil {
		doc.Id = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = entity.DocumentPending
	}
	m := r.mapper.ToModel(doc)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) Update(ctx context.Context, doc *entity.Document) error {
	m := r.mapper.ToModel(doc)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id).Error
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	var models []*model.Document
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Document{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepositoryImpl) ClaimForProcessing(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Where("status <> ? OR processing_started_at IS NULL OR processing_started_at < ?", string(entity.DocumentProcessing), staleBefore).
		Updates(map[string]interface{}{
			"status":                string(entity.DocumentProcessing),
			"processing_started_at": now,
			"error_message":         nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DocumentRepositoryImpl) MarkCompleted(ctx context.Context, id uuid.UUID, metadata map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(entity.DocumentCompleted),
			"metadata":      datatypes.JSONMap(metadata),
			"error_message": nil,
		}).Error
}

func (r *DocumentRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(entity.DocumentFailed),
			"error_message": message,
		}).Error
}

func (r *DocumentRepositoryImpl) MarkRetrying(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                string(entity.DocumentPending),
			"error_message":         message,
			"processing_started_at": nil,
		}).Error
}

func (r *DocumentRepositoryImpl) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status <> ?", id, string(entity.DocumentProcessing)).
		Updates(map[string]interface{}{
			"status":                string(entity.DocumentPending),
			"error_message":         nil,
			"processing_started_at": nil,
		}).Error
}
