package implementation

import (
	"context"
	"errors"

	"docflash-be/internal/entity"
	"docflash-be/internal/mapper"
	"docflash-be/internal/model"
	"docflash-be/internal/repository/contract"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChapterRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChapterMapper
}

func NewChapterRepository(db *gorm.DB) contract.ChapterRepository {
	return &ChapterRepositoryImpl{
		db:     db,
		mapper: mapper.NewChapterMapper(),
	}
}

func (r *ChapterRepositoryImpl) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	for _, c := range chapters {
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
	}
	models := r.mapper.ToModels(chapters)
	if err := r.db.WithContext(ctx).CreateInBatches(models, batchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		*chapters[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ChapterRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chapter, error) {
	var m model.Chapter
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ChapterRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chapter, error) {
	var models []*model.Chapter
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ChapterRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Chapter{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChapterRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.Chapter{}).Error
}
