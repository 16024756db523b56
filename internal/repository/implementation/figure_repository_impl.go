package implementation

import (
	"context"

	"docflash-be/internal/entity"
	"docflash-be/internal/mapper"
	"docflash-be/internal/model"
	"docflash-be/internal/repository/contract"
	"docflash-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FigureRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FigureMapper
}

func NewFigureRepository(db *gorm.DB) contract.FigureRepository {
	return &FigureRepositoryImpl{
		db:     db,
		mapper: mapper.NewFigureMapper(),
	}
}

func (r *FigureRepositoryImpl) CreateBatch(ctx context.Context, figures []*entity.Figure) error {
	if len(figures) == 0 {
		return nil
	}
	for _, f := range figures {
		if f.Id == uuid.Nil {
			f.Id = uuid.New()
		}
	}
	models := r.mapper.ToModels(figures)
	if err := r.db.WithContext(ctx).CreateInBatches(models, batchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		*figures[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *FigureRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Figure, error) {
	var models []*model.Figure
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *FigureRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Figure{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FigureRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	query := specification.InDocument{DocumentID: documentId}.Apply(r.db.WithContext(ctx))
	return query.Delete(&model.Figure{}).Error
}
