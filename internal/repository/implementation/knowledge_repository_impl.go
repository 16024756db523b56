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
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) CreateBatch(ctx context.Context, points []*entity.Knowledge) error {
	if len(points) == 0 {
		return nil
	}
	for _, k := range points {
		if k.Id == uuid.Nil {
			k.Id = uuid.New()
		}
	}
	models := r.mapper.ToModels(points)
	if err := r.db.WithContext(ctx).CreateInBatches(models, batchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		*points[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *KnowledgeRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Knowledge, error) {
	var m model.Knowledge
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *KnowledgeRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Knowledge, error) {
	var models []*model.Knowledge
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *KnowledgeRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Knowledge{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *KnowledgeRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	query := specification.InDocument{DocumentID: documentId}.Apply(r.db.WithContext(ctx))
	return query.Delete(&model.Knowledge{}).Error
}

type scoredKnowledgeRow struct {
	model.Knowledge
	Distance float64
}

func (r *KnowledgeRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, excludeId *uuid.UUID) ([]*entity.ScoredKnowledge, error) {
	if limit <= 0 {
		limit = 10
	}

	query := r.db.WithContext(ctx).
		Model(&model.Knowledge{}).
		Select("knowledge.*, embedding <=> ? AS distance", pgvector.NewVector(embedding)).
		Where("embedding IS NOT NULL")
	if excludeId != nil {
		query = query.Where("id <> ?", *excludeId)
	}

	var rows []*scoredKnowledgeRow
	if err := query.Order("distance ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]*entity.ScoredKnowledge, len(rows))
	for i, row := range rows {
		results[i] = &entity.ScoredKnowledge{
			Knowledge: r.mapper.ToEntity(&row.Knowledge),
			Distance:  row.Distance,
		}
	}
	return results, nil
}
