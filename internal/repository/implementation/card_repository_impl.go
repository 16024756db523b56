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

type CardRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CardMapper
}

func NewCardRepository(db *gorm.DB) contract.CardRepository {
	return &CardRepositoryImpl{
		db:     db,
		mapper: mapper.NewCardMapper(),
	}
}

func (r *CardRepositoryImpl) CreateBatch(ctx context.Context, cards []*entity.Card) error {
	if len(cards) == 0 {
		return nil
	}
	for _, c := range cards {
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
	}
	models := r.mapper.ToModels(cards)
	if err := r.db.WithContext(ctx).CreateInBatches(models, batchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		*cards[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *CardRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Card, error) {
	var m model.Card
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CardRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Card, error) {
	var models []*model.Card
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CardRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Card{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CardRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.Card{}).Error
}
