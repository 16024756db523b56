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

type SRSRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SRSRecordMapper
}

func NewSRSRecordRepository(db *gorm.DB) contract.SRSRecordRepository {
	return &SRSRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewSRSRecordMapper(),
	}
}

func (r *SRSRecordRepositoryImpl) Create(ctx context.Context, record *entity.SRSRecord) error {
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *SRSRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SRSRecord, error) {
	var m model.SRSRecord
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SRSRecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SRSRecord, error) {
	var models []*model.SRSRecord
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SRSRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.SRSRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SRSRecordRepositoryImpl) UpdateVersioned(ctx context.Context, record *entity.SRSRecord) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.SRSRecord{}).
		Where("id = ? AND version = ?", record.Id, record.Version).
		Updates(map[string]interface{}{
			"ease_factor":   record.EaseFactor,
			"interval_days": record.IntervalDays,
			"repetitions":   record.Repetitions,
			"due_date":      record.DueDate,
			"last_reviewed": record.LastReviewed,
			"last_grade":    record.LastGrade,
			"version":       record.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	record.Version++
	return true, nil
}

func (r *SRSRecordRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	cards := r.db.Session(&gorm.Session{NewDB: true}).Table("cards").Select("id").Where("document_id = ?", documentId)
	return r.db.WithContext(ctx).Where("card_id IN (?)", cards).Delete(&model.SRSRecord{}).Error
}
