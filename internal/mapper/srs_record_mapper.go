package mapper

import (
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/model"
)

type SRSRecordMapper struct{}

func NewSRSRecordMapper() *SRSRecordMapper {
	return &SRSRecordMapper{}
}

func (m *SRSRecordMapper) ToEntity(r *model.SRSRecord) *entity.SRSRecord {
	if r == nil {
		return nil
	}

	var updatedAt *time.Time
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		updatedAt = &t
	}

	return &entity.SRSRecord{
		Id:           r.Id,
		CardId:       r.CardId,
		UserId:       r.UserId,
		EaseFactor:   r.EaseFactor,
		IntervalDays: r.IntervalDays,
		Repetitions:  r.Repetitions,
		DueDate:      r.DueDate,
		LastReviewed: r.LastReviewed,
		LastGrade:    r.LastGrade,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *SRSRecordMapper) ToModel(r *entity.SRSRecord) *model.SRSRecord {
	if r == nil {
		return nil
	}

	var updatedAt time.Time
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}

	return &model.SRSRecord{
		Id:           r.Id,
		CardId:       r.CardId,
		UserId:       r.UserId,
		EaseFactor:   r.EaseFactor,
		IntervalDays: r.IntervalDays,
		Repetitions:  r.Repetitions,
		DueDate:      r.DueDate,
		LastReviewed: r.LastReviewed,
		LastGrade:    r.LastGrade,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *SRSRecordMapper) ToEntities(records []*model.SRSRecord) []*entity.SRSRecord {
	entities := make([]*entity.SRSRecord, len(records))
	for i, r := range records {
		entities[i] = m.ToEntity(r)
	}
	return entities
}
