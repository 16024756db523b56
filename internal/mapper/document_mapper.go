package mapper

import (
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	metadata := map[string]interface{}(d.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return &entity.Document{
		Id:                  d.Id,
		UserId:              d.UserId,
		Filename:            d.Filename,
		FileType:            d.FileType,
		StoragePath:         d.StoragePath,
		FileSize:            d.FileSize,
		Status:              entity.DocumentStatus(d.Status),
		Metadata:            metadata,
		ErrorMessage:        d.ErrorMessage,
		ProcessingStartedAt: d.ProcessingStartedAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           updatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	return &model.Document{
		Id:                  d.Id,
		UserId:              d.UserId,
		Filename:            d.Filename,
		FileType:            d.FileType,
		StoragePath:         d.StoragePath,
		FileSize:            d.FileSize,
		Status:              string(d.Status),
		Metadata:            datatypes.JSONMap(d.Metadata),
		ErrorMessage:        d.ErrorMessage,
		ProcessingStartedAt: d.ProcessingStartedAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           updatedAt,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
