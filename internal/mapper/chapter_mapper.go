package mapper

import (
	"docflash-be/internal/entity"
	"docflash-be/internal/model"
)

type ChapterMapper struct{}

func NewChapterMapper() *ChapterMapper {
	return &ChapterMapper{}
}

func (m *ChapterMapper) ToEntity(c *model.Chapter) *entity.Chapter {
	if c == nil {
		return nil
	}
	return &entity.Chapter{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		Title:      c.Title,
		Level:      c.Level,
		OrderIndex: c.OrderIndex,
		PageStart:  c.PageStart,
		PageEnd:    c.PageEnd,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChapterMapper) ToModel(c *entity.Chapter) *model.Chapter {
	if c == nil {
		return nil
	}
	return &model.Chapter{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		Title:      c.Title,
		Level:      c.Level,
		OrderIndex: c.OrderIndex,
		PageStart:  c.PageStart,
		PageEnd:    c.PageEnd,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChapterMapper) ToEntities(chapters []*model.Chapter) []*entity.Chapter {
	entities := make([]*entity.Chapter, len(chapters))
	for i, c := range chapters {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ChapterMapper) ToModels(chapters []*entity.Chapter) []*model.Chapter {
	models := make([]*model.Chapter, len(chapters))
	for i, c := range chapters {
		models[i] = m.ToModel(c)
	}
	return models
}
