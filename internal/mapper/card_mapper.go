package mapper

import (
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/model"

	"gorm.io/datatypes"
)

type CardMapper struct{}

func NewCardMapper() *CardMapper {
	return &CardMapper{}
}

func (m *CardMapper) ToEntity(c *model.Card) *entity.Card {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Card{
		Id:          c.Id,
		KnowledgeId: c.KnowledgeId,
		DocumentId:  c.DocumentId,
		CardType:    c.CardType,
		Front:       c.Front,
		Back:        c.Back,
		Difficulty:  c.Difficulty,
		Metadata:    map[string]interface{}(c.Metadata),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *CardMapper) ToModel(c *entity.Card) *model.Card {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Card{
		Id:          c.Id,
		KnowledgeId: c.KnowledgeId,
		DocumentId:  c.DocumentId,
		CardType:    c.CardType,
		Front:       c.Front,
		Back:        c.Back,
		Difficulty:  c.Difficulty,
		Metadata:    datatypes.JSONMap(c.Metadata),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *CardMapper) ToEntities(cards []*model.Card) []*entity.Card {
	entities := make([]*entity.Card, len(cards))
	for i, c := range cards {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *CardMapper) ToModels(cards []*entity.Card) []*model.Card {
	models := make([]*model.Card, len(cards))
	for i, c := range cards {
		models[i] = m.ToModel(c)
	}
	return models
}
