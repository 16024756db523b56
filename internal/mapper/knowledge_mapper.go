package mapper

import (
	"docflash-be/internal/entity"
	"docflash-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(k *model.Knowledge) *entity.Knowledge {
	if k == nil {
		return nil
	}

	a := k.Anchor.Data()
	var embedding []float32
	if k.Embedding != nil {
		embedding = k.Embedding.Slice()
	}
	entities := []string(k.Entities)
	if entities == nil {
		entities = []string{}
	}

	return &entity.Knowledge{
		Id:        k.Id,
		ChapterId: k.ChapterId,
		Kind:      k.Kind,
		Text:      k.Text,
		Entities:  entities,
		Anchor: entity.Anchor{
			Page:         a.Page,
			Position:     a.Position,
			BBox:         entity.BoundingBox{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height},
			ChapterTitle: a.ChapterTitle,
		},
		Language:   k.Language,
		Embedding:  embedding,
		Confidence: k.Confidence,
		CreatedAt:  k.CreatedAt,
	}
}

func (m *KnowledgeMapper) ToModel(k *entity.Knowledge) *model.Knowledge {
	if k == nil {
		return nil
	}

	var embedding *pgvector.Vector
	if len(k.Embedding) > 0 {
		v := pgvector.NewVector(k.Embedding)
		embedding = &v
	}

	return &model.Knowledge{
		Id:        k.Id,
		ChapterId: k.ChapterId,
		Kind:      k.Kind,
		Text:      k.Text,
		Entities:  datatypes.JSONSlice[string](k.Entities),
		Anchor: datatypes.NewJSONType(model.KnowledgeAnchor{
			Page:         k.Anchor.Page,
			Position:     k.Anchor.Position,
			X:            k.Anchor.BBox.X,
			Y:            k.Anchor.BBox.Y,
			Width:        k.Anchor.BBox.Width,
			Height:       k.Anchor.BBox.Height,
			ChapterTitle: k.Anchor.ChapterTitle,
		}),
		Language:   k.Language,
		Embedding:  embedding,
		Confidence: k.Confidence,
		CreatedAt:  k.CreatedAt,
	}
}

func (m *KnowledgeMapper) ToEntities(rows []*model.Knowledge) []*entity.Knowledge {
	entities := make([]*entity.Knowledge, len(rows))
	for i, k := range rows {
		entities[i] = m.ToEntity(k)
	}
	return entities
}

func (m *KnowledgeMapper) ToModels(points []*entity.Knowledge) []*model.Knowledge {
	models := make([]*model.Knowledge, len(points))
	for i, k := range points {
		models[i] = m.ToModel(k)
	}
	return models
}
