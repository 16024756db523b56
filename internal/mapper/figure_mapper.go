package mapper

import (
	"docflash-be/internal/entity"
	"docflash-be/internal/model"

	"gorm.io/datatypes"
)

type FigureMapper struct{}

func NewFigureMapper() *FigureMapper {
	return &FigureMapper{}
}

func (m *FigureMapper) ToEntity(f *model.Figure) *entity.Figure {
	if f == nil {
		return nil
	}
	return &entity.Figure{
		Id:          f.Id,
		ChapterId:   f.ChapterId,
		StoragePath: f.StoragePath,
		Caption:     f.Caption,
		PageNumber:  f.PageNumber,
		BBox: entity.BoundingBox{
			X:      f.BBoxX,
			Y:      f.BBoxY,
			Width:  f.BBoxWidth,
			Height: f.BBoxHeight,
		},
		Format:    f.Format,
		Metadata:  map[string]interface{}(f.Metadata),
		CreatedAt: f.CreatedAt,
	}
}

func (m *FigureMapper) ToModel(f *entity.Figure) *model.Figure {
	if f == nil {
		return nil
	}
	return &model.Figure{
		Id:          f.Id,
		ChapterId:   f.ChapterId,
		StoragePath: f.StoragePath,
		Caption:     f.Caption,
		PageNumber:  f.PageNumber,
		BBoxX:       f.BBox.X,
		BBoxY:       f.BBox.Y,
		BBoxWidth:   f.BBox.Width,
		BBoxHeight:  f.BBox.Height,
		Format:      f.Format,
		Metadata:    datatypes.JSONMap(f.Metadata),
		CreatedAt:   f.CreatedAt,
	}
}

func (m *FigureMapper) ToEntities(figures []*model.Figure) []*entity.Figure {
	entities := make([]*entity.Figure, len(figures))
	for i, f := range figures {
		entities[i] = m.ToEntity(f)
	}
	return entities
}

func (m *FigureMapper) ToModels(figures []*entity.Figure) []*model.Figure {
	models := make([]*model.Figure, len(figures))
	for i, f := range figures {
		models[i] = m.ToModel(f)
	}
	return models
}
