package service

import (
	"context"
	"math"
	"sort"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	defaultSearchLimit  = 20
	defaultSimilarLimit = 10
)

type ISearchService interface {
	Search(ctx context.Context, userId *uuid.UUID, req *dto.SearchRequest) (*dto.SearchResponse, error)
	SimilarKnowledge(ctx context.Context, userId *uuid.UUID, knowledgeId uuid.UUID, req *dto.SimilarKnowledgeRequest) ([]dto.SimilarKnowledgeResponse, error)
}

type searchService struct {
	uowFactory     unitofwork.RepositoryFactory
	vectorsEnabled bool
	logger         logger.ILogger
}

// NewSearchService takes vectorsEnabled from the database driver. Without
// pgvector, similarity is computed in memory within the source document.
func NewSearchService(uowFactory unitofwork.RepositoryFactory, vectorsEnabled bool, logger logger.ILogger) ISearchService {
	return &searchService{
		uowFactory:     uowFactory,
		vectorsEnabled: vectorsEnabled,
		logger:         logger,
	}
}

func (s *searchService) Search(ctx context.Context, userId *uuid.UUID, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	knowledgeScope := []specification.Specification{specification.VisibleTo{UserID: userId, ThroughChapters: true}}
	cardScope := []specification.Specification{specification.VisibleTo{UserID: userId}}
	if req.DocumentId != "" {
		documentId, err := uuid.Parse(req.DocumentId)
		if err != nil {
			return nil, apperr.NewValidation("document_id", "invalid document id")
		}
		knowledgeScope = append(knowledgeScope, specification.InDocument{DocumentID: documentId})
		cardScope = append(cardScope, specification.ByDocumentID{DocumentID: documentId})
	}

	points, err := uow.KnowledgeRepository().FindAll(ctx, append(knowledgeScope,
		specification.TextContains{Columns: []string{"text"}, Query: req.Query},
		specification.OrderBy{Field: "confidence", Desc: true},
		specification.Pagination{Limit: limit},
	)...)
	if err != nil {
		return nil, err
	}
	cards, err := uow.CardRepository().FindAll(ctx, append(cardScope,
		specification.TextContains{Columns: []string{"front", "back"}, Query: req.Query},
		specification.OrderBy{Field: "created_at"},
		specification.Pagination{Limit: limit},
	)...)
	if err != nil {
		return nil, err
	}

	res := &dto.SearchResponse{
		Knowledge: make([]dto.KnowledgeResponse, 0, len(points)),
		Cards:     make([]dto.CardResponse, 0, len(cards)),
	}
	for _, k := range points {
		res.Knowledge = append(res.Knowledge, toKnowledgeResponse(k))
	}
	for _, c := range cards {
		res.Cards = append(res.Cards, toCardResponse(c))
	}
	return res, nil
}

func (s *searchService) SimilarKnowledge(ctx context.Context, userId *uuid.UUID, knowledgeId uuid.UUID, req *dto.SimilarKnowledgeRequest) ([]dto.SimilarKnowledgeResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.KnowledgeRepository().FindOne(ctx,
		specification.ByID{ID: knowledgeId},
		specification.VisibleTo{UserID: userId, ThroughChapters: true},
	)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperr.NewNotFound("knowledge point")
	}
	if len(source.Embedding) == 0 {
		return []dto.SimilarKnowledgeResponse{}, nil
	}

	var hits []*entity.ScoredKnowledge
	if s.vectorsEnabled {
		hits, err = uow.KnowledgeRepository().SearchSimilar(ctx, source.Embedding, limit, &source.Id)
		if err != nil {
			return nil, err
		}
	} else {
		hits, err = s.similarInDocument(ctx, uow, source, limit)
		if err != nil {
			return nil, err
		}
	}

	res := make([]dto.SimilarKnowledgeResponse, 0, len(hits))
	for _, h := range hits {
		res = append(res, dto.SimilarKnowledgeResponse{
			Knowledge:  toKnowledgeResponse(h.Knowledge),
			Similarity: 1 - h.Distance,
		})
	}
	return res, nil
}

func (s *searchService) similarInDocument(ctx context.Context, uow unitofwork.UnitOfWork, source *entity.Knowledge, limit int) ([]*entity.ScoredKnowledge, error) {
	chapter, err := uow.ChapterRepository().FindOne(ctx, specification.ByID{ID: source.ChapterId})
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, nil
	}
	candidates, err := uow.KnowledgeRepository().FindAll(ctx, specification.InDocument{DocumentID: chapter.DocumentId})
	if err != nil {
		return nil, err
	}

	hits := make([]*entity.ScoredKnowledge, 0, len(candidates))
	for _, k := range candidates {
		if k.Id == source.Id || len(k.Embedding) != len(source.Embedding) {
			continue
		}
		hits = append(hits, &entity.ScoredKnowledge{Knowledge: k, Distance: 1 - cosine(source.Embedding, k.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
