package service

import (
	"context"
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/pkg/srs"

	"github.com/google/uuid"
)

const (
	maxGradeAttempts = 5
	defaultDueLimit  = 50
)

type IReviewService interface {
	Grade(ctx context.Context, userId *uuid.UUID, req *dto.GradeCardRequest) (*dto.SRSStateResponse, error)
	Reset(ctx context.Context, userId *uuid.UUID, cardId uuid.UUID) (*dto.SRSStateResponse, error)
	State(ctx context.Context, userId *uuid.UUID, cardId uuid.UUID) (*dto.SRSStateResponse, error)
	Enroll(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.EnrollDocumentResponse, error)
	Due(ctx context.Context, userId *uuid.UUID, req *dto.DueCardsRequest) ([]dto.DueCardResponse, error)
	Overdue(ctx context.Context, userId *uuid.UUID, req *dto.DueCardsRequest) ([]dto.DueCardResponse, error)
}

type reviewService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	now        func() time.Time
}

func NewReviewService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IReviewService {
	return &reviewService{
		uowFactory: uowFactory,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func recordState(r *entity.SRSRecord) srs.State {
	return srs.State{
		EaseFactor:   r.EaseFactor,
		Interval:     r.IntervalDays,
		Repetitions:  r.Repetitions,
		DueDate:      r.DueDate,
		LastReviewed: r.LastReviewed,
		LastGrade:    r.LastGrade,
	}
}

func applyState(r *entity.SRSRecord, st srs.State) {
	r.EaseFactor = st.EaseFactor
	r.IntervalDays = st.Interval
	r.Repetitions = st.Repetitions
	r.DueDate = st.DueDate
	r.LastReviewed = st.LastReviewed
	r.LastGrade = st.LastGrade
}

func (s *reviewService) findCard(ctx context.Context, uow unitofwork.UnitOfWork, cardId uuid.UUID) (*entity.Card, error) {
	card, err := uow.CardRepository().FindOne(ctx, specification.ByID{ID: cardId})
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, apperr.NewNotFound("card")
	}
	return card, nil
}

func (s *reviewService) Grade(ctx context.Context, userId *uuid.UUID, req *dto.GradeCardRequest) (*dto.SRSStateResponse, error) {
	if req.Grade == nil {
		return nil, apperr.NewValidation("grade", "grade is required")
	}
	grade := *req.Grade
	if err := srs.ValidateGrade(grade); err != nil {
		return nil, apperr.NewValidation("grade", err.Error())
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findCard(ctx, uow, req.CardId); err != nil {
		return nil, err
	}

	record, err := s.update(ctx, uow, userId, req.CardId, func(st srs.State, now time.Time) (srs.State, error) {
		return srs.Apply(st, grade, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("REVIEW", "Card graded", map[string]interface{}{
		"card_id":     req.CardId.String(),
		"grade":       grade,
		"repetitions": record.Repetitions,
		"interval":    record.IntervalDays,
	})
	res := toSRSStateResponse(record, s.now())
	return &res, nil
}

func (s *reviewService) Reset(ctx context.Context, userId *uuid.UUID, cardId uuid.UUID) (*dto.SRSStateResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findCard(ctx, uow, cardId); err != nil {
		return nil, err
	}

	record, err := s.update(ctx, uow, userId, cardId, func(srs.State, time.Time) (srs.State, error) {
		return srs.Reset(), nil
	})
	if err != nil {
		return nil, err
	}
	res := toSRSStateResponse(record, s.now())
	return &res, nil
}

// update is an optimistic read-modify-write of one card's schedule. A first
// review creates the record; two concurrent first reviews collide on the
// unique (card, user) index and the loser retries as an update.
func (s *reviewService) update(
	ctx context.Context,
	uow unitofwork.UnitOfWork,
	userId *uuid.UUID,
	cardId uuid.UUID,
	transition func(srs.State, time.Time) (srs.State, error),
) (*entity.SRSRecord, error) {
	repo := uow.SRSRecordRepository()

	for attempt := 0; attempt < maxGradeAttempts; attempt++ {
		now := s.now()
		record, err := repo.FindOne(ctx, specification.ByCardID{CardID: cardId}, specification.ByOwner{UserID: userId})
		if err != nil {
			return nil, err
		}

		if record == nil {
			next, err := transition(srs.NewState(), now)
			if err != nil {
				return nil, err
			}
			record = &entity.SRSRecord{CardId: cardId, UserId: userId}
			applyState(record, next)
			if err := repo.Create(ctx, record); err != nil {
				existing, findErr := repo.FindOne(ctx, specification.ByCardID{CardID: cardId}, specification.ByOwner{UserID: userId})
				if findErr != nil || existing == nil {
					return nil, err
				}
				continue
			}
			return record, nil
		}

		next, err := transition(recordState(record), now)
		if err != nil {
			return nil, err
		}
		applyState(record, next)
		ok, err := repo.UpdateVersioned(ctx, record)
		if err != nil {
			return nil, err
		}
		if ok {
			return record, nil
		}
	}

	s.logger.Warn("REVIEW", "Gave up on contended card", map[string]interface{}{"card_id": cardId.String()})
	return nil, apperr.NewConflict("card_id", "card is being reviewed concurrently, try again")
}

func (s *reviewService) State(ctx context.Context, userId *uuid.UUID, cardId uuid.UUID) (*dto.SRSStateResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findCard(ctx, uow, cardId); err != nil {
		return nil, err
	}
	record, err := uow.SRSRecordRepository().FindOne(ctx, specification.ByCardID{CardID: cardId}, specification.ByOwner{UserID: userId})
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Never reviewed: report the default schedule without writing it.
		record = &entity.SRSRecord{CardId: cardId, UserId: userId}
		applyState(record, srs.NewState())
	}
	res := toSRSStateResponse(record, s.now())
	return &res, nil
}

// Enroll creates a fresh schedule for every card of the document the caller
// has not reviewed yet.
func (s *reviewService) Enroll(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.EnrollDocumentResponse, error) {
	enrolled := 0
	err := unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
		if err != nil {
			return err
		}
		if doc == nil || !ownedBy(doc.UserId, userId) {
			return apperr.NewNotFound("document")
		}

		cards, err := uow.CardRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: documentId})
		if err != nil {
			return err
		}
		existing, err := uow.SRSRecordRepository().FindAll(ctx, specification.CardsOfDocument{DocumentID: documentId}, specification.ByOwner{UserID: userId})
		if err != nil {
			return err
		}
		have := make(map[uuid.UUID]bool, len(existing))
		for _, r := range existing {
			have[r.CardId] = true
		}

		for _, c := range cards {
			if have[c.Id] {
				continue
			}
			record := &entity.SRSRecord{CardId: c.Id, UserId: userId}
			applyState(record, srs.NewState())
			if err := uow.SRSRecordRepository().Create(ctx, record); err != nil {
				return err
			}
			enrolled++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.EnrollDocumentResponse{DocumentId: documentId, Enrolled: enrolled}, nil
}

func (s *reviewService) Due(ctx context.Context, userId *uuid.UUID, req *dto.DueCardsRequest) ([]dto.DueCardResponse, error) {
	return s.dueCards(ctx, userId, req, false)
}

func (s *reviewService) Overdue(ctx context.Context, userId *uuid.UUID, req *dto.DueCardsRequest) ([]dto.DueCardResponse, error) {
	return s.dueCards(ctx, userId, req, true)
}

func (s *reviewService) dueCards(ctx context.Context, userId *uuid.UUID, req *dto.DueCardsRequest, overdue bool) ([]dto.DueCardResponse, error) {
	now := s.now()
	limit := req.Limit
	if limit <= 0 {
		limit = defaultDueLimit
	}

	specs := []specification.Specification{
		specification.ByOwner{UserID: userId},
		specification.DueAt{At: now, Overdue: overdue},
	}
	if req.DocumentId != "" {
		documentId, err := uuid.Parse(req.DocumentId)
		if err != nil {
			return nil, apperr.NewValidation("document_id", "invalid document id")
		}
		specs = append(specs, specification.CardsOfDocument{DocumentID: documentId})
	}
	specs = append(specs,
		specification.OrderBy{Field: "due_date"},
		specification.Pagination{Limit: limit},
	)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	records, err := uow.SRSRecordRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []dto.DueCardResponse{}, nil
	}

	cardIds := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		cardIds = append(cardIds, r.CardId)
	}
	cards, err := uow.CardRepository().FindAll(ctx, specification.ByIDs{IDs: cardIds})
	if err != nil {
		return nil, err
	}
	byId := make(map[uuid.UUID]*entity.Card, len(cards))
	for _, c := range cards {
		byId[c.Id] = c
	}

	res := make([]dto.DueCardResponse, 0, len(records))
	for _, r := range records {
		card, ok := byId[r.CardId]
		if !ok {
			continue
		}
		res = append(res, dto.DueCardResponse{
			Card:  toCardResponse(card),
			State: toSRSStateResponse(r, now),
		})
	}
	return res, nil
}
