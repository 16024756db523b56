package service

import (
	"context"
	"errors"
	"path/filepath"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/pkg/events"
	"docflash-be/pkg/parser"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/storage"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type IDocumentService interface {
	Upload(ctx context.Context, userId *uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
	Show(ctx context.Context, userId *uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error)
	Status(ctx context.Context, userId *uuid.UUID, id uuid.UUID) (*dto.DocumentStatusResponse, error)
	List(ctx context.Context, userId *uuid.UUID, req *dto.ListDocumentsRequest) (*dto.DocumentListResponse, error)
	Delete(ctx context.Context, userId *uuid.UUID, id uuid.UUID) error
	Reprocess(ctx context.Context, userId *uuid.UUID, id uuid.UUID, req *dto.ReprocessRequest) (*dto.EnqueueResponse, error)
	Chapters(ctx context.Context, userId *uuid.UUID, id uuid.UUID) ([]dto.ChapterResponse, error)
	Chapter(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) (*dto.ChapterResponse, error)
	ChapterKnowledge(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) ([]dto.KnowledgeResponse, error)
	ChapterFigures(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) ([]dto.FigureResponse, error)
	Cards(ctx context.Context, userId *uuid.UUID, id uuid.UUID) ([]dto.CardResponse, error)
}

type documentService struct {
	uowFactory    unitofwork.RepositoryFactory
	storage       storage.Storage
	queue         queue.TaskQueue
	publisher     IPublisherService
	logger        logger.ILogger
	retryAttempts int
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	store storage.Storage,
	taskQueue queue.TaskQueue,
	publisher IPublisherService,
	retryAttempts int,
	logger logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory:    uowFactory,
		storage:       store,
		queue:         taskQueue,
		publisher:     publisher,
		logger:        logger,
		retryAttempts: retryAttempts,
	}
}

func (s *documentService) Upload(ctx context.Context, userId *uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	fileType, ok := parser.DetectFileType(req.Filename)
	if !ok {
		return nil, &apperr.UnsupportedFormatError{Format: filepath.Ext(req.Filename)}
	}
	if len(req.Data) == 0 {
		return nil, apperr.NewValidation("file", "file is empty")
	}

	key, err := s.storage.Save(ctx, req.Data, req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		UserId:      userId,
		Filename:    filepath.Base(req.Filename),
		FileType:    string(fileType),
		StoragePath: key,
		FileSize:    int64(len(req.Data)),
		Status:      entity.DocumentPending,
		Metadata:    map[string]interface{}{"content_type": req.ContentType},
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		if _, delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("DOCUMENT", "Failed to remove orphaned upload", map[string]interface{}{"key": key, "error": delErr.Error()})
		}
		return nil, err
	}

	jobId, err := s.queue.Enqueue(ctx, doc.Id, queue.EnqueueOptions{Priority: req.Priority, RetryAttempts: s.retryAttempts})
	if err != nil {
		// The document stays PENDING and can be reprocessed once the broker is back.
		s.logger.Error("DOCUMENT", "Failed to enqueue document", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
		return nil, err
	}

	s.logger.Info("DOCUMENT", "Document uploaded", map[string]interface{}{
		"document_id": doc.Id.String(),
		"job_id":      jobId,
		"file_type":   doc.FileType,
		"size":        doc.FileSize,
	})

	return &dto.UploadDocumentResponse{
		Id:     doc.Id,
		JobId:  jobId,
		Status: string(doc.Status),
	}, nil
}

// findDocument returns a not-found error both for missing documents and for
// documents that belong to someone else.
func (s *documentService) findDocument(ctx context.Context, uow unitofwork.UnitOfWork, userId *uuid.UUID, id uuid.UUID) (*entity.Document, error) {
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if doc == nil || !ownedBy(doc.UserId, userId) {
		return nil, apperr.NewNotFound("document")
	}
	return doc, nil
}

// ownedBy lets an owner see their rows; anonymous rows are visible to everyone.
func ownedBy(owner, caller *uuid.UUID) bool {
	if owner == nil {
		return true
	}
	return caller != nil && *owner == *caller
}

func (s *documentService) Show(ctx context.Context, userId *uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}
	counts, err := documentCounts(ctx, uow, doc.Id)
	if err != nil {
		return nil, err
	}
	res := toDocumentResponse(doc, counts)
	return &res, nil
}

func (s *documentService) Status(ctx context.Context, userId *uuid.UUID, id uuid.UUID) (*dto.DocumentStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	res := &dto.DocumentStatusResponse{
		Id:           doc.Id,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
	}
	if doc.Status == entity.DocumentCompleted || doc.Status == entity.DocumentFailed {
		counts, err := documentCounts(ctx, uow, doc.Id)
		if err != nil {
			return nil, err
		}
		res.Counts = toCountsResponse(counts)
	}

	// Status reads keep working while the broker is down; only the job part is missing.
	job, err := s.queue.JobForDocument(ctx, doc.Id)
	if err != nil {
		var queueErr *apperr.QueueError
		if !errors.As(err, &queueErr) || queueErr.Kind != apperr.QueueNotFound {
			s.logger.Warn("DOCUMENT", "Job lookup failed", map[string]interface{}{
				"document_id": doc.Id.String(),
				"error":       err.Error(),
			})
		}
		return res, nil
	}
	res.Job = toJobResponse(job)
	return res, nil
}

func (s *documentService) List(ctx context.Context, userId *uuid.UUID, req *dto.ListDocumentsRequest) (*dto.DocumentListResponse, error) {
	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filters := []specification.Specification{specification.ByOwner{UserID: userId}}
	if req.Status != "" {
		filters = append(filters, specification.ByStatus{Status: req.Status})
	}
	filters = append(filters, specification.Filter("file_type", req.FileType))

	uow := s.uowFactory.NewUnitOfWork(ctx)
	total, err := uow.DocumentRepository().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	query := append(filters,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: pageSize, Offset: (page - 1) * pageSize},
	)
	docs, err := uow.DocumentRepository().FindAll(ctx, query...)
	if err != nil {
		return nil, err
	}

	items := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d, nil))
	}

	return &dto.DocumentListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *documentService) Delete(ctx context.Context, userId *uuid.UUID, id uuid.UUID) error {
	doc, err := s.findDocument(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, id)
	if err != nil {
		return err
	}
	if doc.Status == entity.DocumentProcessing {
		return apperr.NewConflict("status", "document is being processed")
	}

	// A queued job would otherwise wake up for a document that no longer exists.
	if job, err := s.queue.JobForDocument(ctx, doc.Id); err == nil && job.Status.Runnable() {
		if _, err := s.queue.Cancel(ctx, job.ID); err != nil {
			s.logger.Warn("DOCUMENT", "Failed to cancel pending job", map[string]interface{}{
				"document_id": doc.Id.String(),
				"job_id":      job.ID,
				"error":       err.Error(),
			})
		}
	}

	var figureKeys []string
	err = unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		keys, err := deleteDocumentTree(ctx, uow, doc.Id)
		if err != nil {
			return err
		}
		figureKeys = keys
		return uow.DocumentRepository().Delete(ctx, doc.Id)
	})
	if err != nil {
		return err
	}

	for _, key := range append(figureKeys, doc.StoragePath) {
		if key == "" {
			continue
		}
		if _, err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("DOCUMENT", "Failed to delete stored object", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	if err := s.publisher.Publish(ctx, events.NewDocumentDeleted(doc.Id)); err != nil {
		s.logger.Warn("DOCUMENT", "Failed to publish delete event", map[string]interface{}{"document_id": doc.Id.String(), "error": err.Error()})
	}

	s.logger.Info("DOCUMENT", "Document deleted", map[string]interface{}{"document_id": doc.Id.String()})
	return nil
}

func (s *documentService) Reprocess(ctx context.Context, userId *uuid.UUID, id uuid.UUID, req *dto.ReprocessRequest) (*dto.EnqueueResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == entity.DocumentProcessing {
		// Enqueue reuses the running job, so the caller just gets its id back.
		jobId, err := s.queue.Enqueue(ctx, doc.Id, queue.EnqueueOptions{Priority: req.Priority, RetryAttempts: s.retryAttempts})
		if err != nil {
			return nil, err
		}
		return &dto.EnqueueResponse{JobId: jobId, DocumentId: doc.Id}, nil
	}

	if err := uow.DocumentRepository().ResetToPending(ctx, doc.Id); err != nil {
		return nil, err
	}
	jobId, err := s.queue.Enqueue(ctx, doc.Id, queue.EnqueueOptions{Priority: req.Priority, RetryAttempts: s.retryAttempts})
	if err != nil {
		return nil, err
	}

	s.logger.Info("DOCUMENT", "Document requeued", map[string]interface{}{
		"document_id": doc.Id.String(),
		"job_id":      jobId,
		"priority":    req.Priority,
	})
	return &dto.EnqueueResponse{JobId: jobId, DocumentId: doc.Id}, nil
}

func (s *documentService) Chapters(ctx context.Context, userId *uuid.UUID, id uuid.UUID) ([]dto.ChapterResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}
	chapters, err := uow.ChapterRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: doc.Id},
		specification.OrderBy{Field: "order_index"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.ChapterResponse, 0, len(chapters))
	for _, c := range chapters {
		res = append(res, toChapterResponse(c, false))
	}
	return res, nil
}

func (s *documentService) findChapter(ctx context.Context, uow unitofwork.UnitOfWork, userId *uuid.UUID, chapterId uuid.UUID) (*entity.Chapter, error) {
	chapter, err := uow.ChapterRepository().FindOne(ctx, specification.ByID{ID: chapterId})
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperr.NewNotFound("chapter")
	}
	if _, err := s.findDocument(ctx, uow, userId, chapter.DocumentId); err != nil {
		return nil, apperr.NewNotFound("chapter")
	}
	return chapter, nil
}

func (s *documentService) Chapter(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) (*dto.ChapterResponse, error) {
	chapter, err := s.findChapter(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, chapterId)
	if err != nil {
		return nil, err
	}
	res := toChapterResponse(chapter, true)
	return &res, nil
}

func (s *documentService) ChapterKnowledge(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) ([]dto.KnowledgeResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	chapter, err := s.findChapter(ctx, uow, userId, chapterId)
	if err != nil {
		return nil, err
	}
	points, err := uow.KnowledgeRepository().FindAll(ctx,
		specification.ByChapterID{ChapterID: chapter.Id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.KnowledgeResponse, 0, len(points))
	for _, k := range points {
		res = append(res, toKnowledgeResponse(k))
	}
	return res, nil
}

func (s *documentService) ChapterFigures(ctx context.Context, userId *uuid.UUID, chapterId uuid.UUID) ([]dto.FigureResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	chapter, err := s.findChapter(ctx, uow, userId, chapterId)
	if err != nil {
		return nil, err
	}
	figures, err := uow.FigureRepository().FindAll(ctx,
		specification.ByChapterID{ChapterID: chapter.Id},
		specification.OrderBy{Field: "page_number"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.FigureResponse, 0, len(figures))
	for _, f := range figures {
		url := ""
		if f.StoragePath != "" {
			url = s.storage.URL(f.StoragePath)
		}
		res = append(res, toFigureResponse(f, url))
	}
	return res, nil
}

func (s *documentService) Cards(ctx context.Context, userId *uuid.UUID, id uuid.UUID) ([]dto.CardResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}
	cards, err := uow.CardRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: doc.Id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]dto.CardResponse, 0, len(cards))
	for _, c := range cards {
		res = append(res, toCardResponse(c))
	}
	return res, nil
}
