package service

import (
	"context"
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/memory"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/pkg/queue"

	"github.com/google/uuid"
)

type IQueueService interface {
	Enqueue(ctx context.Context, userId *uuid.UUID, req *dto.EnqueueRequest) (*dto.EnqueueResponse, error)
	Job(ctx context.Context, jobId string) (*dto.JobResponse, error)
	JobForDocument(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.JobResponse, error)
	Cancel(ctx context.Context, jobId string) (*dto.JobResponse, error)
	Health(ctx context.Context) *dto.QueueHealthResponse
}

type queueService struct {
	uowFactory    unitofwork.RepositoryFactory
	queue         queue.TaskQueue
	health        *memory.HealthRepository
	healthTimeout time.Duration
	retryAttempts int
	logger        logger.ILogger
}

func NewQueueService(
	uowFactory unitofwork.RepositoryFactory,
	taskQueue queue.TaskQueue,
	health *memory.HealthRepository,
	healthTimeout time.Duration,
	retryAttempts int,
	logger logger.ILogger,
) IQueueService {
	return &queueService{
		uowFactory:    uowFactory,
		queue:         taskQueue,
		health:        health,
		healthTimeout: healthTimeout,
		retryAttempts: retryAttempts,
		logger:        logger,
	}
}

func (s *queueService) Enqueue(ctx context.Context, userId *uuid.UUID, req *dto.EnqueueRequest) (*dto.EnqueueResponse, error) {
	doc, err := s.uowFactory.NewUnitOfWork(ctx).DocumentRepository().FindOne(ctx, specification.ByID{ID: req.DocumentId})
	if err != nil {
		return nil, err
	}
	if doc == nil || !ownedBy(doc.UserId, userId) {
		return nil, apperr.NewNotFound("document")
	}

	retries := req.RetryAttempts
	if retries <= 0 {
		retries = s.retryAttempts
	}
	jobId, err := s.queue.Enqueue(ctx, doc.Id, queue.EnqueueOptions{Priority: req.Priority, RetryAttempts: retries})
	if err != nil {
		return nil, err
	}
	s.health.Invalidate()

	return &dto.EnqueueResponse{JobId: jobId, DocumentId: doc.Id}, nil
}

func (s *queueService) Job(ctx context.Context, jobId string) (*dto.JobResponse, error) {
	job, err := s.queue.Job(ctx, jobId)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

func (s *queueService) JobForDocument(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.JobResponse, error) {
	doc, err := s.uowFactory.NewUnitOfWork(ctx).DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, err
	}
	if doc == nil || !ownedBy(doc.UserId, userId) {
		return nil, apperr.NewNotFound("document")
	}
	job, err := s.queue.JobForDocument(ctx, documentId)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

func (s *queueService) Cancel(ctx context.Context, jobId string) (*dto.JobResponse, error) {
	job, err := s.queue.Cancel(ctx, jobId)
	if err != nil {
		return nil, err
	}
	s.health.Invalidate()
	s.logger.Info("QUEUE", "Job cancel requested", map[string]interface{}{
		"job_id":      job.ID,
		"document_id": job.DocumentID.String(),
		"status":      string(job.Status),
	})
	return toJobResponse(job), nil
}

// Health never fails; a broker that cannot be reached shows up as the
// unavailable status.
func (s *queueService) Health(ctx context.Context) *dto.QueueHealthResponse {
	h, ok := s.health.Get()
	if !ok {
		hctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
		defer cancel()
		h = s.queue.Health(hctx)
		s.health.Save(h)
		if h.Status != queue.Healthy {
			s.logger.Warn("QUEUE", "Queue not healthy", map[string]interface{}{
				"status":  string(h.Status),
				"message": h.Message,
			})
		}
	}

	return &dto.QueueHealthResponse{
		Status:       string(h.Status),
		QueueLengths: h.QueueLengths,
		Workers:      h.Workers,
		Message:      h.Message,
		CheckedAt:    h.CheckedAt,
	}
}
