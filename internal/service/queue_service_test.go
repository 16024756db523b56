package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/memory"
	"docflash-be/pkg/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueService(env *testEnv) IQueueService {
	return NewQueueService(env.factory, env.queue, memory.NewHealthRepository(time.Minute), time.Second, 1, logger.NewNopLogger())
}

func TestQueueService_EnqueueAndCancel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newQueueService(env)
	owner := uuid.New()
	res := env.upload(t, &owner, "a.txt", twoChapterText)

	_, err := svc.Enqueue(ctx, nil, &dto.EnqueueRequest{DocumentId: res.Id})
	var validationErr *apperr.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.True(t, validationErr.NotFound)

	_, err = svc.Enqueue(ctx, &owner, &dto.EnqueueRequest{DocumentId: uuid.New()})
	require.True(t, errors.As(err, &validationErr))

	again, err := svc.Enqueue(ctx, &owner, &dto.EnqueueRequest{DocumentId: res.Id})
	require.NoError(t, err)
	assert.Equal(t, res.JobId, again.JobId)

	job, err := svc.JobForDocument(ctx, &owner, res.Id)
	require.NoError(t, err)
	assert.Equal(t, res.JobId, job.Id)

	cancelled, err := svc.Cancel(ctx, res.JobId)
	require.NoError(t, err)
	assert.Equal(t, string(queue.StatusCancelled), cancelled.Status)

	_, err = svc.Job(ctx, "missing")
	var queueErr *apperr.QueueError
	require.True(t, errors.As(err, &queueErr))
	assert.Equal(t, apperr.QueueNotFound, queueErr.Kind)
}

func TestQueueService_HealthIsCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newQueueService(env)

	first := svc.Health(ctx)
	assert.NotEqual(t, string(queue.Unavailable), first.Status)

	env.mr.Close()
	cached := svc.Health(ctx)
	assert.Equal(t, first.Status, cached.Status)
	assert.Equal(t, first.CheckedAt, cached.CheckedAt)
}

func TestQueueService_HealthReportsOutage(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)
	env.mr.Close()

	h := svc.Health(context.Background())
	assert.Equal(t, string(queue.Unavailable), h.Status)
	assert.NotEmpty(t, h.Message)
}
