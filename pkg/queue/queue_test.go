package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, retries int) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisQueue(rdb, RedisOptions{KeyPrefix: "test", RetryAttempts: retries}), mr
}

func TestEnqueue_PriorityFirst(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	normalDoc, priorityDoc := uuid.New(), uuid.New()
	_, err := q.Enqueue(ctx, normalDoc, EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, priorityDoc, EnqueueOptions{Priority: true})
	require.NoError(t, err)

	first, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, priorityDoc, first.DocumentID)
	assert.Equal(t, StatusRunning, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, "w1", first.WorkerID)

	second, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, normalDoc, second.DocumentID)
}

func TestEnqueue_ReusesActiveJob(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	doc := uuid.New()

	id1, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	job, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	// still running, so no second job
	id3, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, id1, id3)

	require.NoError(t, q.Ack(ctx, id1))

	id4, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)
}

func TestEnqueue_ReplacesJobOfDeadWorker(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, 1)
	doc := uuid.New()

	id, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	job, err := q.Dequeue(ctx, "dead-worker", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, q.Heartbeat(ctx, "dead-worker"))

	// the worker still heartbeats, so its job is kept
	again, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	mr.FastForward(time.Hour)

	replacement, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, id, replacement)

	old, err := q.Job(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, old.Status)
	assert.Contains(t, old.LastError, "dead-worker")
	require.NotNil(t, old.FinishedAt)

	current, err := q.JobForDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, replacement, current.ID)

	require.NoError(t, q.Heartbeat(ctx, "live-worker"))
	next, err := q.Dequeue(ctx, "live-worker", time.Second)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, replacement, next.ID)
	assert.Equal(t, id, next.Supersedes)

	// a late outcome from the dead worker is rejected
	var queueErr *apperr.QueueError
	err = q.Ack(ctx, id)
	require.True(t, errors.As(err, &queueErr))
	assert.Equal(t, apperr.QueueConflict, queueErr.Kind)
	_, err = q.Retry(ctx, id, errors.New("late"))
	require.True(t, errors.As(err, &queueErr))

	require.NoError(t, q.Ack(ctx, replacement))
	assert.Equal(t, 1, q.Health(ctx).Workers)
}

func TestEnqueue_ReplacesOverdueJob(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	q.opts.StaleAfter = time.Minute
	doc := uuid.New()

	id, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Heartbeat(ctx, "w1"))

	later := time.Now().UTC().Add(2 * time.Minute)
	q.now = func() time.Time { return later }

	replacement, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, id, replacement)

	old, err := q.Job(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, old.Status)
	assert.Contains(t, old.LastError, "running for more than")
}

func TestEnqueue_PriorityUpgrade(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	doc := uuid.New()

	id, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)
	again, err := q.Enqueue(ctx, doc, EnqueueOptions{Priority: true})
	require.NoError(t, err)
	require.Equal(t, id, again)

	job, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.Priority)

	// the leftover normal entry is skipped
	next, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestDequeue_TimeoutReturnsNil(t *testing.T) {
	q, _ := newTestQueue(t, 1)

	job, err := q.Dequeue(context.Background(), "w1", time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetry_RequeuesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)
	doc := uuid.New()

	id, err := q.Enqueue(ctx, doc, EnqueueOptions{})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	updated, err := q.Retry(ctx, id, errors.New("db went away"))
	require.NoError(t, err)
	assert.Equal(t, StatusRetrying, updated.Status)
	assert.Equal(t, "db went away", updated.LastError)

	job, err = q.Dequeue(ctx, "w2", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)

	updated, err = q.Retry(ctx, id, errors.New("db still gone"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.Equal(t, []string{"db went away", "db still gone"}, updated.Errors)
	assert.NotNil(t, updated.FinishedAt)

	health := q.Health(ctx)
	assert.Equal(t, int64(1), health.QueueLengths[listDead])

	last, err := q.JobForDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, id, last.ID)
	assert.Equal(t, StatusFailed, last.Status)
}

func TestRetry_TerminalErrorFailsAtOnce(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	id, err := q.Enqueue(ctx, uuid.New(), EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)

	cause := &apperr.ProcessingError{Stage: "parse", Err: &apperr.ParseError{Path: "x.pdf", Kind: apperr.ParseCorrupt}}
	updated, err := q.Retry(ctx, id, cause)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.Equal(t, 1, updated.Attempts)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	queuedID, err := q.Enqueue(ctx, uuid.New(), EnqueueOptions{})
	require.NoError(t, err)
	job, err := q.Cancel(ctx, queuedID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)

	next, err := q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	assert.Nil(t, next)

	_, err = q.Cancel(ctx, queuedID)
	var queueErr *apperr.QueueError
	require.True(t, errors.As(err, &queueErr))
	assert.Equal(t, apperr.QueueConflict, queueErr.Kind)

	runningID, err := q.Enqueue(ctx, uuid.New(), EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)

	job, err = q.Cancel(ctx, runningID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)

	requested, err := q.CancelRequested(ctx, runningID)
	require.NoError(t, err)
	assert.True(t, requested)

	job, err = q.Retry(ctx, runningID, apperr.ErrCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
}

func TestJob_NotFound(t *testing.T) {
	q, _ := newTestQueue(t, 1)

	_, err := q.Job(context.Background(), "missing")
	var queueErr *apperr.QueueError
	require.True(t, errors.As(err, &queueErr))
	assert.Equal(t, apperr.QueueNotFound, queueErr.Kind)

	_, err = q.JobForDocument(context.Background(), uuid.New())
	require.True(t, errors.As(err, &queueErr))
	assert.Equal(t, apperr.QueueNotFound, queueErr.Kind)
}

func TestHealth_States(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, 1)

	_, err := q.Enqueue(ctx, uuid.New(), EnqueueOptions{})
	require.NoError(t, err)

	h := q.Health(ctx)
	assert.Equal(t, Degraded, h.Status)
	assert.Equal(t, int64(1), h.QueueLengths[listNormal])

	require.NoError(t, q.Heartbeat(ctx, "w1"))
	h = q.Health(ctx)
	assert.Equal(t, Healthy, h.Status)
	assert.Equal(t, 1, h.Workers)

	mr.FastForward(time.Minute)
	assert.Equal(t, Degraded, q.Health(ctx).Status)

	mr.Close()
	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h = q.Health(hctx)
	assert.Equal(t, Unavailable, h.Status)
	assert.NotEmpty(t, h.Message)
}

func TestPool_ProcessesJobs(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	okDoc, badDoc := uuid.New(), uuid.New()
	okID, err := q.Enqueue(ctx, okDoc, EnqueueOptions{})
	require.NoError(t, err)
	badID, err := q.Enqueue(ctx, badDoc, EnqueueOptions{})
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		exhausted []string
	)
	handler := func(ctx context.Context, job *Job) error {
		if job.DocumentID == badDoc {
			panic("boom")
		}
		return nil
	}
	onExhausted := func(ctx context.Context, job *Job, cause error) {
		mu.Lock()
		defer mu.Unlock()
		exhausted = append(exhausted, job.ID)
	}

	pool := NewPool(q, handler, onExhausted, PoolOptions{Concurrency: 2, PollTimeout: time.Second, Name: "test"}, logger.NewNopLogger())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ok, err := q.Job(context.Background(), okID)
		if err != nil || ok.Status != StatusCompleted {
			return false
		}
		bad, err := q.Job(context.Background(), badID)
		return err == nil && bad.Status == StatusFailed
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{badID}, exhausted)

	bad, err := q.Job(context.Background(), badID)
	require.NoError(t, err)
	assert.Equal(t, 2, bad.Attempts)
	assert.Contains(t, bad.LastError, "panic: boom")
}
