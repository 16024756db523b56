package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docflash-be/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	listPriority = "priority"
	listNormal   = "normal"
	listDead     = "dead"

	maxTxRetries = 10
)

type RedisOptions struct {
	KeyPrefix     string
	RetryAttempts int
	HeartbeatTTL  time.Duration
	// FinishedTTL bounds how long terminal jobs stay queryable.
	FinishedTTL time.Duration
	// StaleAfter is how long a job may stay running before a new enqueue
	// for its document replaces it, even while its worker heartbeats.
	StaleAfter time.Duration
}

// RedisQueue keeps job records as JSON strings and job ids in two lists.
// Workers pop with BRPOP so the priority list is always drained first.
//
//	<prefix>:queue:{priority,normal,dead}   lists of job ids
//	<prefix>:job:<id>                       job JSON
//	<prefix>:document:<id>:job              active job id (SETNX claim)
//	<prefix>:document:<id>:last             most recent job id
//	<prefix>:worker:<id>                    heartbeat with TTL
type RedisQueue struct {
	rdb  *redis.Client
	opts RedisOptions
	now  func() time.Time
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	return redis.NewClient(opt)
}

func NewRedisQueue(rdb *redis.Client, opts RedisOptions) *RedisQueue {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "docflash"
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.HeartbeatTTL <= 0 {
		opts.HeartbeatTTL = 30 * time.Second
	}
	if opts.FinishedTTL <= 0 {
		opts.FinishedTTL = 7 * 24 * time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	return &RedisQueue{rdb: rdb, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

func (q *RedisQueue) listKey(name string) string {
	return fmt.Sprintf("%s:queue:%s", q.opts.KeyPrefix, name)
}

func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", q.opts.KeyPrefix, id)
}

func (q *RedisQueue) claimKey(documentID uuid.UUID) string {
	return fmt.Sprintf("%s:document:%s:job", q.opts.KeyPrefix, documentID)
}

func (q *RedisQueue) lastKey(documentID uuid.UUID) string {
	return fmt.Sprintf("%s:document:%s:last", q.opts.KeyPrefix, documentID)
}

func (q *RedisQueue) workerKey(id string) string {
	return fmt.Sprintf("%s:worker:%s", q.opts.KeyPrefix, id)
}

func (q *RedisQueue) targetList(job *Job) string {
	if job.Priority {
		return q.listKey(listPriority)
	}
	return q.listKey(listNormal)
}

func unavailable(jobID string, err error) error {
	return &apperr.QueueError{Kind: apperr.QueueUnavailable, JobID: jobID, Err: err}
}

func (q *RedisQueue) Enqueue(ctx context.Context, documentID uuid.UUID, opts EnqueueOptions) (string, error) {
	retries := opts.RetryAttempts
	if retries <= 0 {
		retries = q.opts.RetryAttempts
	}

	var supersedes string
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		now := q.now()
		job := &Job{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Priority:    opts.Priority,
			Status:      StatusQueued,
			MaxAttempts: retries + 1,
			Supersedes:  supersedes,
			EnqueuedAt:  now,
			UpdatedAt:   now,
		}

		claimed, err := q.rdb.SetNX(ctx, q.claimKey(documentID), job.ID, 0).Result()
		if err != nil {
			return "", unavailable("", err)
		}

		if claimed {
			data, err := json.Marshal(job)
			if err != nil {
				return "", err
			}
			_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, q.jobKey(job.ID), data, 0)
				pipe.Set(ctx, q.lastKey(documentID), job.ID, 0)
				pipe.LPush(ctx, q.targetList(job), job.ID)
				return nil
			})
			if err != nil {
				return "", unavailable(job.ID, err)
			}
			return job.ID, nil
		}

		existingID, err := q.rdb.Get(ctx, q.claimKey(documentID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", unavailable("", err)
		}

		reused, replaced, err := q.reuse(ctx, existingID, documentID, opts.Priority)
		if err != nil {
			return "", err
		}
		if reused {
			return existingID, nil
		}
		if replaced != "" {
			supersedes = replaced
		}
	}
	return "", &apperr.QueueError{Kind: apperr.QueueConflict, Err: errors.New("could not claim document")}
}

// reuse keeps an existing active job, optionally upgrading it to the priority
// list. A claim pointing at a finished or missing job is dropped so the
// caller can claim again. A running job whose worker is gone is failed and
// its id returned as replaced.
func (q *RedisQueue) reuse(ctx context.Context, jobID string, documentID uuid.UUID, priority bool) (bool, string, error) {
	job, err := q.load(ctx, q.rdb, jobID)
	if err != nil && !isNotFound(err) {
		return false, "", err
	}
	if job == nil || !job.Status.Active() || job.CancelRequested {
		if err := q.releaseClaim(ctx, documentID, jobID); err != nil {
			return false, "", err
		}
		return false, "", nil
	}

	reason, err := q.staleReason(ctx, job)
	if err != nil {
		return false, "", err
	}
	if reason != "" {
		if err := q.abandon(ctx, job, reason); err != nil {
			return false, "", err
		}
		return false, job.ID, nil
	}

	if priority && !job.Priority && job.Status.Runnable() {
		_, err := q.update(ctx, jobID, func(j *Job, pipe redis.Pipeliner) error {
			if j.Priority || !j.Status.Runnable() {
				return nil
			}
			j.Priority = true
			// the stale entry left on the normal list is skipped at dequeue
			pipe.LPush(ctx, q.listKey(listPriority), j.ID)
			return nil
		})
		if err != nil {
			return false, "", err
		}
	}
	return true, "", nil
}

// staleReason explains why a running job can no longer be expected to
// finish. It is empty while the job's worker still heartbeats.
func (q *RedisQueue) staleReason(ctx context.Context, job *Job) (string, error) {
	if job.Status != StatusRunning {
		return "", nil
	}
	if job.StartedAt != nil && q.now().Sub(*job.StartedAt) > q.opts.StaleAfter {
		return fmt.Sprintf("running for more than %s", q.opts.StaleAfter), nil
	}
	if job.WorkerID == "" {
		return "running without a worker", nil
	}
	n, err := q.rdb.Exists(ctx, q.workerKey(job.WorkerID)).Result()
	if err != nil {
		return "", unavailable(job.ID, err)
	}
	if n == 0 {
		return fmt.Sprintf("worker %s stopped heartbeating", job.WorkerID), nil
	}
	return "", nil
}

// abandon fails a stale running job and frees its document.
func (q *RedisQueue) abandon(ctx context.Context, stale *Job, reason string) error {
	job, err := q.update(ctx, stale.ID, func(j *Job, pipe redis.Pipeliner) error {
		if j.Status != StatusRunning || j.WorkerID != stale.WorkerID {
			return nil
		}
		now := q.now()
		j.Status = StatusFailed
		j.LastError = reason
		j.Errors = append(j.Errors, reason)
		j.FinishedAt = &now
		pipe.LPush(ctx, q.listKey(listDead), j.ID)
		return nil
	})
	if err != nil {
		return err
	}
	if job.Status.Active() {
		return nil
	}
	return q.finish(ctx, job)
}

func (q *RedisQueue) Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*Job, error) {
	deadline := q.now().Add(timeout)

	for {
		wait := deadline.Sub(q.now())
		if wait <= 0 {
			return nil, nil
		}
		if wait < time.Second {
			wait = time.Second
		}

		res, err := q.rdb.BRPop(ctx, wait, q.listKey(listPriority), q.listKey(listNormal)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, unavailable("", err)
		}

		jobID := res[1]
		started := false
		job, err := q.update(ctx, jobID, func(j *Job, pipe redis.Pipeliner) error {
			if !j.Status.Runnable() || j.CancelRequested {
				return nil
			}
			now := q.now()
			j.Status = StatusRunning
			j.Attempts++
			j.WorkerID = workerID
			j.StartedAt = &now
			started = true
			// the worker counts as alive from the moment it takes a job
			pipe.Set(ctx, q.workerKey(workerID), now.Format(time.RFC3339), q.opts.HeartbeatTTL)
			return nil
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if started {
			return job, nil
		}
	}
}

func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	job, err := q.update(ctx, jobID, func(j *Job, pipe redis.Pipeliner) error {
		if !j.Status.Active() {
			return finished(j)
		}
		now := q.now()
		j.Status = StatusCompleted
		j.FinishedAt = &now
		j.CancelRequested = false
		return nil
	})
	if err != nil {
		return err
	}
	return q.finish(ctx, job)
}

func (q *RedisQueue) Retry(ctx context.Context, jobID string, cause error) (*Job, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	job, err := q.update(ctx, jobID, func(j *Job, pipe redis.Pipeliner) error {
		if !j.Status.Active() {
			return finished(j)
		}
		now := q.now()
		j.LastError = msg
		j.Errors = append(j.Errors, msg)

		switch {
		case j.CancelRequested || errors.Is(cause, apperr.ErrCancelled):
			j.Status = StatusCancelled
			j.FinishedAt = &now
		case apperr.Retryable(cause) && !j.Exhausted():
			j.Status = StatusRetrying
			j.WorkerID = ""
			pipe.LPush(ctx, q.targetList(j), j.ID)
		default:
			j.Status = StatusFailed
			j.FinishedAt = &now
			pipe.LPush(ctx, q.listKey(listDead), j.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !job.Status.Active() {
		if err := q.finish(ctx, job); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (q *RedisQueue) Cancel(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.update(ctx, jobID, func(j *Job, pipe redis.Pipeliner) error {
		switch {
		case j.Status.Runnable():
			now := q.now()
			j.Status = StatusCancelled
			j.FinishedAt = &now
		case j.Status == StatusRunning:
			// picked up by the pipeline between stages
			j.CancelRequested = true
		default:
			return finished(j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.Status == StatusCancelled {
		if err := q.finish(ctx, job); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (q *RedisQueue) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	job, err := q.Job(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.CancelRequested || job.Status == StatusCancelled, nil
}

func (q *RedisQueue) Job(ctx context.Context, jobID string) (*Job, error) {
	return q.load(ctx, q.rdb, jobID)
}

func (q *RedisQueue) JobForDocument(ctx context.Context, documentID uuid.UUID) (*Job, error) {
	jobID, err := q.rdb.Get(ctx, q.claimKey(documentID)).Result()
	if errors.Is(err, redis.Nil) {
		jobID, err = q.rdb.Get(ctx, q.lastKey(documentID)).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, &apperr.QueueError{Kind: apperr.QueueNotFound, Err: fmt.Errorf("no job for document %s", documentID)}
	}
	if err != nil {
		return nil, unavailable("", err)
	}
	return q.load(ctx, q.rdb, jobID)
}

func (q *RedisQueue) Heartbeat(ctx context.Context, workerID string) error {
	if err := q.rdb.Set(ctx, q.workerKey(workerID), q.now().Format(time.RFC3339), q.opts.HeartbeatTTL).Err(); err != nil {
		return unavailable("", err)
	}
	return nil
}

func (q *RedisQueue) Health(ctx context.Context) Health {
	h := Health{
		Status:       Healthy,
		QueueLengths: map[string]int64{},
		CheckedAt:    q.now(),
	}

	if err := q.rdb.Ping(ctx).Err(); err != nil {
		h.Status = Unavailable
		h.Message = err.Error()
		return h
	}

	for _, name := range []string{listPriority, listNormal, listDead} {
		n, err := q.rdb.LLen(ctx, q.listKey(name)).Result()
		if err != nil {
			h.Status = Degraded
			h.Message = err.Error()
			continue
		}
		h.QueueLengths[name] = n
	}

	workers, err := q.countWorkers(ctx)
	if err != nil {
		h.Status = Degraded
		h.Message = err.Error()
		return h
	}
	h.Workers = workers
	if workers == 0 && h.Status == Healthy {
		h.Status = Degraded
		h.Message = "no live workers"
	}
	return h
}

func (q *RedisQueue) countWorkers(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := q.rdb.Scan(ctx, cursor, q.workerKey("*"), 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// finish releases the document claim and puts a TTL on the job record.
func (q *RedisQueue) finish(ctx context.Context, job *Job) error {
	if err := q.releaseClaim(ctx, job.DocumentID, job.ID); err != nil {
		return err
	}
	if err := q.rdb.Expire(ctx, q.jobKey(job.ID), q.opts.FinishedTTL).Err(); err != nil {
		return unavailable(job.ID, err)
	}
	return nil
}

// releaseClaim deletes the document claim only while it still names jobID.
func (q *RedisQueue) releaseClaim(ctx context.Context, documentID uuid.UUID, jobID string) error {
	key := q.claimKey(documentID)
	err := q.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != jobID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return unavailable(jobID, err)
	}
	return nil
}

type jobReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (q *RedisQueue) load(ctx context.Context, r jobReader, jobID string) (*Job, error) {
	data, err := r.Get(ctx, q.jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &apperr.QueueError{Kind: apperr.QueueNotFound, JobID: jobID}
	}
	if err != nil {
		return nil, unavailable(jobID, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// update applies fn to the stored job inside WATCH/MULTI so concurrent
// writers never lose each other's changes. fn may queue extra commands on
// pipe; they run in the same transaction.
func (q *RedisQueue) update(ctx context.Context, jobID string, fn func(*Job, redis.Pipeliner) error) (*Job, error) {
	key := q.jobKey(jobID)
	var result *Job

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := q.rdb.Watch(ctx, func(tx *redis.Tx) error {
			job, err := q.load(ctx, tx, jobID)
			if err != nil {
				return err
			}
			before, _ := json.Marshal(job)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if err := fn(job, pipe); err != nil {
					return err
				}
				after, err := json.Marshal(job)
				if err != nil {
					return err
				}
				if string(after) != string(before) {
					job.UpdatedAt = q.now()
					after, _ = json.Marshal(job)
					pipe.Set(ctx, key, after, redis.KeepTTL)
				}
				return nil
			})
			if err != nil {
				return err
			}
			result = job
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var queueErr *apperr.QueueError
			if errors.As(err, &queueErr) {
				return nil, err
			}
			return nil, unavailable(jobID, err)
		}
		return result, nil
	}
	return nil, &apperr.QueueError{Kind: apperr.QueueConflict, JobID: jobID, Err: errors.New("too much contention")}
}

// finished rejects changes to a job that already reached a terminal state,
// including one replaced after its worker went away.
func finished(j *Job) error {
	return &apperr.QueueError{Kind: apperr.QueueConflict, JobID: j.ID, Err: fmt.Errorf("job already %s", j.Status)}
}

func isNotFound(err error) bool {
	var queueErr *apperr.QueueError
	return errors.As(err, &queueErr) && queueErr.Kind == apperr.QueueNotFound
}
