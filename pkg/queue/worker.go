package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
)

// Handler runs one job. A nil return acks the job; an error goes through
// Retry.
type Handler func(ctx context.Context, job *Job) error

// ExhaustedHook is called once a job has failed for good or was cancelled.
type ExhaustedHook func(ctx context.Context, job *Job, cause error)

type PoolOptions struct {
	Concurrency       int
	PollTimeout       time.Duration
	HeartbeatInterval time.Duration
	// Name prefixes worker ids; defaults to the hostname.
	Name string
}

type Pool struct {
	queue       TaskQueue
	handler     Handler
	onExhausted ExhaustedHook
	opts        PoolOptions
	log         logger.ILogger
}

func NewPool(q TaskQueue, handler Handler, onExhausted ExhaustedHook, opts PoolOptions, log logger.ILogger) *Pool {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		opts.Name = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Pool{queue: q, handler: handler, onExhausted: onExhausted, opts: opts, log: log}
}

// Run starts the workers and blocks until ctx is done and every in-flight
// job has returned.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("Queue", "Starting worker pool", map[string]interface{}{
		"concurrency": p.opts.Concurrency,
		"name":        p.opts.Name,
	})

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", p.opts.Name, i+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runLoop(ctx, workerID)
		}()
	}
	wg.Wait()

	p.log.Info("Queue", "Worker pool stopped", map[string]interface{}{"name": p.opts.Name})
}

func (p *Pool) runLoop(ctx context.Context, workerID string) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go p.heartbeat(hbCtx, workerID)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx, workerID, p.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("Queue", "Dequeue failed", map[string]interface{}{"worker_id": workerID, "error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, workerID, job)
	}
}

func (p *Pool) heartbeat(ctx context.Context, workerID string) {
	ticker := time.NewTicker(p.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := p.queue.Heartbeat(ctx, workerID); err != nil && ctx.Err() == nil {
			p.log.Warn("Queue", "Heartbeat failed", map[string]interface{}{"worker_id": workerID, "error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID string, job *Job) {
	details := map[string]interface{}{
		"worker_id":   workerID,
		"job_id":      job.ID,
		"document_id": job.DocumentID.String(),
		"attempt":     job.Attempts,
	}
	p.log.Info("Queue", "Job started", details)

	runErr := p.safeRun(ctx, job)

	// the job outcome must be recorded even while shutting down
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if runErr == nil {
		if err := p.queue.Ack(recordCtx, job.ID); err != nil {
			p.logRecordFailure("Ack failed", details, err)
			return
		}
		p.log.Info("Queue", "Job completed", details)
		return
	}

	updated, err := p.queue.Retry(recordCtx, job.ID, runErr)
	if err != nil {
		p.logRecordFailure("Recording failure failed", details, err)
		return
	}

	details = withErr(details, runErr)
	details["status"] = string(updated.Status)
	if updated.Status.Active() {
		p.log.Warn("Queue", "Job failed, requeued", details)
		return
	}

	p.log.Error("Queue", "Job failed permanently", details)
	if p.onExhausted != nil {
		p.onExhausted(recordCtx, updated, runErr)
	}
}

// logRecordFailure downgrades the expected case of a job that was replaced
// while this worker looked dead.
func (p *Pool) logRecordFailure(message string, details map[string]interface{}, err error) {
	var queueErr *apperr.QueueError
	if errors.As(err, &queueErr) && queueErr.Kind == apperr.QueueConflict {
		p.log.Warn("Queue", "Job outcome discarded", withErr(details, err))
		return
	}
	p.log.Error("Queue", message, withErr(details, err))
}

func (p *Pool) safeRun(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, job)
}

func withErr(details map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
