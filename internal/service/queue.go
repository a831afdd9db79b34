package service

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Job struct {
	ID     string
	UserID string
	Run    func(ctx context.Context) error
	Ctx    context.Context
	Done   chan error
}

// NewJob wraps run so it can be handed to a JobQueue.
func NewJob(ctx context.Context, id, userID string, run func(ctx context.Context) error) *Job {
	return &Job{
		ID:     id,
		UserID: userID,
		Run:    run,
		Ctx:    ctx,
		Done:   make(chan error, 1),
	}
}

// JobQueue runs jobs on a fixed number of workers.
type JobQueue struct {
	jobs    chan *Job
	running atomic.Int32
	workers int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewJobQueue initializes a new job queue that buffers at most size jobs
// waiting for a worker
func NewJobQueue(workers, size int) *JobQueue {
	zap.L().Debug("Initializing job queue", zap.Int("workers", workers), zap.Int("size", size))

	return &JobQueue{
		jobs:    make(chan *Job, size),
		workers: workers,
		closed:  make(chan struct{}),
	}
}

func (q *JobQueue) StartWorkerPool() {
	for range q.workers {
		go q.worker()
	}
}

func (q *JobQueue) worker() {
	for {
		select {
		case <-q.closed:
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *JobQueue) run(job *Job) {
	defer q.running.Add(-1)

	var err error
	if cerr := job.Ctx.Err(); cerr != nil {
		err = cerr
	} else {
		err = job.Run(job.Ctx)
	}

	job.Done <- err
	close(job.Done)

	if err != nil {
		zap.L().Error("Job finished with an error",
			zap.String("user_id", job.UserID),
			zap.String("job_id", job.ID),
			zap.Error(err))
	} else {
		zap.L().Debug("Job finished successfully", zap.String("job_id", job.ID))
	}
}

// Enqueue blocks until a worker slot is free in the buffer, ctx is done or
// the queue is closed. A job accepted just before Close still gets an
// answer on Done.
func (q *JobQueue) Enqueue(ctx context.Context, job *Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	q.running.Add(1)

	select {
	case q.jobs <- job:
		select {
		case <-q.closed:
			q.drain()
		default:
		}

		zap.L().Debug("New job enqueued", zap.Int32("enqueued", q.running.Load()), zap.String("user_id", job.UserID))
		return nil
	case <-ctx.Done():
		q.running.Add(-1)
		return ctx.Err()
	case <-q.closed:
		q.running.Add(-1)
		return ErrQueueClosed
	}
}

// drain fails every job still waiting in the buffer.
func (q *JobQueue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.running.Add(-1)
			job.Done <- ErrQueueClosed
			close(job.Done)

			zap.L().Debug("Dropped queued job", zap.String("job_id", job.ID), zap.String("user_id", job.UserID))
		default:
			return
		}
	}
}

// Running returns the number of queued and running jobs.
func (q *JobQueue) Running() int32 {
	return q.running.Load()
}

// Close stops the workers once their current job is done and fails the
// jobs nobody picked up yet.
func (q *JobQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		q.drain()
	})
}
