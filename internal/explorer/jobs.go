package explorer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrJobsClosed = errors.New("job queue is closed")
)

type Job struct {
	ID        string
	Idea      string
	Depth     int
	Submitted time.Time
}

type Result struct {
	Job
	Stats Stats
	Err   error
}

// Jobs runs explorations in the background on a fixed number of workers.
type Jobs struct {
	explorer *Explorer
	logger   *slog.Logger
	done     func(Result)

	queue  chan Job
	mu     *sync.RWMutex
	closed bool
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewJobs creates a job queue holding up to size pending jobs. done is called from a
// worker goroutine when each job finishes.
func NewJobs(e *Explorer, size int, done func(Result), logger *slog.Logger) *Jobs {
	return &Jobs{
		explorer: e,
		logger:   logger,
		done:     done,
		queue:    make(chan Job, size),
		mu:       &sync.RWMutex{},
		wg:       &sync.WaitGroup{},
	}
}

// Submit queues the exploration of idea without waiting for it.
func (j *Jobs) Submit(idea string, depth int) (Job, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return Job{}, ErrJobsClosed
	}

	job := Job{ID: uuid.NewString(), Idea: idea, Depth: depth, Submitted: time.Now()}
	select {
	case j.queue <- job:
		j.logger.Info("job submitted", "id", job.ID, "idea", idea, "depth", depth)
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

// Pending is the number of jobs waiting for a worker.
func (j *Jobs) Pending() int {
	return len(j.queue)
}

// Start launches workers goroutines which run until Stop is called.
func (j *Jobs) Start(workers int) {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	for i := 1; i <= workers; i++ {
		j.wg.Add(1)
		go j.worker(ctx, i)
	}
}

// Stop cancels running explorations, drops pending jobs and blocks until every worker
// has exited.
func (j *Jobs) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Jobs) worker(ctx context.Context, id int) {
	defer j.wg.Done()
	logger := j.logger.With("worker", id)

	for job := range j.queue {
		if ctx.Err() != nil {
			logger.Info("dropping job", "id", job.ID, "idea", job.Idea)
			continue
		}

		logger.Info("job started", "id", job.ID, "idea", job.Idea, "waited", time.Since(job.Submitted))
		stats, err := j.explorer.Explore(ctx, job.Idea, job.Depth)
		if err != nil {
			logger.Warn("job failed", "id", job.ID, "idea", job.Idea, "err", err)
		} else {
			logger.Info("job finished", "id", job.ID, "idea", job.Idea,
				"generated", stats.Generated, "cached", stats.Cached, "failed", stats.Failed)
		}

		if j.done != nil {
			j.done(Result{Job: job, Stats: stats, Err: err})
		}
	}
}
