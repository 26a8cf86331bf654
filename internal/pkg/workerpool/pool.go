package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/paulexconde/journeys/internal/pkg/log"
)

type Job func(ctx context.Context)

type WorkerPool struct {
	queue chan Job
	wg    sync.WaitGroup
}

func NewWorkerPool(ctx context.Context, workerCount int, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
	}

	for i := range workerCount {
		go pool.worker(ctx, i)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Debugf("worker %d received shutdown signal", id)
			p.drain()
			return
		case job, ok := <-p.queue:
			if !ok {
				// queue closed
				return
			}
			job(ctx) // jobs watch the same cancellation context
			p.wg.Done()
		}
	}
}

// drain releases queued jobs that will never run.
func (p *WorkerPool) drain() {
	for {
		select {
		case _, ok := <-p.queue:
			if !ok {
				return
			}
			p.wg.Done()
		default:
			return
		}
	}
}

// Submit queues job without blocking. It reports false when the queue is
// full and the job was dropped.
func (p *WorkerPool) Submit(job Job) bool {
	p.wg.Add(1)
	select {
	case p.queue <- job:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full: job dropped")
		return false
	}
}

// SubmitWait queues job, blocking until the queue has room or ctx is done.
func (p *WorkerPool) SubmitWait(ctx context.Context, job Job) error {
	p.wg.Add(1)
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones until ctx is done.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	close(p.queue)

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		log.Warn("worker pool shutdown timed out")
		return ctx.Err()
	case <-done:
		log.Debug("worker pool shutdown complete")
		return nil
	}
}

// WithRetry runs job up to retries times, sleeping delay between attempts.
// onFailure, if set, receives the last error once every attempt failed.
func WithRetry(retries int, delay time.Duration, job func(ctx context.Context) error, onFailure func(error)) Job {
	return func(ctx context.Context) {
		var err error
		for i := range retries {
			if ctx.Err() != nil {
				log.Warn("job canceled before execution")
				return
			}

			if err = job(ctx); err == nil {
				return // success
			}
			log.Warnf("job failed (attempt %d/%d): %v", i+1, retries, err)

			if i < retries-1 {
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
			}
		}
		log.Errorf("job failed after max retries: %v", err)
		if onFailure != nil {
			onFailure(err)
		}
	}
}
