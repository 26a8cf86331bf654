package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/internal/pkg/log"
	"github.com/paulexconde/journeys/internal/pkg/workerpool"
)

// Prunes abandoned steps from branches that carry a dead-end marker.
type Janitor struct {
	repo       BranchRepository
	pool       *workerpool.WorkerPool
	retries    int
	retryDelay time.Duration
}

type JanitorReport struct {
	Queued  int
	Dropped int
	Failed  int
}

func NewJanitor(repo BranchRepository, pool *workerpool.WorkerPool, retries int, retryDelay time.Duration) *Janitor {
	return &Janitor{repo: repo, pool: pool, retries: retries, retryDelay: retryDelay}
}

// Run queues one pruning job per affected branch and waits for the pool to
// finish them. Branches left unqueued when ctx ends count as dropped. The pool
// is shut down when Run returns.
func (j *Janitor) Run(ctx context.Context) (JanitorReport, error) {
	ids, err := j.repo.BranchIDsWithDeadEnds(ctx)
	if err != nil {
		return JanitorReport{}, errors.Join(fmt.Errorf("list dead-end branches: %w", err), j.pool.Shutdown(ctx))
	}

	var report JanitorReport
	var failed atomic.Int32

	for i, id := range ids {
		job := workerpool.WithRetry(j.retries, j.retryDelay, j.pruneJob(id), func(err error) {
			failed.Add(1)
			log.WithFields(map[string]any{"branch": id}).Errorf("pruning dead end failed: %v", err)
		})
		// waits for room so a backlog larger than the queue drains in one run
		if err := j.pool.SubmitWait(ctx, job); err != nil {
			report.Dropped = len(ids) - i
			log.Warnf("janitor stopped queueing: %v", err)
			break
		}
		report.Queued++
	}

	err = j.pool.Shutdown(ctx)
	report.Failed = int(failed.Load())

	log.Infof("janitor queued %d branches, dropped %d, failed %d", report.Queued, report.Dropped, report.Failed)
	return report, err
}

func (j *Janitor) pruneJob(id uuid.UUID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		branch, err := j.repo.Branch(ctx, id)
		if err != nil {
			return err
		}
		if !branch.HasDeadEnd() {
			return nil
		}

		branch.RemoveDeadEndSteps()
		return j.repo.Save(ctx, branch)
	}
}
