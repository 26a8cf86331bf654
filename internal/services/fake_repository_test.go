package services

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/internal/journey"
	"github.com/paulexconde/journeys/internal/models"
	"github.com/paulexconde/journeys/internal/pkg/paginator"
	"github.com/paulexconde/journeys/pkg/fault"
)

// fakeRepository keeps branches as rows, so every load hands out a fresh copy.
type fakeRepository struct {
	mu       sync.Mutex
	branches map[uuid.UUID]models.JourneyBranch
	steps    map[uuid.UUID][]models.JourneyStep
	saves    int
	saveErr  error
	listErr  error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		branches: make(map[uuid.UUID]models.JourneyBranch),
		steps:    make(map[uuid.UUID][]models.JourneyStep),
	}
}

func (f *fakeRepository) ActiveBranch(ctx context.Context, journeyID uuid.UUID) (*journey.JourneyBranch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var active *models.JourneyBranch
	for _, b := range f.branches {
		if b.JourneyID == journeyID && b.IsActive && (active == nil || b.SequenceNumber > active.SequenceNumber) {
			b := b
			active = &b
		}
	}
	if active == nil {
		return nil, fault.NewClientError("no active branch", fault.ErrBranchNotFound)
	}
	return models.ToJourneyBranch(*active, f.steps[active.ID]), nil
}

func (f *fakeRepository) Branch(ctx context.Context, id uuid.UUID) (*journey.JourneyBranch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.branches[id]
	if !ok {
		return nil, fault.NewClientError("no branch", fault.ErrBranchNotFound)
	}
	return models.ToJourneyBranch(b, f.steps[id]), nil
}

func (f *fakeRepository) Save(ctx context.Context, branch *journey.JourneyBranch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.save(branch)
}

// SaveFork either applies both writes or neither.
func (f *fakeRepository) SaveFork(ctx context.Context, branch *journey.JourneyBranch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.save(branch); err != nil {
		return err
	}
	for id, b := range f.branches {
		if b.JourneyID == branch.JourneyID && id != branch.ID {
			b.IsActive = false
			f.branches[id] = b
		}
	}
	return nil
}

func (f *fakeRepository) save(branch *journey.JourneyBranch) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	row, steps := models.FromJourneyBranch(branch, time.Now())
	f.branches[branch.ID] = row
	f.steps[branch.ID] = steps
	f.saves++
	return nil
}

func (f *fakeRepository) BranchIDsWithDeadEnds(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []uuid.UUID
	for id, steps := range f.steps {
		for _, s := range steps {
			if s.IsNextPageAsDeadEnd {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeRepository) ListBranches(ctx context.Context, journeyID uuid.UUID, page, limit int) (*paginator.PaginatedResponse[models.JourneyBranch], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []models.JourneyBranch
	for _, b := range f.branches {
		if b.JourneyID == journeyID {
			rows = append(rows, b)
		}
	}
	slices.SortFunc(rows, func(a, b models.JourneyBranch) int { return cmp.Compare(a.SequenceNumber, b.SequenceNumber) })

	from := min((page-1)*limit, len(rows))
	to := min(from+limit, len(rows))
	res := &paginator.PaginatedResponse[models.JourneyBranch]{
		Items:       rows[from:to],
		CurrentPage: page,
		TotalPages:  (len(rows) + limit - 1) / limit,
		TotalItems:  len(rows),
	}
	if page < res.TotalPages {
		next := page + 1
		res.NextPage = &next
	}
	return res, nil
}

func (f *fakeRepository) DeleteJourney(ctx context.Context, journeyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, b := range f.branches {
		if b.JourneyID == journeyID {
			delete(f.branches, id)
			delete(f.steps, id)
		}
	}
	return nil
}

func (f *fakeRepository) branchesOf(journeyID uuid.UUID) []*journey.JourneyBranch {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*journey.JourneyBranch
	for id, b := range f.branches {
		if b.JourneyID == journeyID {
			out = append(out, models.ToJourneyBranch(b, f.steps[id]))
		}
	}
	return out
}
