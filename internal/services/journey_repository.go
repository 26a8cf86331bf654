package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/paulexconde/journeys/internal/journey"
	"github.com/paulexconde/journeys/internal/models"
	"github.com/paulexconde/journeys/internal/pkg/paginator"
	"github.com/paulexconde/journeys/internal/pkg/store"
	"github.com/paulexconde/journeys/pkg/fault"
)

const (
	branchColumns = "id, journey_id, sequence_number, is_active, created_at"
	stepColumns   = "id, branch_id, current_page_key, next_page_key, submit_date, update_date, sequence_number, position, " +
		"has_question_form, question_key, answer_key, answer_value, checkboxes_lists, generic_data, is_next_page_as_dead_end"
)

const upsertBranchQuery = `
	INSERT INTO journey_branches (id, journey_id, sequence_number, is_active, created_at)
	VALUES (:id, :journey_id, :sequence_number, :is_active, :created_at)
	ON CONFLICT (id) DO UPDATE SET
		sequence_number = EXCLUDED.sequence_number,
		is_active = EXCLUDED.is_active`

const insertStepsQuery = `
	INSERT INTO journey_steps (` + stepColumns + `)
	VALUES (:id, :branch_id, :current_page_key, :next_page_key, :submit_date, :update_date, :sequence_number, :position,
		:has_question_form, :question_key, :answer_key, :answer_value, :checkboxes_lists, :generic_data, :is_next_page_as_dead_end)`

const deactivateOthersQuery = `
	UPDATE journey_branches SET is_active = FALSE
	WHERE journey_id = $1 AND id <> $2 AND is_active`

// Loads and saves journey branches.
type BranchRepository interface {
	ActiveBranch(ctx context.Context, journeyID uuid.UUID) (*journey.JourneyBranch, error)
	Branch(ctx context.Context, id uuid.UUID) (*journey.JourneyBranch, error)
	// Saves the branch and all of its steps atomically.
	Save(ctx context.Context, branch *journey.JourneyBranch) error
	// Saves a freshly forked branch and deactivates every other branch of its
	// journey in the same transaction.
	SaveFork(ctx context.Context, branch *journey.JourneyBranch) error
	BranchIDsWithDeadEnds(ctx context.Context) ([]uuid.UUID, error)
	// Pages through every branch of a journey, oldest first.
	ListBranches(ctx context.Context, journeyID uuid.UUID, page, limit int) (*paginator.PaginatedResponse[models.JourneyBranch], error)
	// Removes every branch of a journey along with their steps.
	DeleteJourney(ctx context.Context, journeyID uuid.UUID) error
}

type JourneyRepository struct {
	branches  store.Datastorer[models.JourneyBranch]
	steps     store.Datastorer[models.JourneyStep]
	paginator paginator.Paginator[models.JourneyBranch]
	now       func() time.Time
}

func NewJourneyRepository(db *sqlx.DB, pageSize int) *JourneyRepository {
	branches := store.NewDataStore[models.JourneyBranch](db, "journey_branches")
	return &JourneyRepository{
		branches:  branches,
		steps:     store.NewDataStore[models.JourneyStep](db, "journey_steps"),
		paginator: paginator.NewPaginator[models.JourneyBranch](branches, pageSize),
		now:       time.Now,
	}
}

func (r *JourneyRepository) ActiveBranch(ctx context.Context, journeyID uuid.UUID) (*journey.JourneyBranch, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM journey_branches WHERE journey_id = $1 AND is_active ORDER BY sequence_number DESC LIMIT 1",
		branchColumns,
	)
	return r.load(ctx, query, journeyID)
}

func (r *JourneyRepository) Branch(ctx context.Context, id uuid.UUID) (*journey.JourneyBranch, error) {
	query := fmt.Sprintf("SELECT %s FROM journey_branches WHERE id = $1", branchColumns)
	return r.load(ctx, query, id)
}

func (r *JourneyRepository) load(ctx context.Context, query string, arg any) (*journey.JourneyBranch, error) {
	row, err := r.branches.Get(ctx, query, arg)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return nil, fault.NewClientError(fmt.Sprintf("no journey branch for %v", arg), fault.ErrBranchNotFound)
		}
		return nil, err
	}

	steps, err := r.steps.Select(ctx,
		fmt.Sprintf("SELECT %s FROM journey_steps WHERE branch_id = $1 ORDER BY position", stepColumns),
		row.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load steps of branch %s: %w", row.ID, err)
	}

	return models.ToJourneyBranch(*row, steps), nil
}

func (r *JourneyRepository) Save(ctx context.Context, branch *journey.JourneyBranch) error {
	return r.branches.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.saveTx(ctx, tx, branch)
	})
}

func (r *JourneyRepository) SaveFork(ctx context.Context, branch *journey.JourneyBranch) error {
	return r.branches.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.saveTx(ctx, tx, branch); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deactivateOthersQuery, branch.JourneyID, branch.ID); err != nil {
			return fmt.Errorf("deactivate other branches of journey %s: %w", branch.JourneyID, err)
		}
		return nil
	})
}

// saveTx upserts the branch and rewrites its steps.
func (r *JourneyRepository) saveTx(ctx context.Context, tx *sqlx.Tx, branch *journey.JourneyBranch) error {
	row, steps := models.FromJourneyBranch(branch, r.now())

	if _, err := tx.NamedExecContext(ctx, upsertBranchQuery, row); err != nil {
		return fmt.Errorf("save branch %s: %w", branch.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM journey_steps WHERE branch_id = $1", branch.ID); err != nil {
		return fmt.Errorf("clear steps of branch %s: %w", branch.ID, err)
	}
	if len(steps) == 0 {
		return nil
	}
	if _, err := tx.NamedExecContext(ctx, insertStepsQuery, steps); err != nil {
		return fmt.Errorf("save steps of branch %s: %w", branch.ID, err)
	}
	return nil
}

func (r *JourneyRepository) BranchIDsWithDeadEnds(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.branches.Select(ctx, fmt.Sprintf(`
		SELECT %s FROM journey_branches b
		WHERE EXISTS (SELECT 1 FROM journey_steps s WHERE s.branch_id = b.id AND s.is_next_page_as_dead_end)`,
		branchColumns,
	))
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *JourneyRepository) ListBranches(ctx context.Context, journeyID uuid.UUID, page, limit int) (*paginator.PaginatedResponse[models.JourneyBranch], error) {
	query := fmt.Sprintf("SELECT %s FROM journey_branches WHERE journey_id = $1 ORDER BY sequence_number", branchColumns)
	return r.paginator.PaginateQuery(ctx, query, []any{journeyID}, page, limit)
}

// Steps follow their branches by cascade.
func (r *JourneyRepository) DeleteJourney(ctx context.Context, journeyID uuid.UUID) error {
	return r.branches.DeleteWhere(ctx, "journey_id", journeyID)
}
