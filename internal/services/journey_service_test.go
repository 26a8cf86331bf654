package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/internal/journey"
	"github.com/paulexconde/journeys/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (JourneyService, *fakeRepository) {
	t.Helper()
	router, err := NewPageRouter(retirementRules()...)
	require.NoError(t, err)
	repo := newFakeRepository()
	return NewJourneyService(repo, router), repo
}

func submit(t *testing.T, svc JourneyService, journeyID uuid.UUID, current, next string) *journey.JourneyBranch {
	t.Helper()
	b, err := svc.Submit(context.Background(), StepSubmission{
		JourneyID:      journeyID,
		CurrentPageKey: current,
		NextPageKey:    next,
		SubmittedAt:    startedAt.Add(time.Minute),
	})
	require.NoError(t, err)
	return b
}

func keysOf(b *journey.JourneyBranch) []string {
	var keys []string
	for _, s := range b.OrderedSteps() {
		keys = append(keys, s.CurrentPageKey+">"+s.NextPageKey)
	}
	return keys
}

func TestJourneyService_SubmitForward(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)

	b := submit(t, svc, started.JourneyID, "retirement_date", "lump_sum")

	assert.Equal(t, started.ID, b.ID)
	assert.Equal(t, []string{"hub>retirement_date", "retirement_date>lump_sum"}, keysOf(b))
	assert.Equal(t, 2, b.LastStep().SequenceNumber)
}

func TestJourneyService_SubmitEarlierPageForks(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)
	submit(t, svc, started.JourneyID, "retirement_date", "lump_sum")
	submit(t, svc, started.JourneyID, "lump_sum", "summary")

	forked := submit(t, svc, started.JourneyID, "retirement_date", "pension_options")

	assert.NotEqual(t, started.ID, forked.ID)
	assert.Equal(t, 2, forked.SequenceNumber)
	assert.True(t, forked.IsActive)
	assert.Equal(t, []string{"hub>retirement_date", "retirement_date>pension_options"}, keysOf(forked))

	active, err := repo.ActiveBranch(ctx, started.JourneyID)
	require.NoError(t, err)
	assert.Equal(t, forked.ID, active.ID)

	old, err := repo.Branch(ctx, started.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Len(t, old.JourneySteps, 3, "the base branch keeps its steps")
	assert.Len(t, repo.branchesOf(started.JourneyID), 2)
}

func TestJourneyService_SubmitFirstPageForksEmptyBranch(t *testing.T) {
	svc, _ := newTestService(t)

	started, err := svc.Start(context.Background(), "hub", "retirement_date", startedAt)
	require.NoError(t, err)
	submit(t, svc, started.JourneyID, "retirement_date", "lump_sum")

	forked := submit(t, svc, started.JourneyID, "hub", "transfer")

	assert.Equal(t, []string{"hub>transfer"}, keysOf(forked))
	assert.Equal(t, 1, forked.FirstStep().SequenceNumber)
}

func TestJourneyService_SubmitUnknownPage(t *testing.T) {
	svc, _ := newTestService(t)

	started, err := svc.Start(context.Background(), "hub", "retirement_date", startedAt)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "somewhere_else",
		NextPageKey:    "x",
	})

	assert.True(t, fault.IsClientError(err))
	assert.ErrorIs(t, err, fault.ErrInvalidCurrentPageKey)
}

func TestJourneyService_SubmitUnknownJourney(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), StepSubmission{JourneyID: uuid.New(), CurrentPageKey: "hub"})

	assert.ErrorIs(t, err, fault.ErrBranchNotFound)
}

func TestJourneyService_RoutesAndResolvesPendingPage(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)

	form := journey.NewQuestionForm("retire_early", "yes", "2035")
	b, err := svc.Submit(ctx, StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "retirement_date",
		QuestionForm:   &form,
		SubmittedAt:    startedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "lump_sum", b.LastStep().NextPageKey)

	// the router cannot decide this page yet
	submit(t, svc, started.JourneyID, "lump_sum", "health_questions")
	b, err = svc.Submit(ctx, StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "health_questions",
		CheckboxesLists: []journey.CheckboxesList{
			journey.NewCheckboxesList("health", journey.Checkbox{Key: "smoker", AnswerValue: false}),
		},
		SubmittedAt: startedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, journey.NextPageKeyNotSet, b.LastStep().NextPageKey)

	// re-submitting the page with a known target completes it in place
	_, err = svc.Submit(ctx, StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "health_questions",
		NextPageKey:    "summary",
		CheckboxesLists: []journey.CheckboxesList{
			journey.NewCheckboxesList("health", journey.Checkbox{Key: "smoker", AnswerValue: true}),
		},
		GenericData: []journey.GenericData{{FormKey: "gp_details", JSON: `{"surgery":"High Street"}`}},
		SubmittedAt: startedAt.Add(time.Minute),
	})
	require.NoError(t, err)

	resolved, err := repo.ActiveBranch(ctx, started.JourneyID)
	require.NoError(t, err)
	assert.Equal(t, started.ID, resolved.ID)
	assert.Len(t, resolved.JourneySteps, 4)

	last := resolved.LastStep()
	assert.Equal(t, "summary", last.NextPageKey)
	assert.Equal(t, startedAt.Add(time.Minute), last.UpdateDate)

	health, ok := last.GetCheckboxesListByKey("health")
	require.True(t, ok)
	require.Len(t, health.Checkboxes, 1)
	assert.True(t, health.Checkboxes[0].AnswerValue)
	assert.Equal(t, []journey.GenericData{{FormKey: "gp_details", JSON: `{"surgery":"High Street"}`}}, last.GenericDataList)
}

func TestJourneyService_Queries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)
	form := journey.NewQuestionForm("retire_early", "no", "")
	_, err = svc.Submit(ctx, StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "retirement_date",
		QuestionForm:   &form,
	})
	require.NoError(t, err)

	prev, ok, err := svc.PreviousPageKey(ctx, started.JourneyID, "retirement_date")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hub", prev)

	_, ok, err = svc.PreviousPageKey(ctx, started.JourneyID, "hub")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.QuestionForm(ctx, started.JourneyID, "retirement_date")
	require.NoError(t, err)
	assert.Equal(t, "no", *got.AnswerKey)

	got, err = svc.QuestionForm(ctx, started.JourneyID, "hub")
	require.NoError(t, err)
	assert.True(t, got.IsBlank())

	_, err = svc.QuestionForm(ctx, started.JourneyID, "nowhere")
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.True(t, fault.IsClientError(err))
}

func TestJourneyService_Pruning(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "step1", startedAt)
	require.NoError(t, err)
	submit(t, svc, started.JourneyID, "step1", "step2")
	submit(t, svc, started.JourneyID, "step2", "step3")
	submit(t, svc, started.JourneyID, "step3", "step4")

	require.NoError(t, svc.RemoveStepsStartingWith(ctx, started.JourneyID, "step3"))
	b, err := repo.ActiveBranch(ctx, started.JourneyID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub>step1", "step1>step2", "step2>step3"}, keysOf(b))

	require.NoError(t, svc.ResetToHub(ctx, started.JourneyID, "hub", "t2", startedAt))
	b, err = repo.ActiveBranch(ctx, started.JourneyID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub>t2"}, keysOf(b))
}

func TestJourneyService_SaveFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.saveErr = errors.New("db down")

	_, err := svc.Start(context.Background(), "hub", "x", startedAt)

	assert.ErrorContains(t, err, "db down")
}

func TestJourneyService_ForkSaveFailureKeepsBaseActive(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)
	submit(t, svc, started.JourneyID, "retirement_date", "lump_sum")

	repo.saveErr = errors.New("db down")
	_, err = svc.Submit(ctx, StepSubmission{
		JourneyID:      started.JourneyID,
		CurrentPageKey: "retirement_date",
		NextPageKey:    "pension_options",
	})
	require.ErrorContains(t, err, "db down")
	repo.saveErr = nil

	branches := repo.branchesOf(started.JourneyID)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].IsActive)
	assert.Equal(t, started.ID, branches[0].ID)
}

func TestJourneyService_BranchesAndDelete(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, "hub", "retirement_date", startedAt)
	require.NoError(t, err)
	submit(t, svc, started.JourneyID, "retirement_date", "lump_sum")
	submit(t, svc, started.JourneyID, "hub", "transfer")
	submit(t, svc, started.JourneyID, "hub", "retirement_date")

	other, err := svc.Start(ctx, "hub", "x", startedAt)
	require.NoError(t, err)

	first, err := svc.Branches(ctx, started.JourneyID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalItems)
	assert.Equal(t, 2, first.TotalPages)
	require.NotNil(t, first.NextPage)
	require.Len(t, first.Items, 2)
	assert.Equal(t, started.ID, first.Items[0].ID)
	assert.False(t, first.Items[0].IsActive)

	second, err := svc.Branches(ctx, started.JourneyID, *first.NextPage, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 3, second.Items[0].SequenceNumber)
	assert.True(t, second.Items[0].IsActive)
	assert.Nil(t, second.NextPage)

	require.NoError(t, svc.Delete(ctx, started.JourneyID))

	_, err = repo.ActiveBranch(ctx, started.JourneyID)
	assert.ErrorIs(t, err, fault.ErrBranchNotFound)
	_, err = repo.ActiveBranch(ctx, other.JourneyID)
	assert.NoError(t, err)
}
