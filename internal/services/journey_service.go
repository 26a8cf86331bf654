package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/internal/journey"
	"github.com/paulexconde/journeys/internal/models"
	"github.com/paulexconde/journeys/internal/pkg/log"
	"github.com/paulexconde/journeys/internal/pkg/paginator"
	"github.com/paulexconde/journeys/pkg/fault"
)

// A page submitted by a member.
type StepSubmission struct {
	JourneyID      uuid.UUID
	CurrentPageKey string
	// Left empty, the next page is resolved by the PageRouter.
	NextPageKey     string
	QuestionForm    *journey.QuestionForm
	CheckboxesLists []journey.CheckboxesList
	GenericData     []journey.GenericData
	SubmittedAt     time.Time
}

// Records members' progress through their journeys.
type JourneyService interface {
	// Starts a new journey on its first page.
	Start(ctx context.Context, currentPageKey, nextPageKey string, at time.Time) (*journey.JourneyBranch, error)
	// Records a page, forking a new branch when the member went back to an earlier page.
	Submit(ctx context.Context, submission StepSubmission) (*journey.JourneyBranch, error)
	// Returns the page that leads to pageKey.
	PreviousPageKey(ctx context.Context, journeyID uuid.UUID, pageKey string) (string, bool, error)
	QuestionForm(ctx context.Context, journeyID uuid.UUID, pageKey string) (journey.QuestionForm, error)
	MarkDeadEnd(ctx context.Context, journeyID uuid.UUID, pageKey string) error
	RemoveStepsStartingWith(ctx context.Context, journeyID uuid.UUID, pageKey string) error
	// Collapses the active branch to a single step.
	ResetToHub(ctx context.Context, journeyID uuid.UUID, hubPageKey, nextPageKey string, at time.Time) error
	// Pages through every branch of a journey, oldest first.
	Branches(ctx context.Context, journeyID uuid.UUID, page, limit int) (*paginator.PaginatedResponse[models.JourneyBranch], error)
	// Removes a journey with all of its branches.
	Delete(ctx context.Context, journeyID uuid.UUID) error
}

type journeyServiceImpl struct {
	repo   BranchRepository
	router PageRouter
}

// Instantiate the JourneyService.
func NewJourneyService(repo BranchRepository, router PageRouter) JourneyService {
	return &journeyServiceImpl{repo: repo, router: router}
}

func (s *journeyServiceImpl) Start(ctx context.Context, currentPageKey, nextPageKey string, at time.Time) (*journey.JourneyBranch, error) {
	branch := journey.NewJourneyBranch(uuid.New(), journey.NewJourneyStep(currentPageKey, nextPageKey, at))

	if err := s.repo.Save(ctx, branch); err != nil {
		return nil, fmt.Errorf("start journey: %w", err)
	}

	log.WithFields(map[string]any{"journey": branch.JourneyID, "page": currentPageKey}).Debug("journey started")
	return branch, nil
}

func (s *journeyServiceImpl) Submit(ctx context.Context, sub StepSubmission) (*journey.JourneyBranch, error) {
	branch, err := s.repo.ActiveBranch(ctx, sub.JourneyID)
	if err != nil {
		return nil, err
	}

	step, err := s.buildStep(branch, sub)
	if err != nil {
		return nil, err
	}

	// a page recorded without a known target is completed in place
	if pending := branch.StepWithNextPageKeyNotSet(step); pending != nil {
		branch.UpdateNextPageKeyValue(pending, step)
		pending.RenewUpdateDate(sub.SubmittedAt)
		if step.QuestionForm != nil {
			pending.UpdateQuestionForm(*step.QuestionForm)
		}
		for _, list := range step.CheckboxesLists {
			pending.AddCheckboxesList(list)
		}
		pending.AppendGenericDataList(step.GenericDataList)
		if err := s.repo.Save(ctx, branch); err != nil {
			return nil, fmt.Errorf("resolve page %q: %w", sub.CurrentPageKey, err)
		}
		return branch, nil
	}

	fork, err := branch.ShouldCreateNewBranch(sub.CurrentPageKey)
	if err != nil {
		return nil, err
	}

	if fork {
		forked, err := journey.CreateFromBase(branch, sub.CurrentPageKey)
		if err != nil {
			return nil, err
		}
		branch.Deactivate()

		log.WithFields(map[string]any{
			"journey": branch.JourneyID,
			"page":    sub.CurrentPageKey,
			"branch":  forked.SequenceNumber,
		}).Debug("journey branch forked")
		branch = forked
	}

	if !branch.SubmitStep(step) {
		log.WithFields(map[string]any{
			"journey": branch.JourneyID,
			"page":    step.CurrentPageKey,
			"next":    step.NextPageKey,
		}).Debug("step leads back to a recorded page, not appended")
	}

	save := s.repo.Save
	if fork {
		save = s.repo.SaveFork
	}
	if err := save(ctx, branch); err != nil {
		return nil, fmt.Errorf("submit page %q: %w", sub.CurrentPageKey, err)
	}

	return branch, nil
}

func (s *journeyServiceImpl) buildStep(branch *journey.JourneyBranch, sub StepSubmission) (*journey.JourneyStep, error) {
	step := journey.NewJourneyStep(sub.CurrentPageKey, sub.NextPageKey, sub.SubmittedAt)
	if sub.QuestionForm != nil {
		step.UpdateQuestionForm(*sub.QuestionForm)
	}
	for _, list := range sub.CheckboxesLists {
		step.AddCheckboxesList(list)
	}
	step.AppendGenericDataList(sub.GenericData)

	if step.NextPageKey == "" {
		answers := AnswersFrom(branch)
		addStepAnswers(answers, step)

		next, err := s.router.NextPageKey(sub.CurrentPageKey, answers)
		if err != nil {
			return nil, fault.NewInternalError("cannot resolve next page", err)
		}
		step.UpdateNextPageKey(next)
	}

	return step, nil
}

func (s *journeyServiceImpl) PreviousPageKey(ctx context.Context, journeyID uuid.UUID, pageKey string) (string, bool, error) {
	branch, err := s.repo.ActiveBranch(ctx, journeyID)
	if err != nil {
		return "", false, err
	}
	key, ok := branch.PreviousStepKey(pageKey)
	return key, ok, nil
}

func (s *journeyServiceImpl) QuestionForm(ctx context.Context, journeyID uuid.UUID, pageKey string) (journey.QuestionForm, error) {
	branch, err := s.repo.ActiveBranch(ctx, journeyID)
	if err != nil {
		return journey.QuestionForm{}, err
	}
	form, ok := branch.QuestionForm(pageKey)
	if !ok {
		return journey.QuestionForm{}, fault.NewClientError(fmt.Sprintf("page %q is not in the journey", pageKey), fault.ErrNotFound)
	}
	return form, nil
}

func (s *journeyServiceImpl) MarkDeadEnd(ctx context.Context, journeyID uuid.UUID, pageKey string) error {
	return s.update(ctx, journeyID, func(b *journey.JourneyBranch) {
		b.MarkNextPageAsDeadEnd(pageKey)
	})
}

func (s *journeyServiceImpl) RemoveStepsStartingWith(ctx context.Context, journeyID uuid.UUID, pageKey string) error {
	return s.update(ctx, journeyID, func(b *journey.JourneyBranch) {
		b.RemoveStepsStartingWith(pageKey)
	})
}

func (s *journeyServiceImpl) ResetToHub(ctx context.Context, journeyID uuid.UUID, hubPageKey, nextPageKey string, at time.Time) error {
	return s.update(ctx, journeyID, func(b *journey.JourneyBranch) {
		b.ReplaceAllStepsTo(journey.NewJourneyStep(hubPageKey, nextPageKey, at))
	})
}

func (s *journeyServiceImpl) Branches(ctx context.Context, journeyID uuid.UUID, page, limit int) (*paginator.PaginatedResponse[models.JourneyBranch], error) {
	res, err := s.repo.ListBranches(ctx, journeyID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list branches of journey %s: %w", journeyID, err)
	}
	return res, nil
}

func (s *journeyServiceImpl) Delete(ctx context.Context, journeyID uuid.UUID) error {
	if err := s.repo.DeleteJourney(ctx, journeyID); err != nil {
		return fmt.Errorf("delete journey %s: %w", journeyID, err)
	}

	log.WithFields(map[string]any{"journey": journeyID}).Debug("journey deleted")
	return nil
}

func (s *journeyServiceImpl) update(ctx context.Context, journeyID uuid.UUID, fn func(*journey.JourneyBranch)) error {
	branch, err := s.repo.ActiveBranch(ctx, journeyID)
	if err != nil {
		return err
	}
	fn(branch)
	return s.repo.Save(ctx, branch)
}
