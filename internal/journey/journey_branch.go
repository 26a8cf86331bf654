package journey

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/pkg/fault"
)

const (
	// NextPageKeyNotSet marks a step whose target page is not known yet.
	NextPageKeyNotSet = "next_page_is_not_set"
	// LifetimeAllowancePageKey is the page key of the lifetime allowance sub-step.
	LifetimeAllowancePageKey = "lta_details"
)

// The path a member has taken through a journey.
//
// Steps form a forward chain: each step's CurrentPageKey is the NextPageKey
// of the step before it. Re-answering an earlier page forks a new branch
// (see CreateFromBase) instead of rewriting this one. All branches forked
// from the same root share a JourneyID.
type JourneyBranch struct {
	ID             uuid.UUID
	JourneyID      uuid.UUID
	IsActive       bool
	SequenceNumber int
	JourneySteps   []*JourneyStep
}

// NewJourneyBranch creates the first, active branch of a journey.
func NewJourneyBranch(journeyID uuid.UUID, step *JourneyStep) *JourneyBranch {
	return &JourneyBranch{
		ID:             uuid.New(),
		JourneyID:      journeyID,
		IsActive:       true,
		SequenceNumber: 1,
		JourneySteps:   []*JourneyStep{step},
	}
}

// CreateFromBase forks base at currentPageKey. The new branch holds
// duplicates of every step before the fork point, so forking at the first
// page yields an empty branch.
//
// Forking is only valid where base.ShouldCreateNewBranch(currentPageKey)
// reports true; anything else is an invalid operation.
func CreateFromBase(base *JourneyBranch, currentPageKey string) (*JourneyBranch, error) {
	shouldFork, err := base.ShouldCreateNewBranch(currentPageKey)
	if err != nil || !shouldFork {
		return nil, fault.NewInternalError(
			fmt.Sprintf("cannot fork branch %s at page %q", base.ID, currentPageKey),
			fault.ErrInvalidOperation,
		)
	}

	steps := []*JourneyStep{}
	for _, s := range base.OrderedSteps() {
		if s.CurrentPageKey == currentPageKey {
			break
		}
		steps = append(steps, s.Duplicate())
	}

	return &JourneyBranch{
		ID:             uuid.New(),
		JourneyID:      base.JourneyID,
		IsActive:       true,
		SequenceNumber: base.SequenceNumber + 1,
		JourneySteps:   steps,
	}, nil
}

// MustCreateFromBase is like CreateFromBase but panics on an invalid fork.
func MustCreateFromBase(base *JourneyBranch, currentPageKey string) *JourneyBranch {
	b, err := CreateFromBase(base, currentPageKey)
	if err != nil {
		panic(err)
	}
	return b
}

// OrderedSteps returns the steps sorted by sequence number. Steps sharing a
// number keep their insertion order.
func (b *JourneyBranch) OrderedSteps() []*JourneyStep {
	steps := slices.Clone(b.JourneySteps)
	slices.SortStableFunc(steps, func(x, y *JourneyStep) int {
		return cmp.Compare(x.SequenceNumber, y.SequenceNumber)
	})
	return steps
}

// SubmitStep appends step with the next sequence number. It does nothing when
// the branch already passed through step.NextPageKey, which keeps the branch
// free of return paths. Reports whether the step was appended.
func (b *JourneyBranch) SubmitStep(step *JourneyStep) bool {
	for _, s := range b.JourneySteps {
		if s.CurrentPageKey == step.NextPageKey {
			return false
		}
	}

	step.UpdateSequenceNumber(b.maxSequenceNumber() + 1)
	b.JourneySteps = append(b.JourneySteps, step)
	return true
}

// ShouldCreateNewBranch reports whether submitting currentPageKey needs a fork.
// Moving forward from the last step does not; returning to a page already in
// the branch does. Any other key is a client error.
func (b *JourneyBranch) ShouldCreateNewBranch(currentPageKey string) (bool, error) {
	if last := b.LastStep(); last != nil && last.NextPageKey == currentPageKey {
		return false, nil
	}
	if b.GetStepByKey(currentPageKey) != nil {
		return true, nil
	}
	return false, fault.NewClientError(`Invalid "currentPageKey"`, fault.ErrInvalidCurrentPageKey)
}

func (b *JourneyBranch) FirstStep() *JourneyStep {
	steps := b.OrderedSteps()
	if len(steps) == 0 {
		return nil
	}
	return steps[0]
}

func (b *JourneyBranch) LastStep() *JourneyStep {
	steps := b.OrderedSteps()
	if len(steps) == 0 {
		return nil
	}
	return steps[len(steps)-1]
}

// PreviousStep returns the step leading to pageKey, or nil.
func (b *JourneyBranch) PreviousStep(pageKey string) *JourneyStep {
	steps := b.OrderedSteps()
	if len(steps) > 0 && steps[0].CurrentPageKey == pageKey {
		return nil
	}
	for _, s := range steps {
		if s.NextPageKey == pageKey {
			return s
		}
	}
	return nil
}

func (b *JourneyBranch) PreviousStepKey(pageKey string) (string, bool) {
	if s := b.PreviousStep(pageKey); s != nil {
		return s.CurrentPageKey, true
	}
	return "", false
}

// GetNextStepFrom returns the step recorded on step's target page, or nil
// when step is the last one.
func (b *JourneyBranch) GetNextStepFrom(step *JourneyStep) *JourneyStep {
	steps := b.OrderedSteps()
	if len(steps) == 0 || steps[len(steps)-1].ID == step.ID {
		return nil
	}
	for _, s := range steps {
		if s.CurrentPageKey == step.NextPageKey {
			return s
		}
	}
	return nil
}

func (b *JourneyBranch) GetStepByKey(pageKey string) *JourneyStep {
	for _, s := range b.OrderedSteps() {
		if s.CurrentPageKey == pageKey {
			return s
		}
	}
	return nil
}

// FindStepUsingCurrentPageKeys returns the one step whose CurrentPageKey is in
// keys. No match is (nil, nil); more than one match is an ErrAmbiguousMatch.
func (b *JourneyBranch) FindStepUsingCurrentPageKeys(keys []string) (*JourneyStep, error) {
	return b.findUnique(keys, func(s *JourneyStep) string { return s.CurrentPageKey })
}

// FindStepUsingNextPageKeys is FindStepUsingCurrentPageKeys matched on NextPageKey.
func (b *JourneyBranch) FindStepUsingNextPageKeys(keys []string) (*JourneyStep, error) {
	return b.findUnique(keys, func(s *JourneyStep) string { return s.NextPageKey })
}

func (b *JourneyBranch) MustFindStepUsingCurrentPageKeys(keys []string) *JourneyStep {
	s, err := b.FindStepUsingCurrentPageKeys(keys)
	if err != nil {
		panic(err)
	}
	return s
}

func (b *JourneyBranch) MustFindStepUsingNextPageKeys(keys []string) *JourneyStep {
	s, err := b.FindStepUsingNextPageKeys(keys)
	if err != nil {
		panic(err)
	}
	return s
}

func (b *JourneyBranch) findUnique(keys []string, key func(*JourneyStep) string) (*JourneyStep, error) {
	var found []*JourneyStep
	for _, s := range b.OrderedSteps() {
		if slices.Contains(keys, key(s)) {
			found = append(found, s)
		}
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fault.NewInternalError(
			fmt.Sprintf("%d steps in branch %s match page keys %v", len(found), b.ID, keys),
			fault.ErrAmbiguousMatch,
		)
	}
}

// RemoveStepsStartingWith drops the step on pageKey and every later step.
// The first step is never removed.
func (b *JourneyBranch) RemoveStepsStartingWith(pageKey string) {
	steps := b.OrderedSteps()
	idx := slices.IndexFunc(steps, func(s *JourneyStep) bool { return s.CurrentPageKey == pageKey })
	if idx <= 0 {
		return
	}
	b.removeSteps(steps[idx:])
}

// MarkNextPageAsDeadEnd marks the first step on pageKey, in sequence order,
// and clears the marker on every other step. A branch holds at most one dead
// end, even when several steps share the page.
func (b *JourneyBranch) MarkNextPageAsDeadEnd(pageKey string) {
	target := b.GetStepByKey(pageKey)
	for _, s := range b.JourneySteps {
		if s == target {
			s.MarkNextPageAsDeadEnd()
		} else {
			s.ClearNextPageAsDeadEnd()
		}
	}
}

// RemoveDeadEndSteps drops the dead-end step and every later step. Remaining
// sequence numbers are left as they are.
func (b *JourneyBranch) RemoveDeadEndSteps() {
	steps := b.OrderedSteps()
	idx := slices.IndexFunc(steps, func(s *JourneyStep) bool { return s.IsNextPageAsDeadEnd })
	if idx < 0 {
		return
	}
	b.removeSteps(steps[idx:])
}

func (b *JourneyBranch) HasDeadEnd() bool {
	return slices.ContainsFunc(b.JourneySteps, func(s *JourneyStep) bool { return s.IsNextPageAsDeadEnd })
}

// ReplaceAllStepsTo resets the branch to the single given step.
func (b *JourneyBranch) ReplaceAllStepsTo(step *JourneyStep) {
	b.JourneySteps = []*JourneyStep{step}
}

// UpdateNextPageKeyValue points step at the page newStep leads to.
func (b *JourneyBranch) UpdateNextPageKeyValue(step, newStep *JourneyStep) {
	step.UpdateNextPageKey(newStep.NextPageKey)
}

// StepWithNextPageKeyNotSet returns the step recorded on newStep's page whose
// target is still NextPageKeyNotSet, or nil.
func (b *JourneyBranch) StepWithNextPageKeyNotSet(newStep *JourneyStep) *JourneyStep {
	for _, s := range b.OrderedSteps() {
		if s.NextPageKey == NextPageKeyNotSet && s.CurrentPageKey == newStep.CurrentPageKey {
			return s
		}
	}
	return nil
}

// QuestionForm returns the form recorded on pageKey. A step without a form
// yields a blank form; ok is false only when no step is on pageKey.
func (b *JourneyBranch) QuestionForm(pageKey string) (form QuestionForm, ok bool) {
	s := b.GetStepByKey(pageKey)
	if s == nil {
		return QuestionForm{}, false
	}
	if s.QuestionForm == nil {
		return QuestionForm{}, true
	}
	return *s.QuestionForm, true
}

// QuestionForms yields the attached forms in step order.
func (b *JourneyBranch) QuestionForms() iter.Seq[QuestionForm] {
	return func(yield func(QuestionForm) bool) {
		for _, s := range b.OrderedSteps() {
			if s.QuestionForm == nil {
				continue
			}
			if !yield(*s.QuestionForm) {
				return
			}
		}
	}
}

func (b *JourneyBranch) HasLifetimeAllowance() bool {
	return b.GetStepByKey(LifetimeAllowancePageKey) != nil
}

func (b *JourneyBranch) Activate() bool {
	b.IsActive = true
	return b.IsActive
}

func (b *JourneyBranch) Deactivate() bool {
	b.IsActive = false
	return b.IsActive
}

func (b *JourneyBranch) maxSequenceNumber() int {
	highest := 0
	for _, s := range b.JourneySteps {
		highest = max(highest, s.SequenceNumber)
	}
	return highest
}

func (b *JourneyBranch) removeSteps(steps []*JourneyStep) {
	b.JourneySteps = slices.DeleteFunc(b.JourneySteps, func(s *JourneyStep) bool {
		return slices.Contains(steps, s)
	})
}
