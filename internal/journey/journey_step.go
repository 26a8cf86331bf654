package journey

import (
	"time"

	"github.com/google/uuid"
)

// One recorded transition CurrentPageKey -> NextPageKey in a journey branch.
type JourneyStep struct {
	ID                  uuid.UUID
	CurrentPageKey      string
	NextPageKey         string
	SubmitDate          time.Time
	UpdateDate          time.Time
	SequenceNumber      int
	QuestionForm        *QuestionForm
	CheckboxesLists     []CheckboxesList
	GenericDataList     []GenericData
	IsNextPageAsDeadEnd bool
}

// NewJourneyStep creates a step with sequence number 1. The form is optional.
func NewJourneyStep(currentPageKey, nextPageKey string, submitDate time.Time, form ...QuestionForm) *JourneyStep {
	step := &JourneyStep{
		ID:             uuid.New(),
		CurrentPageKey: currentPageKey,
		NextPageKey:    nextPageKey,
		SubmitDate:     submitDate,
		UpdateDate:     submitDate,
		SequenceNumber: 1,
	}
	if len(form) > 0 {
		f := form[0]
		step.QuestionForm = &f
	}
	return step
}

func (s *JourneyStep) UpdateNextPageKey(nextPageKey string) {
	s.NextPageKey = nextPageKey
}

func (s *JourneyStep) UpdateSequenceNumber(n int) {
	s.SequenceNumber = n
}

func (s *JourneyStep) MarkNextPageAsDeadEnd() {
	s.IsNextPageAsDeadEnd = true
}

func (s *JourneyStep) ClearNextPageAsDeadEnd() {
	s.IsNextPageAsDeadEnd = false
}

// UpdateQuestionForm attaches the form, replacing any previous one.
func (s *JourneyStep) UpdateQuestionForm(form QuestionForm) {
	s.QuestionForm = &form
}

// AddCheckboxesList replaces a list with the same key entirely, or appends.
func (s *JourneyStep) AddCheckboxesList(list CheckboxesList) {
	for i := range s.CheckboxesLists {
		if s.CheckboxesLists[i].CheckboxesListKey == list.CheckboxesListKey {
			s.CheckboxesLists[i] = list
			return
		}
	}
	s.CheckboxesLists = append(s.CheckboxesLists, list)
}

func (s *JourneyStep) GetCheckboxesListByKey(key string) (CheckboxesList, bool) {
	for _, l := range s.CheckboxesLists {
		if l.CheckboxesListKey == key {
			return l, true
		}
	}
	return CheckboxesList{}, false
}

func (s *JourneyStep) UpdateGenericData(formKey, json string) {
	s.GenericDataList = append(s.GenericDataList, GenericData{FormKey: formKey, JSON: json})
}

func (s *JourneyStep) AppendGenericDataList(list []GenericData) {
	s.GenericDataList = append(s.GenericDataList, list...)
}

func (s *JourneyStep) RenewUpdateDate(date time.Time) {
	s.UpdateDate = date
}

// Duplicate returns a deep copy of the step under a new ID.
// The dead-end marker is not carried over.
func (s *JourneyStep) Duplicate() *JourneyStep {
	dup := &JourneyStep{
		ID:             uuid.New(),
		CurrentPageKey: s.CurrentPageKey,
		NextPageKey:    s.NextPageKey,
		SubmitDate:     s.SubmitDate,
		UpdateDate:     s.UpdateDate,
		SequenceNumber: s.SequenceNumber,
	}
	if s.QuestionForm != nil {
		f := s.QuestionForm.Duplicate()
		dup.QuestionForm = &f
	}
	if s.CheckboxesLists != nil {
		dup.CheckboxesLists = make([]CheckboxesList, len(s.CheckboxesLists))
		for i, l := range s.CheckboxesLists {
			dup.CheckboxesLists[i] = l.Duplicate()
		}
	}
	if s.GenericDataList != nil {
		dup.GenericDataList = make([]GenericData, len(s.GenericDataList))
		copy(dup.GenericDataList, s.GenericDataList)
	}
	return dup
}
