package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/journeys/internal/journey"
)

type JourneyBranch struct {
	ID             uuid.UUID `db:"id" json:"id"`
	JourneyID      uuid.UUID `db:"journey_id" json:"journey_id"`
	SequenceNumber int       `db:"sequence_number" json:"sequence_number"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type JourneyStep struct {
	ID                  uuid.UUID                       `db:"id" json:"id"`
	BranchID            uuid.UUID                       `db:"branch_id" json:"branch_id"`
	CurrentPageKey      string                          `db:"current_page_key" json:"current_page_key"`
	NextPageKey         string                          `db:"next_page_key" json:"next_page_key"`
	SubmitDate          time.Time                       `db:"submit_date" json:"submit_date"`
	UpdateDate          time.Time                       `db:"update_date" json:"update_date"`
	SequenceNumber      int                             `db:"sequence_number" json:"sequence_number"`
	Position            int                             `db:"position" json:"position"` // insertion order within the branch
	HasQuestionForm     bool                            `db:"has_question_form" json:"has_question_form"`
	QuestionKey         *string                         `db:"question_key" json:"question_key"`
	AnswerKey           *string                         `db:"answer_key" json:"answer_key"`
	AnswerValue         *string                         `db:"answer_value" json:"answer_value"`
	CheckboxesLists     JSONB[[]journey.CheckboxesList] `db:"checkboxes_lists" json:"checkboxes_lists"` // jsonb
	GenericData         JSONB[[]journey.GenericData]    `db:"generic_data" json:"generic_data"`         // jsonb
	IsNextPageAsDeadEnd bool                            `db:"is_next_page_as_dead_end" json:"is_next_page_as_dead_end"`
}

// ToJourneyBranch rebuilds the aggregate from its rows. Steps are expected
// in position order.
func ToJourneyBranch(row JourneyBranch, steps []JourneyStep) *journey.JourneyBranch {
	b := &journey.JourneyBranch{
		ID:             row.ID,
		JourneyID:      row.JourneyID,
		IsActive:       row.IsActive,
		SequenceNumber: row.SequenceNumber,
		JourneySteps:   make([]*journey.JourneyStep, 0, len(steps)),
	}

	for _, s := range steps {
		step := &journey.JourneyStep{
			ID:                  s.ID,
			CurrentPageKey:      s.CurrentPageKey,
			NextPageKey:         s.NextPageKey,
			SubmitDate:          s.SubmitDate,
			UpdateDate:          s.UpdateDate,
			SequenceNumber:      s.SequenceNumber,
			CheckboxesLists:     s.CheckboxesLists.V,
			GenericDataList:     s.GenericData.V,
			IsNextPageAsDeadEnd: s.IsNextPageAsDeadEnd,
		}
		if s.HasQuestionForm {
			step.QuestionForm = &journey.QuestionForm{
				QuestionKey: s.QuestionKey,
				AnswerKey:   s.AnswerKey,
				AnswerValue: s.AnswerValue,
			}
		}
		b.JourneySteps = append(b.JourneySteps, step)
	}

	return b
}

// FromJourneyBranch flattens the aggregate into rows.
func FromJourneyBranch(b *journey.JourneyBranch, createdAt time.Time) (JourneyBranch, []JourneyStep) {
	row := JourneyBranch{
		ID:             b.ID,
		JourneyID:      b.JourneyID,
		SequenceNumber: b.SequenceNumber,
		IsActive:       b.IsActive,
		CreatedAt:      createdAt,
	}

	steps := make([]JourneyStep, 0, len(b.JourneySteps))
	for i, s := range b.JourneySteps {
		stepRow := JourneyStep{
			ID:                  s.ID,
			BranchID:            b.ID,
			CurrentPageKey:      s.CurrentPageKey,
			NextPageKey:         s.NextPageKey,
			SubmitDate:          s.SubmitDate,
			UpdateDate:          s.UpdateDate,
			SequenceNumber:      s.SequenceNumber,
			Position:            i,
			CheckboxesLists:     JSONB[[]journey.CheckboxesList]{V: s.CheckboxesLists},
			GenericData:         JSONB[[]journey.GenericData]{V: s.GenericDataList},
			IsNextPageAsDeadEnd: s.IsNextPageAsDeadEnd,
		}
		if s.QuestionForm != nil {
			stepRow.HasQuestionForm = true
			stepRow.QuestionKey = s.QuestionForm.QuestionKey
			stepRow.AnswerKey = s.QuestionForm.AnswerKey
			stepRow.AnswerValue = s.QuestionForm.AnswerValue
		}
		steps = append(steps, stepRow)
	}

	return row, steps
}
