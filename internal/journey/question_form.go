package journey

// The answer given on a single page of a journey.
//
// Each field may be null. A form with all three fields null is a blank form,
// which is what a step without an attached form reports.
type QuestionForm struct {
	QuestionKey *string `json:"questionKey"`
	AnswerKey   *string `json:"answerKey"`
	AnswerValue *string `json:"answerValue"`
}

// NewQuestionForm builds a form with every field set.
func NewQuestionForm(questionKey, answerKey, answerValue string) QuestionForm {
	return QuestionForm{
		QuestionKey: &questionKey,
		AnswerKey:   &answerKey,
		AnswerValue: &answerValue,
	}
}

func (f QuestionForm) IsBlank() bool {
	return f.QuestionKey == nil && f.AnswerKey == nil && f.AnswerValue == nil
}

func (f QuestionForm) Duplicate() QuestionForm {
	return QuestionForm{
		QuestionKey: clonePtr(f.QuestionKey),
		AnswerKey:   clonePtr(f.AnswerKey),
		AnswerValue: clonePtr(f.AnswerValue),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
