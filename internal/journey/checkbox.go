package journey

type Checkbox struct {
	Key         string  `json:"key"`
	AnswerValue bool    `json:"answerValue"`
	Answer      *string `json:"answer,omitempty"`
}

// A named group of checkboxes answered on one page.
//
// CheckboxesListKey is unique within a step.
type CheckboxesList struct {
	CheckboxesListKey string     `json:"checkboxesListKey"`
	Checkboxes        []Checkbox `json:"checkboxes"`
}

func NewCheckboxesList(key string, checkboxes ...Checkbox) CheckboxesList {
	return CheckboxesList{CheckboxesListKey: key, Checkboxes: checkboxes}
}

func (l CheckboxesList) Duplicate() CheckboxesList {
	dup := CheckboxesList{CheckboxesListKey: l.CheckboxesListKey}
	if l.Checkboxes != nil {
		dup.Checkboxes = make([]Checkbox, len(l.Checkboxes))
		for i, c := range l.Checkboxes {
			dup.Checkboxes[i] = Checkbox{Key: c.Key, AnswerValue: c.AnswerValue, Answer: clonePtr(c.Answer)}
		}
	}
	return dup
}

// Free-form JSON payload recorded against a step.
type GenericData struct {
	FormKey string `json:"formKey"`
	JSON    string `json:"json"`
}
