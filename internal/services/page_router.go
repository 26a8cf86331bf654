package services

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/paulexconde/journeys/internal/journey"
)

// The conditional next page after a page is answered.
//
// Basically it determines what page will be shown based
// on the answers given so far in the branch.
type ConditionalNext struct {
	Expression  string
	NextPageKey string
}

// Routing for one page. Conditionals are tried in order; Default is used
// when none matches.
type PageRule struct {
	PageKey      string
	Conditionals []ConditionalNext
	Default      string
}

// Resolves the page that follows a submitted page.
type PageRouter interface {
	// Returns journey.NextPageKeyNotSet when the target cannot be decided yet.
	NextPageKey(pageKey string, answers map[string]any) (string, error)
}

type compiledConditional struct {
	program     *vm.Program
	nextPageKey string
}

type pageRouterImpl struct {
	rules    map[string][]compiledConditional
	defaults map[string]string
}

// Instantiate the PageRouter. Every expression is compiled up front.
func NewPageRouter(rules ...PageRule) (PageRouter, error) {
	r := &pageRouterImpl{
		rules:    make(map[string][]compiledConditional, len(rules)),
		defaults: make(map[string]string, len(rules)),
	}

	for _, rule := range rules {
		if _, dup := r.rules[rule.PageKey]; dup {
			return nil, fmt.Errorf("duplicate rule for page %q", rule.PageKey)
		}

		compiled := make([]compiledConditional, 0, len(rule.Conditionals))
		for _, cond := range rule.Conditionals {
			program, err := expr.Compile(cond.Expression, expr.AllowUndefinedVariables())
			if err != nil {
				return nil, fmt.Errorf("page %q: %w", rule.PageKey, err)
			}
			compiled = append(compiled, compiledConditional{program: program, nextPageKey: cond.NextPageKey})
		}

		r.rules[rule.PageKey] = compiled
		r.defaults[rule.PageKey] = rule.Default
	}

	return r, nil
}

func (r *pageRouterImpl) NextPageKey(pageKey string, answers map[string]any) (string, error) {
	for _, cond := range r.rules[pageKey] {
		match, err := evaluate(cond.program, answers)
		if err != nil {
			return "", fmt.Errorf("page %q: %w", pageKey, err)
		}

		if match {
			return cond.nextPageKey, nil
		}
	}

	if next := r.defaults[pageKey]; next != "" {
		return next, nil
	}
	return journey.NextPageKeyNotSet, nil
}

func evaluate(program *vm.Program, input map[string]any) (bool, error) {
	output, err := expr.Run(program, input)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)

	if !ok {
		return false, errors.New("expression did not return a boolean")
	}

	return result, nil
}

// AnswersFrom builds the expression environment from a branch.
//
// Each form contributes its QuestionKey bound to the AnswerKey, and
// QuestionKey + "_value" bound to the AnswerValue. Each checkbox list is a
// map of checkbox key to answer under its list key.
func AnswersFrom(branch *journey.JourneyBranch) map[string]any {
	answers := make(map[string]any)

	for _, s := range branch.OrderedSteps() {
		addStepAnswers(answers, s)
	}

	return answers
}

// Later steps overwrite earlier answers to the same question.
func addStepAnswers(answers map[string]any, s *journey.JourneyStep) {
	if f := s.QuestionForm; f != nil && f.QuestionKey != nil {
		answers[*f.QuestionKey] = deref(f.AnswerKey)
		answers[*f.QuestionKey+"_value"] = deref(f.AnswerValue)
	}
	for _, list := range s.CheckboxesLists {
		checked := make(map[string]any, len(list.Checkboxes))
		for _, c := range list.Checkboxes {
			checked[c.Key] = c.AnswerValue
		}
		answers[list.CheckboxesListKey] = checked
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
