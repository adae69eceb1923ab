package flow

import "github.com/jonesrussell/quiz-funnel/internal/domain"

// Evaluator applies the disqualification rule table to an answer snapshot.
// It holds no mutable state; Evaluate is a pure function of its input.
type Evaluator struct {
	rules []domain.DisqualificationRule
}

// NewEvaluator creates an evaluator over the given rule table. Rule order is
// significant: the first matching field wins.
func NewEvaluator(rules []domain.DisqualificationRule) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate returns the id of the first field, in table order, whose answer
// is disqualifying, and true. It returns ("", false) when no field matches.
// Fields absent from the table can never disqualify.
func (e *Evaluator) Evaluate(answers domain.AnswerSet) (string, bool) {
	for _, rule := range e.rules {
		if rule.Matches(answers.Get(rule.Field)) {
			return rule.Field, true
		}
	}
	return "", false
}

// Qualified reports whether no rule matches the answer snapshot.
func (e *Evaluator) Qualified(answers domain.AnswerSet) bool {
	_, disqualified := e.Evaluate(answers)
	return !disqualified
}
