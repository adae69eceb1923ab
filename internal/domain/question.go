// Package domain defines the core types shared across the quiz-funnel
// service.
package domain

// Question is a single multiple-choice step in the funnel. Definitions are
// immutable configuration; they are never mutated after startup.
type Question struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

// BranchRule attaches conditional behavior to one answer value of a question.
// Exactly one of SkipQuestionID or Disqualify is set.
type BranchRule struct {
	QuestionID string
	Answer     string
	// SkipQuestionID names a downstream question that is skipped when this
	// answer was given.
	SkipQuestionID string
	// Disqualify terminates the flow immediately with QuestionID as reason.
	Disqualify bool
}

// DisqualificationRule maps a question id to the set of answers that
// disqualify a lead. Rules are evaluated in declaration order; the first
// matching field wins.
type DisqualificationRule struct {
	Field   string
	Answers []string
}

// Matches reports whether the given answer is in the disqualifying set.
// Empty answers never match.
func (r DisqualificationRule) Matches(answer string) bool {
	if answer == "" {
		return false
	}
	for _, a := range r.Answers {
		if a == answer {
			return true
		}
	}
	return false
}
