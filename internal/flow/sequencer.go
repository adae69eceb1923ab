package flow

import (
	"errors"
	"strings"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
)

// Sequencer errors.
var (
	// ErrNoSuchQuestion is returned for an out-of-range question index.
	ErrNoSuchQuestion = errors.New("no such question")
	// ErrWrongField is returned when the answered field does not belong to
	// the current step.
	ErrWrongField = errors.New("field does not belong to the current step")
	// ErrTerminal is returned for transitions out of a terminal state.
	ErrTerminal = errors.New("flow is in a terminal state")
)

// contactFields are the fields writable at the contact step.
var contactFields = map[string]bool{
	FieldNome:     true,
	FieldEmail:    true,
	FieldTelefone: true,
	FieldBlogLink: true,
}

// Sequencer is the state machine over the ordered question list. It owns all
// transitions; callers never mutate a Position directly.
type Sequencer struct {
	questions []domain.Question
	branches  []domain.BranchRule
	evaluator *Evaluator
}

// NewSequencer creates a sequencer over the given configuration.
func NewSequencer(
	questions []domain.Question,
	branches []domain.BranchRule,
	evaluator *Evaluator,
) *Sequencer {
	return &Sequencer{
		questions: questions,
		branches:  branches,
		evaluator: evaluator,
	}
}

// NewDefaultSequencer creates a sequencer over the funnel's standard
// questions, branches and rule table.
func NewDefaultSequencer() *Sequencer {
	return NewSequencer(DefaultQuestions(), DefaultBranches(), NewEvaluator(DefaultRules()))
}

// Len returns the number of questions.
func (s *Sequencer) Len() int {
	return len(s.questions)
}

// Question returns the question at index i.
func (s *Sequencer) Question(i int) (domain.Question, error) {
	if i < 0 || i >= len(s.questions) {
		return domain.Question{}, ErrNoSuchQuestion
	}
	return s.questions[i], nil
}

// Evaluator returns the disqualification evaluator the sequencer consults.
func (s *Sequencer) Evaluator() *Evaluator {
	return s.evaluator
}

// Begin transitions Welcome into the first question.
func (s *Sequencer) Begin(pos domain.Position) (domain.Position, error) {
	if pos.State != domain.StateWelcome {
		return pos, ErrTerminal
	}
	if len(s.questions) == 0 {
		return domain.Position{State: domain.StateContact}, nil
	}
	return domain.Position{State: domain.StateQuestion, Index: 0}, nil
}

// Answer records a value for the given field and computes the next position.
// On a question step the field must be the current question id, or the
// free-text detail field of the role question. The detail field only records
// its value; advancing is driven by the primary answer and is suppressed
// while the "other" choice lacks its detail text.
func (s *Sequencer) Answer(
	pos domain.Position,
	answers domain.AnswerSet,
	field, value string,
) (domain.Position, error) {
	switch pos.State {
	case domain.StateQuestion:
		return s.answerQuestion(pos, answers, field, value)
	case domain.StateContact:
		if !contactFields[field] {
			return pos, ErrWrongField
		}
		answers.Set(field, value)
		return pos, nil
	default:
		return pos, ErrTerminal
	}
}

func (s *Sequencer) answerQuestion(
	pos domain.Position,
	answers domain.AnswerSet,
	field, value string,
) (domain.Position, error) {
	q := s.questions[pos.Index]

	if field != q.ID && !(q.ID == QuestionArea && field == FieldAreaOutra) {
		return pos, ErrWrongField
	}
	answers.Set(field, value)

	// A disqualifying answer terminates immediately, bypassing every
	// remaining question.
	if failed, disqualified := s.evaluator.Evaluate(answers); disqualified {
		return domain.Position{State: domain.StateDisqualified, DisqualifiedBy: failed}, nil
	}

	// Only the primary answer moves the position. The free-text detail is
	// recorded in place; without this, a detail post could advance past a
	// still-unanswered role question.
	if field == FieldAreaOutra {
		return pos, nil
	}

	if s.detailPending(answers) && q.ID == QuestionArea {
		// Stay on the role question until the detail text is non-empty.
		return pos, nil
	}

	return s.Next(pos.Index, answers), nil
}

// detailPending reports whether the "other" choice still lacks its free-text
// detail after trimming whitespace.
func (s *Sequencer) detailPending(answers domain.AnswerSet) bool {
	return answers.Get(QuestionArea) == AnswerOther &&
		strings.TrimSpace(answers.Get(FieldAreaOutra)) == ""
}

// Next computes the position after question i, honoring skip branches. A
// target index past the last question lands on the contact step.
func (s *Sequencer) Next(i int, answers domain.AnswerSet) domain.Position {
	target := i + 1
	for target < len(s.questions) && s.skipped(target, answers) {
		target++
	}
	if target >= len(s.questions) {
		return domain.Position{State: domain.StateContact}
	}
	return domain.Position{State: domain.StateQuestion, Index: target}
}

// Previous is the exact inverse of Next: stepping back from a position
// reached through a skip lands on the question that caused the skip, never
// on the skipped index.
func (s *Sequencer) Previous(pos domain.Position, answers domain.AnswerSet) (domain.Position, error) {
	switch pos.State {
	case domain.StateContact:
		return s.backFrom(len(s.questions), answers), nil
	case domain.StateQuestion:
		return s.backFrom(pos.Index, answers), nil
	default:
		return pos, ErrTerminal
	}
}

// backFrom returns the last non-skipped position before index i, or Welcome
// when none remains.
func (s *Sequencer) backFrom(i int, answers domain.AnswerSet) domain.Position {
	target := i - 1
	for target >= 0 && s.skipped(target, answers) {
		target--
	}
	if target < 0 {
		return domain.Position{State: domain.StateWelcome}
	}
	return domain.Position{State: domain.StateQuestion, Index: target}
}

// Submitted transitions the contact step into the thank-you terminal. It is
// only valid after an acknowledged webhook send.
func (s *Sequencer) Submitted(pos domain.Position) (domain.Position, error) {
	if pos.State != domain.StateContact {
		return pos, ErrTerminal
	}
	return domain.Position{State: domain.StateThankYou}, nil
}

// skipped reports whether the question at idx is skipped under the current
// answers.
func (s *Sequencer) skipped(idx int, answers domain.AnswerSet) bool {
	q := s.questions[idx]
	for _, b := range s.branches {
		if b.SkipQuestionID == q.ID && answers.Get(b.QuestionID) == b.Answer {
			return true
		}
	}
	return false
}

// ContactComplete reports whether every contact field carries a non-blank
// value. Presence is the only server-side check; format validation is the
// renderer's concern.
func (s *Sequencer) ContactComplete(answers domain.AnswerSet) bool {
	for field := range contactFields {
		if strings.TrimSpace(answers.Get(field)) == "" {
			return false
		}
	}
	return true
}
