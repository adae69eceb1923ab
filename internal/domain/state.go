package domain

// FlowState is the single state of the funnel state machine. Exactly one
// state is active at a time; the boolean-flag representation of earlier
// funnel builds is deliberately not reproduced.
type FlowState int

const (
	// StateWelcome is the landing screen before the first question.
	StateWelcome FlowState = iota
	// StateQuestion means a question at Position.Index is current.
	StateQuestion
	// StateContact is the contact form step after the last question.
	StateContact
	// StateDisqualified is a terminal state: the answers put the lead out
	// of profile.
	StateDisqualified
	// StateAlreadySubmitted is a terminal state reachable only from the
	// initial device check, bypassing Welcome entirely.
	StateAlreadySubmitted
	// StateThankYou is the terminal state after an acknowledged submission.
	StateThankYou
)

// String returns the wire name of the state.
func (s FlowState) String() string {
	switch s {
	case StateWelcome:
		return "welcome"
	case StateQuestion:
		return "question"
	case StateContact:
		return "contact"
	case StateDisqualified:
		return "disqualified"
	case StateAlreadySubmitted:
		return "already_submitted"
	case StateThankYou:
		return "thank_you"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s FlowState) Terminal() bool {
	return s == StateDisqualified || s == StateAlreadySubmitted || s == StateThankYou
}

// Position is the full flow position: the state plus, for StateQuestion, the
// index into the ordered question list.
type Position struct {
	State FlowState `json:"state"`
	// Index is only meaningful when State == StateQuestion.
	Index int `json:"index"`
	// DisqualifiedBy carries the failing field id when State == StateDisqualified.
	DisqualifiedBy string `json:"disqualified_by,omitempty"`
}
