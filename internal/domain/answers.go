package domain

// AnswerSet maps question ids and contact-field names to the value the
// respondent gave. Keys are fixed by the question schema plus the contact
// fields; values are only ever overwritten, never deleted.
type AnswerSet map[string]string

// NewAnswerSet creates an empty answer set.
func NewAnswerSet() AnswerSet {
	return make(AnswerSet)
}

// Set records a value for a field.
func (a AnswerSet) Set(field, value string) {
	a[field] = value
}

// Get returns the recorded value, or "" when the field is unanswered.
func (a AnswerSet) Get(field string) string {
	return a[field]
}

// Clone returns an independent copy of the answer set.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
