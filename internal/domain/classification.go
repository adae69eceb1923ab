package domain

// SiteCheck is the outcome of a WordPress classification attempt for one URL
// string. Results are keyed by the raw URL as entered; a changed URL gets a
// fresh SiteCheck, never a merge.
type SiteCheck struct {
	// Checked is true once all detection strategies have run.
	Checked bool `json:"checked"`
	// IsWordPress is the verdict; only meaningful when Checked is true.
	IsWordPress bool `json:"is_wordpress"`
	// Loading is true while a classification is in flight.
	Loading bool `json:"loading"`
	// Err is non-empty only when every strategy failed with a genuine
	// network error. An exhausted-but-reachable site is a definite
	// negative, not an error.
	Err string `json:"error,omitempty"`
}

// Blocked reports whether this result blocks form submission. Errors fail
// closed.
func (c SiteCheck) Blocked() bool {
	return !c.Checked || c.Err != "" || !c.IsWordPress
}
