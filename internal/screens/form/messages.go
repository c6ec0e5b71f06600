package form

import "github.com/abhisek/diarisk/internal/assess"

// assessedMsg carries the result of a submission back to the form.
type assessedMsg struct {
	Outcome *assess.Outcome
	Err     error
}
