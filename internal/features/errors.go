package features

import (
	"errors"
	"strings"
)

var (
	errEmpty      = errors.New("deve ser informado")
	errNotNumeric = errors.New("deve ser numérico")
)

// FieldProblem is a single rejected form field.
type FieldProblem struct {
	Field   FieldKey
	Label   string
	Message string
}

// ValidationError reports every field that failed validation in one
// submission. It is returned before any scaler or model call is made.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) add(key FieldKey, label, msg string) {
	e.Problems = append(e.Problems, FieldProblem{Field: key, Label: label, Message: msg})
}

// HasProblems reports whether any field was rejected.
func (e *ValidationError) HasProblems() bool {
	return e != nil && len(e.Problems) > 0
}

// Has reports whether the given field was rejected.
func (e *ValidationError) Has(key FieldKey) bool {
	for _, p := range e.Problems {
		if p.Field == key {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Label+": "+p.Message)
	}
	return "dados inválidos: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
