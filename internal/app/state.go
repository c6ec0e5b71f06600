package app

import (
	"go.uber.org/zap"

	"github.com/abhisek/diarisk/internal/screens/form"
	"github.com/abhisek/diarisk/internal/store"
)

// State is everything the UI needs, built once at startup and handed to
// the screens. There is no other shared mutable state.
type State struct {
	// Assessor runs submissions. Required.
	Assessor form.Assessor

	// History backs the history screen. Nil disables it.
	History store.PredictionRepo

	// Log receives UI-level events. Nil means discard.
	Log *zap.Logger
}
