package store

import (
	"context"
	"time"
)

// QueryOpts configures queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // created_at >= From
	To     time.Time // created_at <= To
}

// AttributionEntry is one persisted feature attribution.
type AttributionEntry struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// PredictionRecord is a persisted assessment.
type PredictionRecord struct {
	ID            int64
	Sequence      int64
	UUID          string
	CreatedAt     time.Time
	SchemaVersion string
	Input         map[string]string
	Columns       []string
	Vector        []float64
	Label         int
	Probability   float64
	Threshold     float64

	// Baseline and Attributions are zero when no attribution was computed.
	Baseline         float64
	Attributions     []AttributionEntry
	AttributionError string

	Narrative string
}

// HasAttribution reports whether attributions were stored.
func (r *PredictionRecord) HasAttribution() bool {
	return len(r.Attributions) > 0
}

// PredictionRepo persists assessment history.
type PredictionRepo interface {
	// Append stores a new record and fills in ID and Sequence.
	Append(ctx context.Context, rec *PredictionRecord) error

	// List returns records newest first.
	List(ctx context.Context, opts QueryOpts) ([]PredictionRecord, error)

	// Get returns the record with the given UUID, or nil if none exists.
	Get(ctx context.Context, uuid string) (*PredictionRecord, error)

	// FindByPrefix returns up to limit records whose UUID starts with prefix,
	// newest first. An empty prefix is an error.
	FindByPrefix(ctx context.Context, prefix string, limit int) ([]PredictionRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request.
type LLMRequestEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMModelUsage aggregates token usage per model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if none exists.
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEvent, error)

	// LLMUsageByModel sums token usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}
