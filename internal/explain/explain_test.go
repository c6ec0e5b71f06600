package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testColumns = []string{
	"gender", "age", "hypertension", "heart_disease",
	"smoking_history", "bmi", "HbA1c_level", "blood_glucose_level",
}

func sampleAttribution() *Attribution {
	return &Attribution{
		Baseline: 0.085,
		Scores: []Score{
			{Feature: "gender", Value: 0.01},
			{Feature: "age", Value: 0.12},
			{Feature: "hypertension", Value: 0.03},
			{Feature: "heart_disease", Value: -0.005},
			{Feature: "smoking_history", Value: 0.0},
			{Feature: "bmi", Value: -0.04},
			{Feature: "HbA1c_level", Value: 0.41},
			{Feature: "blood_glucose_level", Value: 0.28},
		},
	}
}

func TestRankedOrdersByMagnitude(t *testing.T) {
	ranked := sampleAttribution().Ranked()
	require.Len(t, ranked, 8)

	var names []string
	for _, s := range ranked {
		names = append(names, s.Feature)
	}
	assert.Equal(t, []string{
		"HbA1c_level", "blood_glucose_level", "age", "bmi",
		"hypertension", "gender", "heart_disease", "smoking_history",
	}, names)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, abs(ranked[i-1].Value), abs(ranked[i].Value))
	}
}

func TestRankedDoesNotMutate(t *testing.T) {
	a := sampleAttribution()
	_ = a.Ranked()
	assert.Equal(t, "gender", a.Scores[0].Feature)
}

func TestRankedTiesKeepColumnOrder(t *testing.T) {
	a := &Attribution{Scores: []Score{{"a", 0.1}, {"b", -0.1}, {"c", 0.1}}}
	r := a.Ranked()
	assert.Equal(t, "a", r[0].Feature)
	assert.Equal(t, "b", r[1].Feature)
	assert.Equal(t, "c", r[2].Feature)
}

func TestTop(t *testing.T) {
	a := sampleAttribution()
	assert.Len(t, a.Top(3), 3)
	assert.Equal(t, "HbA1c_level", a.Top(1)[0].Feature)
	assert.Len(t, a.Top(20), 8)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, IncreasesRisk, Score{Value: 0.2}.Direction())
	assert.Equal(t, DecreasesRisk, Score{Value: -0.2}.Direction())
	assert.Equal(t, Neutral, Score{Value: 0}.Direction())
}

func TestCheckAdditivity(t *testing.T) {
	a := sampleAttribution()
	assert.InDelta(t, 0.89, a.Sum(), 1e-9)

	require.NoError(t, CheckAdditivity(a, 0.89, 0))
	require.NoError(t, CheckAdditivity(a, 0.895, 0.01))

	err := CheckAdditivity(a, 0.5, 0.01)
	var addErr *AdditivityError
	require.ErrorAs(t, err, &addErr)
	assert.InDelta(t, 0.89, addErr.Got, 1e-9)
	assert.Equal(t, 0.5, addErr.Expected)
}

func explainHandler(t *testing.T, resp any, status int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/explain", r.URL.Path)

		var req explainRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testColumns, req.Columns)
		assert.Len(t, req.Rows, 1)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func validResponse() map[string]any {
	pos := make([]float64, 8)
	neg := make([]float64, 8)
	for i, s := range sampleAttribution().Scores {
		pos[i] = s.Value
		neg[i] = -s.Value
	}
	return map[string]any{
		"classes":        []int{0, 1},
		"expected_value": []float64{0.915, 0.085},
		"values":         [][]float64{neg, pos},
	}
}

func TestHTTPExplainerSelectsPositiveClass(t *testing.T) {
	srv := httptest.NewServer(explainHandler(t, validResponse(), http.StatusOK))
	t.Cleanup(srv.Close)

	e := NewHTTPExplainer(srv.URL+"/", time.Second)
	attr, err := e.Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
	require.NoError(t, err)

	assert.Equal(t, 0.085, attr.Baseline)
	assert.Equal(t, []int{0, 1}, attr.Classes)
	require.Len(t, attr.Scores, 8)
	assert.Equal(t, "HbA1c_level", attr.Scores[6].Feature)
	assert.Equal(t, 0.41, attr.Scores[6].Value)
	require.NoError(t, CheckAdditivity(attr, 0.89, DefaultTolerance))
}

func TestHTTPExplainerLogOddsOutput(t *testing.T) {
	resp := map[string]any{
		"classes":        []int{0, 1},
		"output":         "raw",
		"expected_value": []float64{1.5, -1.5},
		"values":         [][]float64{{-2.386, -0.5}, {2.386, 0.5}},
	}
	cols := testColumns[:2]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	e := NewHTTPExplainer(srv.URL, time.Second)
	attr, err := e.Explain(context.Background(), Request{Columns: cols, Values: make([]float64, 2)})
	require.NoError(t, err)
	assert.Equal(t, LogOdds, attr.Space)

	// -1.5 + 2.386 + 0.5 ≈ log(0.8 / 0.2)
	require.NoError(t, CheckAdditivity(attr, attr.ModelOutput(0.8), DefaultTolerance))
	require.Error(t, CheckAdditivity(attr, 0.8, DefaultTolerance))
}

func TestHTTPExplainerDefaultsToProbability(t *testing.T) {
	srv := httptest.NewServer(explainHandler(t, validResponse(), http.StatusOK))
	t.Cleanup(srv.Close)

	attr, err := NewHTTPExplainer(srv.URL, time.Second).Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
	require.NoError(t, err)
	assert.Equal(t, Probability, attr.Space)
	assert.Equal(t, 0.89, attr.ModelOutput(0.89))
}

func TestHTTPExplainerWarnsOnSwappedClasses(t *testing.T) {
	resp := validResponse()
	resp["classes"] = []int{1, 0}
	srv := httptest.NewServer(explainHandler(t, resp, http.StatusOK))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.WarnLevel)
	e := NewHTTPExplainer(srv.URL, time.Second, WithLogger(zap.New(core)))

	attr, err := e.Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
	require.NoError(t, err)

	// Slot 1 is still used.
	assert.Equal(t, 0.085, attr.Baseline)
	assert.Equal(t, 1, logs.FilterMessageSnippet("class order").Len())
}

func TestHTTPExplainerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			body:   map[string]any{"error": "loading"},
			check: func(t *testing.T, err error) {
				var u *ErrUnavailable
				assert.ErrorAs(t, err, &u)
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   map[string]any{"error": "bad columns"},
			check: func(t *testing.T, err error) {
				var r *ErrRejected
				require.ErrorAs(t, err, &r)
				assert.Equal(t, 400, r.Status)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   map[string]any{},
			check: func(t *testing.T, err error) {
				var rl *ErrRateLimit
				assert.ErrorAs(t, err, &rl)
			},
		},
		{
			name:   "unknown output space",
			status: http.StatusOK,
			body: map[string]any{
				"output":         "margin",
				"expected_value": []float64{0.9, 0.1},
				"values":         [][]float64{make([]float64, 8), make([]float64, 8)},
			},
			check: func(t *testing.T, err error) {
				var inv *ErrInvalidResponse
				assert.ErrorAs(t, err, &inv)
			},
		},
		{
			name:   "schema mismatch",
			status: http.StatusOK,
			body:   map[string]any{"values": "nope"},
			check: func(t *testing.T, err error) {
				var inv *ErrInvalidResponse
				assert.ErrorAs(t, err, &inv)
			},
		},
		{
			name:   "single class slot",
			status: http.StatusOK,
			body:   map[string]any{"expected_value": []float64{0.1}, "values": [][]float64{make([]float64, 8)}},
			check: func(t *testing.T, err error) {
				var inv *ErrInvalidResponse
				assert.ErrorAs(t, err, &inv)
			},
		},
		{
			name:   "wrong width",
			status: http.StatusOK,
			body: map[string]any{
				"expected_value": []float64{0.9, 0.1},
				"values":         [][]float64{make([]float64, 7), make([]float64, 7)},
			},
			check: func(t *testing.T, err error) {
				var inv *ErrInvalidResponse
				require.ErrorAs(t, err, &inv)
				assert.Contains(t, err.Error(), "7 attributions for 8 columns")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(explainHandler(t, tt.body, tt.status))
			t.Cleanup(srv.Close)

			e := NewHTTPExplainer(srv.URL, time.Second)
			_, err := e.Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPExplainerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPExplainer(url, time.Second).Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
	var u *ErrUnavailable
	assert.ErrorAs(t, err, &u)
}

// scriptedExplainer returns queued results in order.
type scriptedExplainer struct {
	results []error
	calls   int
}

func (s *scriptedExplainer) Explain(context.Context, Request) (*Attribution, error) {
	i := s.calls
	s.calls++
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	return sampleAttribution(), nil
}

func newTestRetry(inner Explainer, attempts int) *retrier {
	r := WithRetry(inner, RetryConfig{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 2}).(*retrier)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &scriptedExplainer{results: []error{&ErrUnavailable{}, &ErrRateLimit{Err: errors.New("429")}}}
	attr, err := newTestRetry(inner, 3).Explain(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotNil(t, attr)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnRejection(t *testing.T) {
	inner := &scriptedExplainer{results: []error{&ErrRejected{Status: 422}}}
	_, err := newTestRetry(inner, 3).Explain(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryInvalidResponseOnce(t *testing.T) {
	inv := &ErrInvalidResponse{Err: errors.New("bad")}
	inner := &scriptedExplainer{results: []error{inv, inv, inv}}
	_, err := newTestRetry(inner, 5).Explain(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	u := &ErrUnavailable{}
	inner := &scriptedExplainer{results: []error{u, u, u, u}}
	_, err := newTestRetry(inner, 3).Explain(context.Background(), Request{})
	require.ErrorAs(t, err, &u)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryNotOnContextCancel(t *testing.T) {
	inner := &scriptedExplainer{results: []error{context.Canceled}}
	_, err := newTestRetry(inner, 3).Explain(context.Background(), Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	r := newTestRetry(&scriptedExplainer{}, 2)
	d := r.wait(1, &ErrRateLimit{RetryAfter: 3 * time.Second})
	assert.Equal(t, 3*time.Second, d)
}

func TestRetryPauseGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: 350 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.Pause(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Pause(2))
	assert.Equal(t, 350*time.Millisecond, cfg.Pause(3))
	assert.Equal(t, 350*time.Millisecond, cfg.Pause(9))
}

func TestHTTPExplainerRetriedEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(validResponse())
	}))
	t.Cleanup(srv.Close)

	e := newTestRetry(NewHTTPExplainer(srv.URL, time.Second), 3)
	attr, err := e.Explain(context.Background(), Request{Columns: testColumns, Values: make([]float64, 8)})
	require.NoError(t, err)
	assert.Equal(t, 0.085, attr.Baseline)
	assert.Equal(t, int32(2), hits.Load())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
