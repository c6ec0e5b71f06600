package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

// HTTPExplainer calls a sidecar that runs a tree explainer over the same
// model artifact:
//
//	POST {base}/explain  {"columns": [...], "rows": [[...]]}
//	→ {"classes": [0, 1], "output": "raw", "expected_value": [b0, b1], "values": [[...], [...]]}
//
// values holds one attribution row per class for the single input row.
// output names the space values and expected_value are in: "probability"
// (the default when absent) or "raw" for log-odds margins.
type HTTPExplainer struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// HTTPOption configures an HTTPExplainer.
type HTTPOption func(*HTTPExplainer)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTPExplainer) { h.client = c }
}

// WithLogger sets the logger used for class-order warnings.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTPExplainer) { h.log = l }
}

// NewHTTPExplainer creates a client for the explainer at baseURL.
func NewHTTPExplainer(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPExplainer {
	h := &HTTPExplainer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type explainRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type explainResponse struct {
	Classes       []int       `json:"classes"`
	Output        string      `json:"output"`
	ExpectedValue []float64   `json:"expected_value"`
	Values        [][]float64 `json:"values"`
}

func (h *HTTPExplainer) Explain(ctx context.Context, req Request) (*Attribution, error) {
	body, err := json.Marshal(explainRequest{Columns: req.Columns, Rows: [][]float64{req.Values}})
	if err != nil {
		return nil, fmt.Errorf("marshal explain request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/explain", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build explain request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ErrUnavailable{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ErrRateLimit{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	case resp.StatusCode >= 500:
		return nil, &ErrUnavailable{Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &ErrRejected{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	parsed, err := decodeResponse(raw)
	if err != nil {
		return nil, err
	}
	return h.positiveClass(parsed, req)
}

// positiveClass picks slot PositiveClassIndex out of the per-class output.
func (h *HTTPExplainer) positiveClass(resp *explainResponse, req Request) (*Attribution, error) {
	if len(resp.Values) <= PositiveClassIndex || len(resp.ExpectedValue) <= PositiveClassIndex {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("expected %d class slots, got %d values and %d baselines",
			PositiveClassIndex+1, len(resp.Values), len(resp.ExpectedValue))}
	}
	if len(resp.Classes) > PositiveClassIndex && resp.Classes[PositiveClassIndex] != 1 {
		h.log.Warn("explainer class order is not {0,1}; positive-class attributions may be inverted",
			zap.Ints("classes", resp.Classes),
			zap.Int("slot", PositiveClassIndex))
	}

	values := resp.Values[PositiveClassIndex]
	if len(values) != len(req.Columns) {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("got %d attributions for %d columns",
			len(values), len(req.Columns))}
	}

	scores := make([]Score, len(values))
	for i, v := range values {
		scores[i] = Score{Feature: req.Columns[i], Value: v}
	}
	space := Probability
	if resp.Output != "" {
		space = Space(resp.Output)
	}
	return &Attribution{
		Baseline: resp.ExpectedValue[PositiveClassIndex],
		Scores:   scores,
		Classes:  resp.Classes,
		Space:    space,
	}, nil
}

var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"expected_value", "values"},
	"properties": map[string]any{
		"classes": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "integer"},
		},
		"output": map[string]any{
			"enum": []any{string(Probability), string(LogOdds)},
		},
		"expected_value": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "number"},
		},
		"values": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number"},
			},
		},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiledResponseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := json.Marshal(responseSchema)
		if err != nil {
			schemaErr = err
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			schemaErr = err
			return
		}
		const url = "schema://explain-response.json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

func decodeResponse(raw []byte) (*explainResponse, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ErrInvalidResponse{Body: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	schema, err := compiledResponseSchema()
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, &ErrInvalidResponse{Body: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var resp explainResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ErrInvalidResponse{Body: raw, Err: err}
	}
	return &resp, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
