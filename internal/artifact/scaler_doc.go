package artifact

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// scalerDoc is a scikit-learn StandardScaler exported as JSON.
type scalerDoc struct {
	SchemaVersion string    `json:"schema_version"`
	FeatureNames  []string  `json:"feature_names"`
	Mean          []float64 `json:"mean"`
	Scale         []float64 `json:"scale"`
}

var scalerDocSchema = map[string]any{
	"type":     "object",
	"required": []any{"schema_version", "feature_names", "mean", "scale"},
	"properties": map[string]any{
		"schema_version": map[string]any{"type": "string", "minLength": 1},
		"feature_names": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string"},
		},
		"mean": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "number"},
		},
		"scale": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "number", "minimum": 0},
		},
	},
}

var (
	compileOnce    sync.Once
	compiledScaler *jsonschema.Schema
	compileErr     error
)

func scalerSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		const url = "schema://scaler.json"

		// Round-trip through JSON so numbers arrive as the compiler expects.
		raw, err := json.Marshal(scalerDocSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledScaler, compileErr = c.Compile(url)
	})
	return compiledScaler, compileErr
}

func parseScalerDoc(data []byte) (*scalerDoc, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := scalerSchema()
	if err != nil {
		return nil, fmt.Errorf("compile scaler schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var doc scalerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if len(doc.Mean) != len(doc.FeatureNames) || len(doc.Scale) != len(doc.FeatureNames) {
		return nil, fmt.Errorf("scaler shape mismatch: %d names, %d means, %d scales",
			len(doc.FeatureNames), len(doc.Mean), len(doc.Scale))
	}
	return &doc, nil
}
