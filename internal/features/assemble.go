package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormInput holds the raw value of every form field for one submission.
type FormInput map[FieldKey]string

// Clone returns an independent copy.
func (in FormInput) Clone() FormInput {
	out := make(FormInput, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Vector is the ordered numeric feature vector fed to the scaler.
type Vector struct {
	SchemaVersion string
	Columns       []string
	Values        []float64
}

// Get returns the value for a column name.
func (v Vector) Get(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

// BMI computes the body-mass index from weight in kilograms and height in
// centimetres.
func BMI(weightKg, heightCm float64) float64 {
	heightM := heightCm / 100.0
	return weightKg / (heightM * heightM)
}

// Assemble validates a submission and encodes it into the schema's column
// order. Every field problem is collected into a single *ValidationError so
// the form can report them all at once.
func Assemble(schema Schema, in FormInput) (Vector, error) {
	verr := &ValidationError{}

	gender := encodeFlag(schema, in, FieldGender, schema.MaleLabel, verr)
	hypertension := encodeFlag(schema, in, FieldHypertension, schema.YesLabel, verr)
	heart := encodeFlag(schema, in, FieldHeartDisease, schema.YesLabel, verr)
	smoking := encodeIndex(schema, in, FieldSmokingHistory, verr)

	age := parseNumber(schema, in, FieldAge, verr)
	weight := parseNumber(schema, in, FieldWeightKg, verr)
	height := parseNumber(schema, in, FieldHeightCm, verr)
	hba1c := parseNumber(schema, in, FieldHbA1c, verr)
	glucose := parseNumber(schema, in, FieldGlucose, verr)

	if weight != nil && *weight <= 0 {
		verr.add(FieldWeightKg, schema.labelOf(FieldWeightKg), "deve ser maior que zero")
		weight = nil
	}
	if height != nil && *height <= 0 {
		verr.add(FieldHeightCm, schema.labelOf(FieldHeightCm), "deve ser maior que zero")
		height = nil
	}

	if verr.HasProblems() {
		return Vector{}, verr
	}

	bmi := BMI(*weight, *height)
	if math.IsInf(bmi, 0) || math.IsNaN(bmi) {
		verr.add(FieldWeightKg, schema.labelOf(FieldWeightKg), "fora do intervalo para o cálculo do IMC")
		verr.add(FieldHeightCm, schema.labelOf(FieldHeightCm), "fora do intervalo para o cálculo do IMC")
		return Vector{}, verr
	}

	byColumn := map[string]float64{
		ColGender:         gender,
		ColAge:            *age,
		ColHypertension:   hypertension,
		ColHeartDisease:   heart,
		ColSmokingHistory: smoking,
		ColBMI:            bmi,
		ColHbA1c:          *hba1c,
		ColGlucose:        *glucose,
	}

	values := make([]float64, len(schema.Columns))
	for i, col := range schema.Columns {
		v, ok := byColumn[col]
		if !ok {
			return Vector{}, fmt.Errorf("schema %s: no encoder for column %q", schema.Version, col)
		}
		values[i] = v
	}

	return Vector{
		SchemaVersion: schema.Version,
		Columns:       append([]string(nil), schema.Columns...),
		Values:        values,
	}, nil
}

// ParseNumber parses a free-text numeric entry. Surrounding whitespace is
// ignored and a single decimal comma is accepted.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errEmpty
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}

func parseNumber(schema Schema, in FormInput, key FieldKey, verr *ValidationError) *float64 {
	v, err := ParseNumber(in[key])
	if err != nil {
		verr.add(key, schema.labelOf(key), err.Error())
		return nil
	}
	return &v
}

func encodeFlag(schema Schema, in FormInput, key FieldKey, positive string, verr *ValidationError) float64 {
	if _, ok := choiceIndex(schema, in, key, verr); !ok {
		return 0
	}
	if in[key] == positive {
		return 1
	}
	return 0
}

func encodeIndex(schema Schema, in FormInput, key FieldKey, verr *ValidationError) float64 {
	idx, ok := choiceIndex(schema, in, key, verr)
	if !ok {
		return 0
	}
	return float64(idx)
}

func choiceIndex(schema Schema, in FormInput, key FieldKey, verr *ValidationError) (int, bool) {
	f, ok := schema.Field(key)
	if !ok {
		verr.add(key, string(key), "campo desconhecido no esquema")
		return 0, false
	}
	value := in[key]
	for i, opt := range f.Options {
		if opt == value {
			return i, true
		}
	}
	if value == "" {
		verr.add(key, f.Label, errEmpty.Error())
	} else {
		verr.add(key, f.Label, fmt.Sprintf("opção inválida %q", value))
	}
	return 0, false
}
