package features

// FieldKey identifies one user-facing form field.
type FieldKey string

const (
	FieldGender         FieldKey = "gender"
	FieldAge            FieldKey = "age"
	FieldHypertension   FieldKey = "hypertension"
	FieldHeartDisease   FieldKey = "heart_disease"
	FieldSmokingHistory FieldKey = "smoking_history"
	FieldWeightKg       FieldKey = "weight_kg"
	FieldHeightCm       FieldKey = "height_cm"
	FieldHbA1c          FieldKey = "hba1c"
	FieldGlucose        FieldKey = "glucose"
)

// FieldKind distinguishes free-text numeric entries from fixed choices.
type FieldKind int

const (
	KindNumeric FieldKind = iota
	KindChoice
)

// Field describes one form field: its label, kind and, for choices, the
// ordered option list.
type Field struct {
	Key     FieldKey
	Label   string
	Kind    FieldKind
	Options []string
}

// Column names the model expects, in training-time order.
const (
	ColGender         = "gender"
	ColAge            = "age"
	ColHypertension   = "hypertension"
	ColHeartDisease   = "heart_disease"
	ColSmokingHistory = "smoking_history"
	ColBMI            = "bmi"
	ColHbA1c          = "HbA1c_level"
	ColGlucose        = "blood_glucose_level"
)

// Schema binds the form to the model's training-time column layout.
// Columns order is the contract with the scaler and classifier artifacts;
// a retrained model that changes it must ship with a new schema version.
type Schema struct {
	Version string
	Columns []string
	Fields  []Field

	MaleLabel string
	YesLabel  string
}

var (
	genderOptions = []string{"Feminino", "Masculino"}
	yesNoOptions  = []string{"Não", "Sim"}
	smokingOpts   = []string{
		"Nunca fumou",
		"Sem informação",
		"Fumante atual",
		"Ex-fumante",
		"Já fumou",
		"Não é fumante atual",
	}
)

// V1 is the schema the bundled random forest was trained with.
var V1 = Schema{
	Version: "v1.0.0",
	Columns: []string{
		ColGender,
		ColAge,
		ColHypertension,
		ColHeartDisease,
		ColSmokingHistory,
		ColBMI,
		ColHbA1c,
		ColGlucose,
	},
	Fields: []Field{
		{Key: FieldGender, Label: "Gênero", Kind: KindChoice, Options: genderOptions},
		{Key: FieldAge, Label: "Idade", Kind: KindNumeric},
		{Key: FieldHypertension, Label: "Hipertensão", Kind: KindChoice, Options: yesNoOptions},
		{Key: FieldHeartDisease, Label: "Doença Cardíaca", Kind: KindChoice, Options: yesNoOptions},
		{Key: FieldSmokingHistory, Label: "Histórico de Fumo", Kind: KindChoice, Options: smokingOpts},
		{Key: FieldWeightKg, Label: "Peso (kg)", Kind: KindNumeric},
		{Key: FieldHeightCm, Label: "Altura (cm)", Kind: KindNumeric},
		{Key: FieldHbA1c, Label: "Nível de HbA1c", Kind: KindNumeric},
		{Key: FieldGlucose, Label: "Glicose no Sangue", Kind: KindNumeric},
	},
	MaleLabel: "Masculino",
	YesLabel:  "Sim",
}

// Field returns the field definition for key.
func (s Schema) Field(key FieldKey) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnIndex returns the position of a column in the vector, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Defaults returns a FormInput with every choice set to its first option and
// numeric fields empty, matching a freshly opened form.
func (s Schema) Defaults() FormInput {
	in := make(FormInput, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind == KindChoice && len(f.Options) > 0 {
			in[f.Key] = f.Options[0]
			continue
		}
		in[f.Key] = ""
	}
	return in
}

// DisplayName maps a model column to the label shown next to its bar.
func (s Schema) DisplayName(column string) string {
	switch column {
	case ColBMI:
		return "IMC"
	case ColGender:
		return s.labelOf(FieldGender)
	case ColAge:
		return s.labelOf(FieldAge)
	case ColHypertension:
		return s.labelOf(FieldHypertension)
	case ColHeartDisease:
		return s.labelOf(FieldHeartDisease)
	case ColSmokingHistory:
		return s.labelOf(FieldSmokingHistory)
	case ColHbA1c:
		return s.labelOf(FieldHbA1c)
	case ColGlucose:
		return s.labelOf(FieldGlucose)
	}
	return column
}

func (s Schema) labelOf(key FieldKey) string {
	if f, ok := s.Field(key); ok {
		return f.Label
	}
	return string(key)
}
