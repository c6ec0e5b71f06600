// Package artifact loads the trained classifier and fitted scaler that the
// inference pipeline runs on. Load failures are fatal at startup: there is
// no degraded mode without a model.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"

	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
)

// Fixed artifact filenames, looked up beside the executable by default.
const (
	ModelFilename     = "random_forest_diabetes.txt"
	ScalerFilename    = "scaler_diabetes.json"
	ChecksumsFilename = "checksums.txt"
)

var (
	ErrMissing      = errors.New("artifact not found")
	ErrCorrupt      = errors.New("artifact is corrupt")
	ErrChecksum     = errors.New("artifact checksum mismatch")
	ErrIncompatible = errors.New("artifact does not match feature schema")
)

// Bundle is a loaded, verified model and scaler pair.
type Bundle struct {
	Dir        string
	Classifier inference.Classifier
	Scaler     *inference.Scaler
	Verified   bool // true when checksums.txt was present and matched
}

// Options customizes Load.
type Options struct {
	ModelFile  string
	ScalerFile string

	// LoadClassifier opens the model file. Defaults to inference.LoadLightGBM.
	LoadClassifier func(path string) (inference.Classifier, error)
}

func (o Options) withDefaults() Options {
	if o.ModelFile == "" {
		o.ModelFile = ModelFilename
	}
	if o.ScalerFile == "" {
		o.ScalerFile = ScalerFilename
	}
	if o.LoadClassifier == nil {
		o.LoadClassifier = func(path string) (inference.Classifier, error) {
			return inference.LoadLightGBM(path)
		}
	}
	return o
}

// Load reads and checks the artifacts in dir against schema.
func Load(dir string, schema features.Schema, opts Options) (*Bundle, error) {
	opts = opts.withDefaults()

	modelPath := filepath.Join(dir, opts.ModelFile)
	scalerPath := filepath.Join(dir, opts.ScalerFile)

	for _, p := range []string{modelPath, scalerPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissing, p)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	verified, err := verifyDir(dir, opts.ModelFile, opts.ScalerFile)
	if err != nil {
		return nil, err
	}

	scalerData, err := os.ReadFile(scalerPath)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	doc, err := parseScalerDoc(scalerData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, scalerPath, err)
	}
	if err := checkCompatible(doc, schema); err != nil {
		return nil, err
	}

	scaler, err := inference.NewScaler(schema.Version, doc.FeatureNames, doc.Mean, doc.Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, scalerPath, err)
	}

	clf, err := opts.LoadClassifier(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, modelPath, err)
	}

	return &Bundle{
		Dir:        dir,
		Classifier: clf,
		Scaler:     scaler,
		Verified:   verified,
	}, nil
}

// checkCompatible rejects a scaler fitted for a different column layout.
func checkCompatible(doc *scalerDoc, schema features.Schema) error {
	if !semver.IsValid(doc.SchemaVersion) {
		return fmt.Errorf("%w: invalid schema version %q", ErrIncompatible, doc.SchemaVersion)
	}
	if semver.Major(doc.SchemaVersion) != semver.Major(schema.Version) {
		return fmt.Errorf("%w: scaler schema %s, application schema %s",
			ErrIncompatible, doc.SchemaVersion, schema.Version)
	}
	if len(doc.FeatureNames) != len(schema.Columns) {
		return fmt.Errorf("%w: scaler has %d features, schema has %d",
			ErrIncompatible, len(doc.FeatureNames), len(schema.Columns))
	}
	for i, name := range doc.FeatureNames {
		if name != schema.Columns[i] {
			return fmt.Errorf("%w: feature %d is %q, schema expects %q",
				ErrIncompatible, i, name, schema.Columns[i])
		}
	}
	return nil
}

// DefaultDir returns the directory holding the running executable.
func DefaultDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		resolved = exe
	}
	return filepath.Dir(resolved), nil
}
