// Package config loads diarisk settings from defaults, an optional TOML
// file and DIARISK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abhisek/diarisk/internal/artifact"
	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/narrative"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DIARISK_EXPLAINER_URL.
const EnvPrefix = "DIARISK"

// Config is the full application configuration.
type Config struct {
	Artifacts ArtifactsConfig  `mapstructure:"artifacts"`
	Inference InferenceConfig  `mapstructure:"inference"`
	Explainer ExplainerConfig  `mapstructure:"explainer"`
	Narrative narrative.Config `mapstructure:"narrative"`
	Store     StoreConfig      `mapstructure:"store"`
	Log       LogConfig        `mapstructure:"log"`
}

// ArtifactsConfig locates the model and scaler files.
type ArtifactsConfig struct {
	// Dir defaults to the executable's directory when empty.
	Dir          string `mapstructure:"dir"`
	ModelFile    string `mapstructure:"model_file"`
	ScalerFile   string `mapstructure:"scaler_file"`
	BundleURL    string `mapstructure:"bundle_url"`
	ChecksumsURL string `mapstructure:"checksums_url"`
}

// InferenceConfig tunes the decision rule.
type InferenceConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// ExplainerConfig points at the attribution sidecar. An empty URL turns the
// chart off and the result screen shows the verdict only.
type ExplainerConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Tolerance float64       `mapstructure:"tolerance"`
	TopN      int           `mapstructure:"top_n"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

// Enabled reports whether attributions should be requested.
func (e ExplainerConfig) Enabled() bool {
	return e.URL != ""
}

// RetryConfig mirrors explain.RetryConfig with config keys.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// ExplainRetry converts to the explain package's type.
func (e ExplainerConfig) ExplainRetry() explain.RetryConfig {
	return explain.RetryConfig{
		MaxAttempts: e.Retry.MaxAttempts,
		InitialWait: e.Retry.InitialWait,
		MaxWait:     e.Retry.MaxWait,
		Multiplier:  e.Retry.Multiplier,
	}
}

// StoreConfig locates the history database.
type StoreConfig struct {
	// Path defaults to store.DefaultDBPath when empty.
	Path string `mapstructure:"path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// SetDefaults registers every key so that environment overrides apply to
// keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("artifacts.dir", "")
	v.SetDefault("artifacts.model_file", artifact.ModelFilename)
	v.SetDefault("artifacts.scaler_file", artifact.ScalerFilename)
	v.SetDefault("artifacts.bundle_url", "")
	v.SetDefault("artifacts.checksums_url", "")

	v.SetDefault("inference.threshold", inference.DefaultThreshold)

	er := explain.DefaultRetryConfig()
	v.SetDefault("explainer.url", "")
	v.SetDefault("explainer.timeout", 5*time.Second)
	v.SetDefault("explainer.tolerance", explain.DefaultTolerance)
	v.SetDefault("explainer.top_n", 8)
	v.SetDefault("explainer.retry.max_attempts", er.MaxAttempts)
	v.SetDefault("explainer.retry.initial_wait", er.InitialWait)
	v.SetDefault("explainer.retry.max_wait", er.MaxWait)
	v.SetDefault("explainer.retry.multiplier", er.Multiplier)

	n := narrative.DefaultConfig()
	v.SetDefault("narrative.enabled", n.Enabled)
	v.SetDefault("narrative.provider", n.Provider)
	v.SetDefault("narrative.timeout", n.Timeout)
	v.SetDefault("narrative.max_factors", n.MaxFactors)
	v.SetDefault("narrative.anthropic.api_key", "")
	v.SetDefault("narrative.anthropic.model", n.Anthropic.Model)
	v.SetDefault("narrative.openai.api_key", "")
	v.SetDefault("narrative.openai.model", n.OpenAI.Model)
	v.SetDefault("narrative.openai.base_url", "")
	v.SetDefault("narrative.gemini.api_key", "")
	v.SetDefault("narrative.gemini.model", n.Gemini.Model)
	v.SetDefault("narrative.openrouter.api_key", "")
	v.SetDefault("narrative.openrouter.model", n.OpenRouter.Model)
	v.SetDefault("narrative.openrouter.base_url", "")
	v.SetDefault("narrative.retry.max_attempts", n.Retry.MaxAttempts)
	v.SetDefault("narrative.retry.initial_wait", n.Retry.InitialWait)
	v.SetDefault("narrative.retry.max_wait", n.Retry.MaxWait)
	v.SetDefault("narrative.retry.multiplier", n.Retry.Multiplier)

	v.SetDefault("store.path", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
}

// Load reads configuration. When configFile is empty the first existing
// file among DefaultPaths is used, if any; an explicit file must exist.
func Load(configFile string) (*Config, error) {
	v := New()

	path := configFile
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return LoadWithViper(v)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Inference.Threshold <= 0 || c.Inference.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("inference.threshold must be in (0, 1), got %g", c.Inference.Threshold))
	}
	if c.Explainer.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("explainer.tolerance must be positive, got %g", c.Explainer.Tolerance))
	}
	if c.Explainer.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("explainer.timeout must be positive, got %s", c.Explainer.Timeout))
	}
	if c.Artifacts.ModelFile == "" || c.Artifacts.ScalerFile == "" {
		errs = append(errs, errors.New("artifacts.model_file and artifacts.scaler_file must be set"))
	}
	return errors.Join(errs...)
}

// DefaultPaths lists where Load looks for a config file, in order.
func DefaultPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "diarisk", "config.toml"))
	}
	return append(paths, "diarisk.toml")
}

func findConfigFile() string {
	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
