package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abhisek/diarisk/internal/app"
	"github.com/abhisek/diarisk/internal/artifact"
	"github.com/abhisek/diarisk/internal/assess"
	"github.com/abhisek/diarisk/internal/config"
	"github.com/abhisek/diarisk/internal/explain"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/abhisek/diarisk/internal/inference"
	"github.com/abhisek/diarisk/internal/logging"
	"github.com/abhisek/diarisk/internal/narrative"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// environment is what a command needs to assess inputs: a loaded model,
// optional collaborators, and the resources to release afterwards.
type environment struct {
	cfg     *config.Config
	log     *zap.Logger
	bundle  *artifact.Bundle
	store   *store.Store // nil when the history database could not be opened
	service *assess.Service
	closers []func() error
}

func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func (e *environment) history() store.PredictionRepo {
	if e.store == nil {
		return nil
	}
	return e.store.PredictionRepo()
}

// prepare builds the environment. Artifacts are loaded first: when they are
// missing or corrupt nothing else is opened and the error is returned.
// Optional collaborators that fail to start are reported on warn and left
// out.
func prepare(ctx context.Context, cfg *config.Config, warn io.Writer) (*environment, error) {
	log, closeLog, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	env := &environment{cfg: cfg, log: log, closers: []func() error{closeLog}}

	dir, err := artifactsDir(cfg)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	bundle, err := artifact.Load(dir, features.V1, artifact.Options{
		ModelFile:  cfg.Artifacts.ModelFile,
		ScalerFile: cfg.Artifacts.ScalerFile,
	})
	if err != nil {
		log.Error("artifact load failed", zap.String("dir", dir), zap.Error(err))
		_ = env.Close()
		return nil, fmt.Errorf("load artifacts from %s: %w", dir, err)
	}
	env.bundle = bundle
	log.Info("artifacts loaded",
		zap.String("dir", bundle.Dir),
		zap.String("classifier", bundle.Classifier.Name()),
		zap.Bool("verified", bundle.Verified))

	if dbPath, err := resolveDBPath(cfg); err != nil {
		fmt.Fprintln(warn, "History unavailable:", err)
	} else if st, err := store.Open(dbPath); err != nil {
		log.Warn("history store unavailable", zap.String("path", dbPath), zap.Error(err))
		fmt.Fprintln(warn, "History unavailable:", err)
	} else {
		env.store = st
		env.closers = append(env.closers, st.Close)
	}

	opts := assess.Options{
		Tolerance: cfg.Explainer.Tolerance,
		History:   env.history(),
		Logger:    log,
	}

	if cfg.Explainer.Enabled() {
		retry := cfg.Explainer.ExplainRetry()
		opts.Explainer = explain.WithRetry(
			explain.NewHTTPExplainer(cfg.Explainer.URL, cfg.Explainer.Timeout, explain.WithLogger(log)),
			retry)
		opts.ExplainTimeout = explainBudget(cfg.Explainer.Timeout, retry)
	}

	if cfg.Narrative.Enabled {
		opts.Narrator = buildNarrator(ctx, cfg.Narrative, env, warn)
	}

	pipeline := inference.NewPipeline(bundle.Scaler, bundle.Classifier, cfg.Inference.Threshold)
	env.service = assess.NewService(features.V1, pipeline, opts)
	return env, nil
}

func buildNarrator(ctx context.Context, cfg narrative.Config, env *environment, warn io.Writer) *narrative.Narrator {
	cfg, ok := narrative.DiscoverConfig(cfg)
	if !ok {
		fmt.Fprintln(warn, "Narrative summaries not configured:", cfg.Validate())
		return nil
	}

	var events store.EventRepo
	if env.store != nil {
		events = env.store.EventRepo()
	}
	backend, err := narrative.NewBackend(ctx, cfg, events, env.log)
	if err != nil {
		env.log.Warn("narrative provider unavailable", zap.Error(err))
		fmt.Fprintln(warn, "Narrative summaries unavailable:", err)
		return nil
	}
	env.log.Info("narrative provider ready", zap.String("provider", cfg.Provider))
	return narrative.NewNarrator(backend, cfg)
}

// explainBudget bounds a whole explain call including retries and waits.
func explainBudget(perAttempt time.Duration, retry explain.RetryConfig) time.Duration {
	attempts := max(retry.MaxAttempts, 1)
	return perAttempt*time.Duration(attempts) + retry.MaxWait*time.Duration(attempts-1)
}

// runApp loads everything the form needs, then launches the TUI.
func runApp(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	env, err := prepare(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	return app.Run(app.State{
		Assessor: env.service,
		History:  env.history(),
		Log:      env.log,
	})
}
