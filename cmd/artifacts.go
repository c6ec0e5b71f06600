package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/abhisek/diarisk/internal/artifact"
	"github.com/abhisek/diarisk/internal/config"
	"github.com/abhisek/diarisk/internal/features"
	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Check or install the model and scaler files",
}

var artifactsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Load the artifacts and check them against the feature schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := artifactsDir(cfg)
		if err != nil {
			return err
		}

		b, err := artifact.Load(dir, features.V1, artifact.Options{
			ModelFile:  cfg.Artifacts.ModelFile,
			ScalerFile: cfg.Artifacts.ScalerFile,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Directory:  %s\n", b.Dir)
		fmt.Fprintf(w, "Classifier: %s\n", b.Classifier.Name())
		fmt.Fprintf(w, "Schema:     %s (%d features)\n", features.V1.Version, len(features.V1.Columns))
		if b.Verified {
			fmt.Fprintln(w, "Checksums:  verified")
		} else {
			fmt.Fprintf(w, "Checksums:  not checked (no %s)\n", artifact.ChecksumsFilename)
		}
		return nil
	},
}

var artifactsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and install a released artifact bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = cfg.Artifacts.BundleURL
		}
		if url == "" {
			return errors.New("no bundle URL: pass --url or set artifacts.bundle_url")
		}
		sumsURL, _ := cmd.Flags().GetString("checksums-url")
		if sumsURL == "" {
			sumsURL = cfg.Artifacts.ChecksumsURL
		}

		dir, err := artifactsDir(cfg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fetcher := artifact.NewFetcher(artifact.WithTimeout(timeout))

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		w := cmd.OutOrStdout()
		err = fetcher.Fetch(ctx, artifact.FetchInput{
			BundleURL:    url,
			ChecksumsURL: sumsURL,
			DestDir:      dir,
			ModelFile:    cfg.Artifacts.ModelFile,
			ScalerFile:   cfg.Artifacts.ScalerFile,
		}, func(p artifact.FetchProgress) {
			fmt.Fprintln(w, p.Message)
		})
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%w\n\nTry: diarisk artifacts fetch --artifacts <writable dir>", err)
			}
			return err
		}

		if _, err := artifact.Load(dir, features.V1, artifact.Options{
			ModelFile:  cfg.Artifacts.ModelFile,
			ScalerFile: cfg.Artifacts.ScalerFile,
		}); err != nil {
			return fmt.Errorf("installed bundle failed verification: %w", err)
		}
		fmt.Fprintln(w, "Bundle verified.")
		return nil
	},
}

func artifactsDir(cfg *config.Config) (string, error) {
	if cfg.Artifacts.Dir != "" {
		return cfg.Artifacts.Dir, nil
	}
	return artifact.DefaultDir()
}

func init() {
	artifactsFetchCmd.Flags().String("url", "", "Bundle (.tar.gz) URL (defaults to artifacts.bundle_url)")
	artifactsFetchCmd.Flags().String("checksums-url", "", "Checksums manifest URL (defaults to checksums.txt beside the bundle)")
	artifactsFetchCmd.Flags().Duration("timeout", 2*time.Minute, "Overall download timeout")

	artifactsCmd.AddCommand(artifactsVerifyCmd)
	artifactsCmd.AddCommand(artifactsFetchCmd)
}
