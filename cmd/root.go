package cmd

import (
	"github.com/abhisek/diarisk/internal/config"
	"github.com/abhisek/diarisk/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diarisk",
	Short: "Diabetes risk screening form",
	Long: "Diarisk is a terminal form that runs patient measurements through a trained " +
		"classifier and reports whether they indicate diabetes, optionally with the " +
		"contribution of each factor.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a TOML config file")
	pf.String("db", "", "Path to SQLite database file (overrides DIARISK_DB env var)")
	pf.String("artifacts", "", "Directory holding the model and scaler (defaults to the executable's directory)")
	pf.String("log-file", "", "Write logs to this file")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config (or the default
// locations) and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
		cfg.Artifacts.Dir = dir
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if f, _ := cmd.Flags().GetString("log-file"); f != "" {
		cfg.Log.File = f
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag or store.path
// (highest priority), then DIARISK_DB env var, then the default XDG path.
func resolveDBPath(cfg *config.Config) (string, error) {
	if p := cfg.Store.Path; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the history database named by cmd's flags and config.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath)
}
