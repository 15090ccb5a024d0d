package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "dentai",
	Short:        "Clinical case tutor for dental students",
	Long:         "Dentai interprets a dental student's free-text actions against a patient case, scores them and answers as the patient or as an educator.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides DENTAI_DB env var)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (also DENTAI_DEBUG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then DENTAI_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openEventStore opens the event log for read-only inspection commands.
func openEventStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// newLogger builds the production logger, at debug level when asked.
func newLogger(cmd *cobra.Command, debug bool) (*zap.Logger, error) {
	if d, _ := cmd.Flags().GetBool("debug"); d {
		debug = true
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
