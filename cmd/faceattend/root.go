// faceattend is the command-line frontend for the face-attendance core:
// user enrollment from captured images, recognition checks, attendance
// marking, and reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attendly/faceattend/pkg/attend"
	"github.com/attendly/faceattend/pkg/config"
	"github.com/attendly/faceattend/pkg/logging"
	"github.com/attendly/faceattend/pkg/recognition"
	"github.com/attendly/faceattend/pkg/store"
)

const version = "0.1.0"

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "faceattend",
	Short: "Face recognition attendance tracking",
	Long: `faceattend registers users from face captures, recognizes them in
later captures, and records check-in/check-out attendance backed by SQLite.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize file logging: %v\n", err)
	}

	logging.Debugf("faceattend v%s starting", version)
	return nil
}

// openStore opens the configured database, creating directories as needed.
func openStore() (*store.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage.DatabasePath, cfg.Storage.EncryptionEnabled)
}

// openService builds the full pipeline: store, dlib encoder, and facade.
func openService() (*attend.Service, *recognition.Encoder, *store.Store, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	encoder := recognition.NewEncoder()
	if err := encoder.LoadModels(cfg.Recognition.ModelPath); err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("failed to load models (run 'faceattend download-models'): %w", err)
	}

	svc, err := attend.New(cfg, encoder, nil, st)
	if err != nil {
		encoder.Close()
		st.Close()
		return nil, nil, nil, err
	}
	return svc, encoder, st, nil
}
