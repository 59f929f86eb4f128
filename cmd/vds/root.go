package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pipespec/valve-datasheet/pkg/engine"
)

var (
	configDir string
	dataDir   string
	verbose   bool

	// logger carries CLI diagnostics; silent unless --verbose.
	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "vds",
		Version: engine.GenerationVersion,
		Short:   "Deterministic valve datasheet generation from VDS numbers",
		Long: `vds resolves Valve Data Sheet numbers into complete engineering
datasheets. A VDS number like BSFA1R is decoded against the valve-type
grammar, and every datasheet field is resolved from the piping material
specification, the indexed standards clauses, the material mappings, or the
VDS index - each with full traceability back to its source document.

Rulebooks are read from --config-dir and the extracted source documents
from --data-dir.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			} else {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			}
			var err error
			logger, err = cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "configs", "Directory holding the rulebook YAML files")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory holding the extracted document JSON files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug diagnostics")

	viper.SetEnvPrefix("VDS")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// resolvedConfigDir returns the effective rulebook directory.
// Priority: --config-dir flag > VDS_CONFIG_DIR env var > "configs".
func resolvedConfigDir() string {
	return viper.GetString("config_dir")
}

// resolvedDataDir returns the effective document directory.
// Priority: --data-dir flag > VDS_DATA_DIR env var > "data".
func resolvedDataDir() string {
	return viper.GetString("data_dir")
}

// engineLogger returns the slog sink for engine internals. It writes to
// stderr so stdout stays clean for command output; configuration warnings
// surface at the default level, everything else needs --verbose.
func engineLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadEngine builds the engine from the resolved directories.
func loadEngine(ctx context.Context) (*engine.Engine, error) {
	start := time.Now()
	eng, err := engine.Load(ctx, resolvedConfigDir(), resolvedDataDir(),
		engine.WithLogger(engineLogger()))
	if err != nil {
		return nil, err
	}
	logger.Debug("rulebooks loaded",
		zap.String("configDir", resolvedConfigDir()),
		zap.String("dataDir", resolvedDataDir()),
		zap.Int("vdsIndex", eng.IndexCount()),
		zap.Int("pipingClasses", eng.PipingClassCount()),
		zap.Duration("elapsed", time.Since(start)))
	return eng, nil
}
