package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gauravpcu/vendor-statements-sub000/internal/config"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
)

var version = "1.0.0"

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
)

// flagKeys binds command flags to configuration keys. A flag only overrides
// its key when set on the command line.
var flagKeys = map[string]string{
	"db":          "candidates.db_path",
	"sheet":       "candidates.sheet_url",
	"sheet-range": "candidates.sheet_range",
	"credentials": "candidates.credentials_file",
	"overlay-db":  "overlay.db_path",
	"fields":      "fields_file",
	"workers":     "workers",
	"log-level":   "log.level",
}

var rootCmd = &cobra.Command{
	Use:   "vstmt",
	Short: "Map vendor statement columns and verify invoices against the system of record",
	Long: `vstmt maps the column headers of vendor statement files (CSV, XLSX) onto a
canonical invoice schema and verifies each statement invoice against a system of
record, classifying it as Found, Not Found or Partial Match.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (VSTMT_*, OPENAI_API_KEY)
  3. Config file (~/.vendor-statements/config.yaml)
  4. Defaults`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	// Ctrl-C cancels a running batch; finished results are still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Close()
		stop()
		os.Exit(1)
	}
	logger.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.vendor-statements/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("fields", "", "canonical field definitions YAML (default: built-in schema)")
	rootCmd.PersistentFlags().String("overlay-db", "", "SQLite database for templates and confirmed preferences")
	rootCmd.PersistentFlags().Int("workers", 0, "parallel workers for batch mapping and verification")
}

// loadConfig reads the config file, environment and flags, then sets up logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if dir, err := config.DefaultDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := config.BindEnv(v); err != nil {
		return fmt.Errorf("bind environment: %w", err)
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.WithComponent("cmd")
	log.Debug().
		Str("command", cmd.CommandPath()).
		Str("config_file", v.ConfigFileUsed()).
		Msg("Configuration loaded")
	return nil
}
