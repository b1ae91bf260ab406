package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gauravpcu/vendor-statements-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vstmt configuration",
	Long: `Manage vstmt configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (VSTMT_*, OPENAI_API_KEY)
3. Config file (~/.vendor-statements/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
	} else {
		fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
	}

	shown := *cfg
	if shown.OpenAI.APIKey != "" {
		shown.OpenAI.APIKey = "********"
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  Current Configuration")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()
	fmt.Print(string(data))
	fmt.Println()
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	dir, err := config.DefaultDir()
	if err != nil {
		return fmt.Errorf("error finding home directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'vstmt config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# vstmt configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
	b.WriteString("#   1. CLI flags\n")
	b.WriteString("#   2. Environment variables (VSTMT_*, e.g. VSTMT_MATCHING_DATE_TOLERANCE_DAYS)\n")
	b.WriteString("#   3. This config file\n")
	b.WriteString("#   4. Built-in defaults\n")
	b.WriteString("#\n")
	b.WriteString("# Keep the OpenAI key in the environment: export OPENAI_API_KEY=sk-...\n\n")
	b.Write(data)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", path)
	fmt.Printf("\nTo view the effective configuration:\n  vstmt config show\n")
	return nil
}
