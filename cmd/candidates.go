package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gauravpcu/vendor-statements-sub000/internal/connector"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/tabular"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage the local candidate database",
}

var candidatesImportCmd = &cobra.Command{
	Use:   "import <export-file>",
	Short: "Load a system-of-record export into a SQLite candidate database",
	Long: `Import maps the headers of a CSV or XLSX export of the system of record and
upserts every row into the candidate database given by --db. A column named
"id" or "source_id" becomes the record id; otherwise rows are numbered.`,
	Example: `  vstmt candidates import erp-invoices.xlsx --db erp.db`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCandidatesImport,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesImportCmd)

	candidatesImportCmd.Flags().String("db", "", "SQLite candidate database (created if missing)")
	candidatesImportCmd.Flags().Int("skip-rows", 0, "Rows to skip before the header row")
	candidatesImportCmd.Flags().String("prefix", "import", "Id prefix for rows without an id column")
}

func runCandidatesImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("candidates")
	ctx := cmd.Context()

	skipRows, _ := cmd.Flags().GetInt("skip-rows")
	prefix, _ := cmd.Flags().GetString("prefix")

	dbPath := cfg.Candidates.DBPath
	if dbPath == "" {
		return fmt.Errorf("--db is required: %w", models.ErrInvalidConfiguration)
	}

	table, err := tabular.Read(ctx, args[0], skipRows)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	candidates, err := connector.CandidatesFromTable(ctx, e.mapper, table.Headers, table.Rows, prefix)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", args[0], err)
	}

	src, err := connector.OpenSQLiteSource(ctx, dbPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := src.Upsert(ctx, candidates); err != nil {
		return fmt.Errorf("failed to import candidates: %w", err)
	}

	log.Info().Str("file", args[0]).Str("db", dbPath).Int("candidates", len(candidates)).Msg("Candidates imported")
	fmt.Printf("Imported %d candidates into %s\n", len(candidates), dbPath)
	return nil
}
