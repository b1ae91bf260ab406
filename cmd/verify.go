package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/sheets"
	"github.com/gauravpcu/vendor-statements-sub000/internal/verification"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <statement-file>",
	Short: "Verify statement invoices against the system of record",
	Long: `Verify maps a vendor statement, converts every data row into an invoice and
searches the system of record for matching candidates. Each invoice is
classified as Found, Not Found or Partial Match.

Candidate sources (exactly one):
  --db          SQLite database filled with "vstmt candidates import"
  --sheet       Google Sheet (first row is the header row)
  --candidates  CSV or XLSX export of the system of record

Google Sheets access uses --credentials, GOOGLE_APPLICATION_CREDENTIALS or
GOOGLE_CREDENTIALS.`,
	Example: `  # Verify against a local candidate database
  vstmt verify acme.xlsx --db erp.db --vendor "Acme Supply"

  # Verify against an ERP export and write the results to a workbook
  vstmt verify acme.csv --candidates erp-export.csv --output results.xlsx

  # Verify against a Google Sheet and append the results to another sheet
  vstmt verify acme.xlsx --sheet "$ERP_SHEET_URL" --export-sheet "$REVIEW_SHEET_URL"`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Int("skip-rows", 0, "Rows to skip before the header row")
	verifyCmd.Flags().String("vendor", "", "Vendor name for preferences and for rows without a vendor column")
	verifyCmd.Flags().String("template", "", "Template ID to apply (overrides --skip-rows)")
	verifyCmd.Flags().String("db", "", "SQLite candidate database")
	verifyCmd.Flags().String("sheet", "", "Google Sheets URL of the system of record")
	verifyCmd.Flags().String("sheet-range", "", "A1 range of the candidate sheet (default: Invoices!A:Z)")
	verifyCmd.Flags().String("credentials", "", "Google service account JSON file")
	verifyCmd.Flags().String("candidates", "", "CSV or XLSX export of the system of record")
	verifyCmd.Flags().Bool("json", false, "Print results as JSON")
	verifyCmd.Flags().Bool("details", false, "Print matched fields and discrepancies per invoice")
	verifyCmd.Flags().String("output", "", "Write results to this XLSX file")
	verifyCmd.Flags().String("export-sheet", "", "Append results to this Google Sheets URL")
	verifyCmd.Flags().String("export-tab", "Verification", "Sheet name for --export-sheet and --output")
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("verify")
	ctx := cmd.Context()

	skipRows, _ := cmd.Flags().GetInt("skip-rows")
	vendor, _ := cmd.Flags().GetString("vendor")
	templateID, _ := cmd.Flags().GetString("template")
	candidatesFile, _ := cmd.Flags().GetString("candidates")
	asJSON, _ := cmd.Flags().GetBool("json")
	details, _ := cmd.Flags().GetBool("details")
	outputPath, _ := cmd.Flags().GetString("output")
	exportURL, _ := cmd.Flags().GetString("export-sheet")
	exportTab, _ := cmd.Flags().GetString("export-tab")

	if skipRows < 0 {
		return fmt.Errorf("skip-rows must not be negative")
	}

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	file, err := e.mapFile(ctx, args[0], skipRows, vendor, templateID, false)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", args[0], err)
	}
	if vendor == "" && file.template != nil {
		vendor = file.template.VendorKey
	}

	invoices, err := file.invoices(vendor)
	if err != nil {
		return fmt.Errorf("failed to read invoices from %s: %w", args[0], err)
	}
	if len(invoices) == 0 {
		fmt.Println("No invoice rows found.")
		return nil
	}

	source, err := e.candidateSource(ctx, candidatesFile)
	if err != nil {
		return err
	}
	svc, err := e.verifier(source)
	if err != nil {
		return fmt.Errorf("failed to initialize verification: %w", err)
	}

	log.Info().
		Str("file", args[0]).
		Int("invoices", len(invoices)).
		Int("workers", cfg.Workers).
		Msg("Starting verification")

	var onDone func(done, total int)
	if !asJSON {
		onDone = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] verified", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	results, summary := svc.VerifyBatch(ctx, invoices, onDone)

	if outputPath != "" {
		if err := sheets.WriteOutcomesXLSX(outputPath, results, exportTab); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		log.Info().Str("path", outputPath).Msg("Results written")
	}
	if exportURL != "" {
		out, err := sheets.NewSheetsService(ctx, exportURL, cfg.Candidates.CredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		if err := out.WriteOutcomes(ctx, results, exportTab); err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		log.Info().Str("sheet", exportTab).Msg("Results exported")
	}

	if asJSON {
		return printJSON(verifyOutput{Summary: summary, Results: results})
	}

	printVerifyResults(results, details)
	printSummary(summary, outputPath, exportURL, exportTab)
	return nil
}

type verifyOutput struct {
	Summary verification.Summary  `json:"summary"`
	Results []verification.Result `json:"results"`
}

func printVerifyResults(results []verification.Result, details bool) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                        INVOICE VERIFICATION")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-18s %-24s %-10s %12s  %-14s %5s\n", "INVOICE", "VENDOR", "DATE", "AMOUNT", "RESULT", "CONF")
	fmt.Println(strings.Repeat("-", 80))

	for _, r := range results {
		inv := r.Invoice
		date := ""
		if !inv.InvoiceDate.IsZero() {
			date = inv.InvoiceDate.Format("2006-01-02")
		}
		amount := ""
		if inv.TotalAmount != nil {
			amount = fmt.Sprintf("%.2f", *inv.TotalAmount)
		}

		if r.Error != nil {
			fmt.Printf("%-18s %-24s %-10s %12s  %-14s\n", truncate(inv.InvoiceNumber, 18), truncate(inv.VendorName, 24), date, amount, string(r.Error.Kind))
			if details {
				fmt.Printf("    %v\n", r.Error)
			}
			continue
		}

		conf := ""
		if best := r.Outcome.BestMatch; best != nil {
			conf = fmt.Sprintf("%.2f", best.ConfidenceScore)
		}
		fmt.Printf("%-18s %-24s %-10s %12s  %-14s %5s\n", truncate(inv.InvoiceNumber, 18), truncate(inv.VendorName, 24), date, amount, r.Outcome.Classification, conf)

		if details && r.Outcome.BestMatch != nil {
			best := r.Outcome.BestMatch
			fmt.Printf("    candidate %s: %s\n", best.Candidate.SourceID, fieldMarks(best))
			for _, d := range best.Discrepancies {
				fmt.Printf("    %-14s %-16s expected %q, got %q\n", d.FieldName, d.VarianceType, d.ExpectedValue, d.ActualValue)
			}
		}
	}
	fmt.Println()
}

// fieldMarks lists every scored field of m with a check or a cross.
func fieldMarks(m *models.MatchResult) string {
	names := make([]string, 0, len(m.FieldScores))
	for name := range m.FieldScores {
		names = append(names, name)
	}
	for _, name := range m.MatchedFields {
		if _, ok := m.FieldScores[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		mark := "✗"
		if m.HasMatched(name) {
			mark = "✓"
		}
		parts[i] = fmt.Sprintf("%s %s", name, mark)
	}
	return strings.Join(parts, ", ")
}

func printSummary(s verification.Summary, outputPath, exportURL, exportTab string) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Invoices:      %d\n", s.Total)
	fmt.Printf("Found:         %d\n", s.Found)
	fmt.Printf("Partial match: %d\n", s.PartialMatch)
	fmt.Printf("Not found:     %d\n", s.NotFound)
	if failed := s.InputErrors + s.ConnectorUnavailable + s.Cancelled; failed > 0 {
		fmt.Printf("Errors:        %d (input %d, connector %d, cancelled %d)\n",
			failed, s.InputErrors, s.ConnectorUnavailable, s.Cancelled)
	}
	fmt.Printf("Duration:      %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("Request ID:    %s\n", s.RequestID)
	if outputPath != "" {
		fmt.Printf("Workbook:      %s\n", outputPath)
	}
	if exportURL != "" {
		fmt.Printf("Sheet:         %s\n", exportTab)
		fmt.Printf("URL:           %s\n", exportURL)
	}
	fmt.Println(strings.Repeat("=", 50))
}
