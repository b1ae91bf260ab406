package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
)

var mapCmd = &cobra.Command{
	Use:   "map <statement-file>",
	Short: "Map the column headers of a vendor statement onto the invoice schema",
	Long: `Map reads the header row of a CSV or XLSX vendor statement and resolves each
column to a canonical invoice field.

Resolution order per header: template or vendor preference, exact alias match,
fuzzy alias match. With --suggest, ranked alternatives are listed per header,
including AI suggestions when an OpenAI API key is configured.`,
	Example: `  # Map a statement whose header is on the first row
  vstmt map statement.csv

  # Skip two title rows and remember the result as a template
  vstmt map acme.xlsx --skip-rows 2 --vendor "Acme Supply" --save-template "Acme monthly"

  # Map with a saved template and print JSON
  vstmt map acme.xlsx --template 3f2c... --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().Int("skip-rows", 0, "Rows to skip before the header row")
	mapCmd.Flags().String("vendor", "", "Vendor name, used to apply confirmed vendor preferences")
	mapCmd.Flags().String("template", "", "Template ID to apply (overrides --skip-rows)")
	mapCmd.Flags().Bool("suggest", false, "List ranked suggestions for each header")
	mapCmd.Flags().Bool("json", false, "Print results as JSON")
	mapCmd.Flags().String("save-template", "", "Save the mapped columns as a template with this name")
}

func runMap(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("map")
	ctx := cmd.Context()

	skipRows, _ := cmd.Flags().GetInt("skip-rows")
	vendor, _ := cmd.Flags().GetString("vendor")
	templateID, _ := cmd.Flags().GetString("template")
	suggest, _ := cmd.Flags().GetBool("suggest")
	asJSON, _ := cmd.Flags().GetBool("json")
	saveAs, _ := cmd.Flags().GetString("save-template")

	if skipRows < 0 {
		return fmt.Errorf("skip-rows must not be negative")
	}

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	file, err := e.mapFile(ctx, args[0], skipRows, vendor, templateID, suggest)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", args[0], err)
	}

	log.Info().
		Str("file", args[0]).
		Int("headers", len(file.results)).
		Int("rows", len(file.table.Rows)).
		Msg("Headers mapped")

	var savedID string
	if saveAs != "" {
		if file.template != nil && vendor == "" {
			vendor = file.template.VendorKey
		}
		tpl := mapping.TemplateFromResults(saveAs, vendor, file.skipRows, file.results)
		if err := e.store.SaveTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("failed to save template: %w", err)
		}
		savedID = tpl.ID
		log.Info().Str("template_id", tpl.ID).Str("name", tpl.Name).Msg("Template saved")
	}

	if asJSON {
		return printJSON(mapOutput{File: args[0], SkipRows: file.skipRows, TemplateID: savedID, Results: file.results})
	}

	printMapResults(args[0], file, suggest)
	if savedID != "" {
		fmt.Printf("Template saved: %s (%s)\n", saveAs, savedID)
	}
	return nil
}

type mapOutput struct {
	File       string           `json:"file"`
	SkipRows   int              `json:"skip_rows"`
	TemplateID string           `json:"saved_template_id,omitempty"`
	Results    []mapping.Result `json:"results"`
}

func printMapResults(path string, file *mappedFile, suggest bool) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                          HEADER MAPPING")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("File: %s\n", path)
	if file.template != nil {
		fmt.Printf("Template: %s (%s)\n", file.template.Name, file.template.ID)
	}
	fmt.Printf("Skip rows: %d\n", file.skipRows)
	fmt.Printf("Data rows: %d\n", len(file.table.Rows))
	fmt.Println()

	fmt.Printf("%-32s %-20s %6s  %s\n", "HEADER", "FIELD", "CONF", "METHOD")
	fmt.Println(strings.Repeat("-", 80))

	mapped := 0
	for _, r := range file.results {
		m := r.Mapping
		if m.IsMapped() {
			mapped++
		}
		status := string(m.Method)
		if m.Error != "" {
			status = "error: " + m.Error
		}
		fmt.Printf("%-32s %-20s %5.0f%%  %s\n", truncate(m.OriginalHeader, 32), m.MappedField, m.ConfidenceScore, status)

		if suggest {
			for _, s := range r.Suggestions {
				marker := ""
				if s.AutoApply {
					marker = " [auto]"
				}
				fmt.Printf("    -> %-26s %5.0f%%  %s%s\n", s.SuggestedField, s.Confidence*100, s.Method, marker)
			}
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Mapped: %d/%d\n", mapped, len(file.results))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
