package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage saved mapping templates",
	Long: `Templates store the header row offset and the column mappings of a vendor's
statement layout. Create one with "vstmt map <file> --save-template NAME" and
apply it with --template on map or verify.`,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show <template-id>",
	Short: "Print a template as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <template-id>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

var templateImportCmd = &cobra.Command{
	Use:   "import <template.yaml>",
	Short: "Create or replace a template from a YAML file",
	Example: `  # template.yaml
  name: Acme monthly
  vendor_key: acme supply
  skip_rows: 2
  field_mappings:
    - header: Inv #
      field: invoice_number
    - header: Inv Date
      field: invoice_date`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplateImport,
}

var templateSaveCmd = &cobra.Command{
	Use:     "save <statement-file>",
	Short:   "Map a statement and save its column layout as a template",
	Example: `  vstmt template save acme.xlsx --name "Acme monthly" --vendor "Acme Supply" --skip-rows 2`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTemplateSave,
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <template-id> <statement-file>",
	Short: "Map a statement with a saved template",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateApply,
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateSaveCmd, templateApplyCmd, templateListCmd, templateShowCmd, templateDeleteCmd, templateImportCmd)

	templateSaveCmd.Flags().String("name", "", "Template name")
	templateSaveCmd.Flags().String("vendor", "", "Vendor the template belongs to")
	templateSaveCmd.Flags().Int("skip-rows", 0, "Rows to skip before the header row")
	_ = templateSaveCmd.MarkFlagRequired("name")

	templateApplyCmd.Flags().Bool("json", false, "Print results as JSON")
}

func runTemplateSave(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("template")
	ctx := cmd.Context()

	name, _ := cmd.Flags().GetString("name")
	vendor, _ := cmd.Flags().GetString("vendor")
	skipRows, _ := cmd.Flags().GetInt("skip-rows")

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	file, err := e.mapFile(ctx, args[0], skipRows, vendor, "", false)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", args[0], err)
	}

	tpl := mapping.TemplateFromResults(name, vendor, skipRows, file.results)
	if err := e.store.SaveTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	log.Info().Str("template_id", tpl.ID).Str("name", tpl.Name).Int("columns", len(tpl.FieldMappings)).Msg("Template saved")
	printMapResults(args[0], file, false)
	fmt.Printf("Template saved: %s (%s)\n", tpl.Name, tpl.ID)
	return nil
}

func runTemplateApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	asJSON, _ := cmd.Flags().GetBool("json")

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	file, err := e.mapFile(ctx, args[1], 0, "", args[0], false)
	if err != nil {
		return fmt.Errorf("failed to apply template: %w", err)
	}
	if asJSON {
		return printJSON(mapOutput{File: args[1], SkipRows: file.skipRows, Results: file.results})
	}
	printMapResults(args[1], file, false)
	return nil
}

func runTemplateList(cmd *cobra.Command, _ []string) error {
	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	templates, err := e.store.ListTemplates(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(templates) == 0 {
		fmt.Println("No templates saved.")
		return nil
	}

	fmt.Printf("%-36s  %-24s %-20s %4s %7s\n", "ID", "NAME", "VENDOR", "SKIP", "COLUMNS")
	fmt.Println(strings.Repeat("-", 96))
	for _, t := range templates {
		fmt.Printf("%-36s  %-24s %-20s %4d %7d\n", t.ID, truncate(t.Name, 24), truncate(t.VendorKey, 20), t.SkipRows, len(t.FieldMappings))
	}
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	tpl, err := e.store.LookupTemplate(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if tpl == nil {
		return fmt.Errorf("%s: %w", args[0], overlay.ErrTemplateNotFound)
	}

	out, err := yaml.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("template")

	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	if err := e.store.DeleteTemplate(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	log.Info().Str("template_id", args[0]).Msg("Template deleted")
	fmt.Printf("Template deleted: %s\n", args[0])
	return nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("template")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var tpl models.Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	if err := overlay.ValidateTemplate(&tpl); err != nil {
		return err
	}

	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	for _, fm := range tpl.FieldMappings {
		if !e.registry.Has(fm.Field) {
			return fmt.Errorf("template maps %q to unknown field %q: %w", fm.Header, fm.Field, overlay.ErrInvalidTemplate)
		}
	}

	if err := e.store.SaveTemplate(cmd.Context(), &tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	log.Info().Str("template_id", tpl.ID).Str("name", tpl.Name).Msg("Template imported")
	fmt.Printf("Template saved: %s (%s)\n", tpl.Name, tpl.ID)
	return nil
}
