package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
)

var preferenceCmd = &cobra.Command{
	Use:   "preference",
	Short: "Manage confirmed header mappings per vendor",
	Long: `A confirmed preference pins one source header to one canonical field for a
vendor. Preferences take priority over alias matching on every later run; an
empty --vendor confirms the mapping for all vendors.`,
}

var preferenceConfirmCmd = &cobra.Command{
	Use:     "confirm",
	Short:   "Confirm the field a header maps to",
	Example: `  vstmt preference confirm --vendor "Acme Supply" --header "Inv Amt" --field total_amount`,
	Args:    cobra.NoArgs,
	RunE:    runPreferenceConfirm,
}

var preferenceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a confirmed header mapping",
	Args:  cobra.NoArgs,
	RunE:  runPreferenceDelete,
}

func init() {
	rootCmd.AddCommand(preferenceCmd)
	preferenceCmd.AddCommand(preferenceConfirmCmd, preferenceDeleteCmd)

	for _, c := range []*cobra.Command{preferenceConfirmCmd, preferenceDeleteCmd} {
		c.Flags().String("vendor", "", "Vendor name (empty for all vendors)")
		c.Flags().String("header", "", "Source column header")
		_ = c.MarkFlagRequired("header")
	}
	preferenceConfirmCmd.Flags().String("field", "", "Canonical field name")
	_ = preferenceConfirmCmd.MarkFlagRequired("field")
}

func runPreferenceConfirm(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("preference")

	vendor, _ := cmd.Flags().GetString("vendor")
	header, _ := cmd.Flags().GetString("header")
	field, _ := cmd.Flags().GetString("field")

	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	if !e.registry.Has(field) {
		return fmt.Errorf("unknown field %q (known: %v): %w", field, e.registry.Names(), overlay.ErrInvalidPreference)
	}
	if err := e.store.SavePreference(cmd.Context(), vendor, header, field); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	log.Info().Str("vendor", vendor).Str("header", header).Str("field", field).Msg("Preference confirmed")
	fmt.Printf("Confirmed: %q -> %s\n", header, field)
	return nil
}

func runPreferenceDelete(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("preference")

	vendor, _ := cmd.Flags().GetString("vendor")
	header, _ := cmd.Flags().GetString("header")

	e, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer e.Close()

	if err := e.store.DeletePreference(cmd.Context(), vendor, header); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	log.Info().Str("vendor", vendor).Str("header", header).Msg("Preference deleted")
	fmt.Printf("Deleted preference for %q\n", header)
	return nil
}
