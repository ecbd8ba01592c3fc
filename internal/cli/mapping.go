package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/catalog-sync/internal/mapping"
	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspect and validate the type to blueprint mapping",
}

var mappingValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a mapping file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("mapping-file")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no mapping file given")
		}

		m, err := mapping.Load(path)
		if err != nil {
			color.Red("✗ %v", err)
			return err
		}

		result := m.Validate()
		if !result.Valid {
			color.Red("✗ %s is invalid:", path)
			for _, e := range result.Errors {
				color.Red("  - %s", e)
			}
			return fmt.Errorf("mapping validation failed with %d error(s)", len(result.Errors))
		}

		color.Green("✓ %s is valid (%d types)", path, len(m))
		warnGenericTypes(m)
		return nil
	},
}

var mappingShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective mapping in sync order",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mapping.Resolve(viper.GetString("mapping-file"))
		if err != nil {
			return err
		}

		if bp, ok := m.Blueprint(transform.TypeService); ok {
			fmt.Printf("%-22s → %s\n", transform.TypeService, bp)
		}
		for _, e := range m {
			if e.Type == transform.TypeService {
				continue
			}
			fmt.Printf("%-22s → %s\n", e.Type, e.Blueprint)
		}
		warnGenericTypes(m)
		return nil
	},
}

var mappingInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the built-in mapping to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mapping.Save(mapping.Default(), args[0]); err != nil {
			color.Red("✗ %v", err)
			return err
		}
		color.Green("✓ Wrote %s", args[0])
		return nil
	},
}

func warnGenericTypes(m mapping.Mapping) {
	r := transform.NewRegistry("")
	for _, e := range m {
		if !r.Known(e.Type) {
			color.Yellow("⚠ %s has no dedicated transformer; records are shaped generically", e.Type)
		}
	}
}

func init() {
	mappingCmd.AddCommand(mappingValidateCmd)
	mappingCmd.AddCommand(mappingShowCmd)
	mappingCmd.AddCommand(mappingInitCmd)
}
