package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/catalog-sync/internal/mapping"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("catalog-sync version %s\n", cmd.Root().Version)
		fmt.Println("\nAPIs:")
		fmt.Println("  Control plane search: /v1/search")
		fmt.Println("  Catalog:              /v1 (auth, blueprints)")
		fmt.Println("\nBuilt-in mapping:")
		for _, e := range mapping.Default() {
			fmt.Printf("  %-22s %s\n", e.Type, e.Blueprint)
		}
	},
}
