// Package cli implements the catalog-sync command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "catalog-sync",
	Short: "Sync gateway control-plane entities into a software catalog",
	Long: `catalog-sync reads services, routes, consumers, API products and API
versions from the gateway control plane's search API, converts each into
a catalog entity and upserts it into the matching blueprint.

Running catalog-sync without a subcommand performs one full sync.`,
	SilenceUsage: true,
	RunE:         runE,
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("mapping", "", "Type to blueprint mapping file (yaml or json)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP timeout per request (0 waits forever)")
	rootCmd.PersistentFlags().IntP("verbosity", "v", 0, "Log verbosity")
	rootCmd.PersistentFlags().Bool("trace", false, "Export OpenTelemetry spans to stderr")

	viper.BindPFlag("mapping-file", rootCmd.PersistentFlags().Lookup("mapping"))
	viper.BindPFlag("http-timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))
	viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))

	addRunFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
