package cli

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/catalog-sync/internal/config"
	"github.com/blackwell-systems/catalog-sync/internal/httpclient"
	"github.com/blackwell-systems/catalog-sync/internal/probe"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that both APIs are reachable",
	Long:  `Probe the control-plane search API and the catalog API without authenticating.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		timeout := cfg.HTTPTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}

		status := probe.Endpoints(cmd.Context(), httpclient.New(timeout, nil), cfg)

		// Print status
		color.Cyan("Endpoint         Status      URL")
		color.Cyan("────────────────────────────────────────")

		printEndpointStatus("Control plane", status.Source)
		printEndpointStatus("Catalog", status.Target)

		return nil
	},
}

func printEndpointStatus(name string, status probe.EndpointStatus) {
	var statusText string
	switch status.Status {
	case probe.StatusUp:
		statusText = color.GreenString("✓ UP  ")
	case probe.StatusDown:
		statusText = color.RedString("✗ DOWN")
	default:
		statusText = color.RedString("✗ ??? ")
	}

	color.New().Printf("%-16s %s      %s\n", name, statusText, status.URL)
}
