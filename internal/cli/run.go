package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/catalog-sync/internal/config"
	"github.com/blackwell-systems/catalog-sync/internal/httpclient"
	"github.com/blackwell-systems/catalog-sync/internal/konnect"
	"github.com/blackwell-systems/catalog-sync/internal/mapping"
	"github.com/blackwell-systems/catalog-sync/internal/port"
	"github.com/blackwell-systems/catalog-sync/internal/secrets"
	"github.com/blackwell-systems/catalog-sync/internal/syncer"
	"github.com/blackwell-systems/catalog-sync/internal/tracing"
	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

// traceOutput receives exported spans when tracing is enabled
var traceOutput io.Writer = os.Stderr

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full sync",
	Long: `Authenticate against the catalog, then fetch, transform and upsert
every mapped entity type. Services are synced first.

A failed fetch or upsert is reported and skipped; only a failed catalog
authentication aborts the run.`,
	RunE: runE,
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "Transform and print entities without pushing them")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any entity failed")
}

func init() {
	addRunFlags(runCmd)
}

func runE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	strict, _ := cmd.Flags().GetBool("strict")

	report, err := syncOnce(cmd.Context(), cfg, dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		return printEntities(report)
	}

	if strict {
		return report.Err()
	}
	return nil
}

// syncOnce builds the pipeline from cfg and runs it
func syncOnce(ctx context.Context, cfg *config.Config, dryRun bool) (*syncer.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if secrets.HasReferences(cfg) {
		if err := resolveSecrets(ctx, cfg); err != nil {
			color.Red("✗ Failed to resolve secrets: %v", err)
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		color.Red("✗ Invalid configuration: %v", err)
		return nil, err
	}

	m, err := mapping.Resolve(cfg.MappingFile)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.Setup(cfg.Trace, traceOutput)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			color.Yellow("⚠ %v", err)
		}
	}()

	logger := newLogger(cfg.Verbosity)
	client := httpclient.New(cfg.HTTPTimeout, tp.TracerProvider)

	s := syncer.New(syncer.Options{
		Source:   konnect.NewClient(cfg.Source.Host, cfg.Source.Token, client, logger),
		Target:   port.NewClient(cfg.Target.BaseURL, cfg.Target.ClientID, cfg.Target.ClientSecret, client, logger),
		Registry: transform.NewRegistry(cfg.ControlPlaneID),
		Mapping:  m,
		Logger:   logger,
		Tracer:   tp.Tracer(),
		DryRun:   dryRun,
		OnType:   printTypeReport,
	})

	if dryRun {
		color.Cyan("Transforming entities (dry run)...")
	} else {
		color.Cyan("Syncing %s → %s", cfg.Source.Host, cfg.Target.BaseURL)
	}

	report, err := s.Run(ctx)
	if err != nil {
		color.Red("✗ %v", err)
		return nil, err
	}

	printSummary(report)
	return report, nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	r, err := secrets.NewGCPResolver(ctx, cfg.SecretManagerEndpoint)
	if err != nil {
		return err
	}
	defer r.Close()

	return secrets.ResolveConfig(ctx, r, cfg)
}

func newLogger(verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.New(newStdLogger())
}

func newStdLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

func printTypeReport(tr syncer.TypeReport) {
	if tr.FetchErr != nil {
		color.Red("✗ %s: %v", tr.Type, tr.FetchErr)
	}

	for _, u := range tr.UpsertErrs {
		color.Red("  ✗ %s error %d: %s", u.Blueprint, u.StatusCode, u.Body)
	}
	for _, err := range tr.DecodeErrs {
		color.Yellow("  ⚠ skipped: %v", err)
	}
	for _, err := range tr.TransformErrs {
		color.Yellow("  ⚠ skipped: %v", err)
	}

	switch {
	case tr.Entities != nil:
		color.Cyan("→ %s → %s: %d transformed, %d skipped", tr.Type, tr.Blueprint, len(tr.Entities), tr.Skipped)
	case tr.Failed > 0 || tr.Skipped > 0:
		color.Yellow("⚠ %s → %s: %d pushed, %d failed, %d skipped", tr.Type, tr.Blueprint, tr.Pushed, tr.Failed, tr.Skipped)
	default:
		color.Green("✓ %s → %s: %d pushed", tr.Type, tr.Blueprint, tr.Pushed)
	}
}

func printSummary(report *syncer.Report) {
	totals := report.Totals()
	if report.DryRun {
		color.Cyan("\nDry run %s: %d fetched, %d skipped", report.RunID, totals.Fetched, totals.Skipped)
		return
	}

	if report.Err() != nil {
		color.Yellow("\n⚠ Run %s finished with errors in %s: %d pushed, %d failed, %d skipped",
			report.RunID, report.Duration().Round(time.Millisecond), totals.Pushed, totals.Failed, totals.Skipped)
		return
	}

	color.Green("\n✓ Run %s finished in %s: %d pushed", report.RunID, report.Duration().Round(time.Millisecond), totals.Pushed)
}

func printEntities(report *syncer.Report) error {
	out := map[string][]transform.TargetEntity{}
	for _, tr := range report.Types {
		out[tr.Blueprint] = append(out[tr.Blueprint], tr.Entities...)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	fmt.Println(string(data))
	return nil
}
