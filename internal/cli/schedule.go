package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/catalog-sync/internal/config"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the sync periodically",
	Long: `Run a full sync on a cron schedule until interrupted.

A run that is still in progress when the next tick fires causes that
tick to be skipped.`,
	Example: `  catalog-sync schedule --cron "*/15 * * * *"
  catalog-sync schedule --cron "@hourly" --now`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		expr := viper.GetString("schedule")
		now, _ := cmd.Flags().GetBool("now")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := cron.PrintfLogger(newStdLogger())
		c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

		job := func() {
			// Each run gets a fresh copy; secret resolution rewrites credentials in place.
			runCfg := *cfg
			if _, err := syncOnce(ctx, &runCfg, false); err != nil {
				color.Red("✗ Scheduled run failed: %v", err)
			}
		}

		if _, err := c.AddFunc(expr, job); err != nil {
			color.Red("✗ Invalid schedule %q: %v", expr, err)
			return err
		}

		color.Cyan("Scheduling sync: %s", expr)
		if now {
			job()
		}

		c.Start()
		<-ctx.Done()

		color.Cyan("Stopping scheduler, waiting for the current run...")
		<-c.Stop().Done()
		color.Green("✓ Scheduler stopped")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().String("cron", "@hourly", "Cron expression or descriptor (@hourly, @every 30m)")
	scheduleCmd.Flags().Bool("now", false, "Run once immediately before the first tick")

	viper.BindPFlag("schedule", scheduleCmd.Flags().Lookup("cron"))
}
