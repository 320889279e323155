package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/scheduler"

	"github.com/spf13/cobra"
)

var (
	serveListen   string
	serveSchedule string
	serveTimeout  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the HANA system replication state and expose it as metrics",
	Long: `Checks the system replication state of the configured instance on a cron
schedule and serves the results on /metrics, /healthz and /readyz.
Logs are written as JSON.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs = true
		return loadConfig(cmd, args)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		inst, err := hanaInstance()
		if err != nil {
			return err
		}
		logger := common.InstanceLogger(slog.Default(), inst.SID(), inst.Number())

		sched := scheduler.NewScheduler(logger)
		if err := sched.Register(&scheduler.Target{
			Instance: inst,
			Schedule: serveSchedule,
			Timeout:  serveTimeout,
		}); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = scheduler.NewServer(serveListen, sched, logger).Serve(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("Stopped")
		return nil
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", common.Env("LISTEN", ":9680"), "Address for the metrics and health endpoints")
	f.StringVar(&serveSchedule, "schedule", common.Env("SCHEDULE", "@every 30s"), "Cron schedule of the replication check")
	f.DurationVar(&serveTimeout, "timeout", 0, "Upper bound of a single check (0 for none)")
}

