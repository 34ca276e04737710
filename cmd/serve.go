package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/daemon"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/health"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/scheduler"
	"github.com/manav03panchal/couponvault/internal/server"
	"github.com/manav03panchal/couponvault/internal/vision"
)

var (
	serveFlagAddr        string
	serveFlagNoScheduler bool
)

// serveCmd runs the image-analysis proxy.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the image-analysis proxy",
	Long: `Serve POST /v1/extract, which forwards a coupon image to the image-analysis
API using the server's key, plus /healthz and /metrics.

Unless --no-scheduler is set the expiry reminders also run in this process, so
a single container can replace the daemon.

Examples:
  couponvault serve
  couponvault serve --addr :9090 --no-scheduler`,
	Args:        cobra.NoArgs,
	Annotations: noDB,
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlagAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveFlagNoScheduler, "no-scheduler", false, "Serve only; do not send reminders")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	client := vision.NewClient()
	if !client.Configured() {
		return errors.ErrMissingAPIKey
	}

	daemon.InitLogging(cmd.ErrOrStderr(), config.Global.Log, flagDebug)

	cfg := config.Global.Server
	if serveFlagAddr != "" {
		cfg.Addr = serveFlagAddr
	}

	checker := health.NewChecker(Version)
	srv := server.New(client,
		server.WithConfig(cfg),
		server.WithHealth(checker),
		server.WithMetrics(metrics.Default))

	g, gctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if !serveFlagNoScheduler {
		source := daemon.NewDBSource(runtimeOptions().StorageOptions())
		checker.AddCheck("database", source.Ping)
		g.Go(func() error {
			return runReminders(gctx, source, checker)
		})
	}
	return g.Wait()
}

// runReminders runs the daily expiry check until ctx is done.
func runReminders(ctx context.Context, source *daemon.DBSource, checker *health.Checker) error {
	queue := notify.NewRetryQueue(notify.NewHTTPClient(), metrics.Default)
	checker.SetPendingSource(queue.Pending)
	dispatcher := notify.NewDispatcher(source,
		notify.WithRetryQueue(queue),
		notify.WithFallback(notify.LogSink{}),
		notify.WithMetrics(metrics.Default))
	sched := scheduler.New(source, dispatcher, scheduler.WithMetrics(metrics.Default))

	queue.Start(ctx)
	defer queue.Stop()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	<-ctx.Done()
	logging.Info("reminders stopping")
	return nil
}
