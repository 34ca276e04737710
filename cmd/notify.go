package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/scheduler"
)

var notifyFlagExpiredDigest bool

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run expiry notifications by hand",
}

// notifyCheckCmd runs the daemon's daily check once.
var notifyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Send reminders for expiring coupons now",
	Long: `Run the daily expiry check once, right now, and notify every enabled
webhook about coupons expiring within the reminder window. Coupons already
reported today are skipped.

With no webhooks enabled the reminders are written to the log instead.`,
	Args: cobra.NoArgs,
	RunE: runNotifyCheck,
}

func init() {
	notifyCheckCmd.Flags().BoolVar(&notifyFlagExpiredDigest, "expired-digest", false,
		"Also remind about expired coupons")
	notifyCmd.AddCommand(notifyCheckCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runNotifyCheck(cmd *cobra.Command, args []string) error {
	dispatcher := notify.NewDispatcher(ctx.Webhooks,
		notify.WithFallback(notify.LogSink{}),
		notify.WithMetrics(metrics.Default))

	opts := []scheduler.Option{scheduler.WithMetrics(metrics.Default)}
	if notifyFlagExpiredDigest {
		opts = append(opts, scheduler.WithExpiredDigest())
	}
	res, err := scheduler.New(ctx.Coupons, dispatcher, opts...).RunNow(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case ctx.IsJSON():
		return ctx.Formatter.JSON(map[string]any{
			"window_days": res.Window,
			"expiring":    res.Expiring,
			"sent":        res.Sent,
			"skipped":     res.Skipped,
			"failed":      res.Failed,
		})
	case ctx.IsPlain():
		ctx.Formatter.Printf("%d\t%d\t%d\t%d\n", res.Expiring, res.Sent, res.Skipped, res.Failed)
		return nil
	}

	cli := ctx.CLIFormatter()
	if res.Expiring == 0 {
		cli.Muted(fmt.Sprintf("No coupons expire in the next %d day(s).", res.Window))
		return nil
	}
	cli.Success(fmt.Sprintf("%d coupon(s) expiring within %d day(s): %d sent, %d already sent today",
		res.Expiring, res.Window, res.Sent, res.Skipped))
	if res.Failed > 0 {
		return errors.WithCategory(
			fmt.Errorf("%d notification(s) failed; see couponvault webhook list", res.Failed),
			errors.CategoryExternal)
	}
	return nil
}
