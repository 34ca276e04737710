package cmd

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/daemon"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/parser"
	"github.com/manav03panchal/couponvault/internal/validate"
)

var (
	prefsFlagDays int
	prefsFlagTime string
)

// prefsCmd shows notification preferences.
var prefsCmd = &cobra.Command{
	Use:     "prefs",
	Aliases: []string{"preferences"},
	Short:   "Show notification preferences",
	Long: `Show how many days before expiry reminders start and the time of day they
are sent.

Examples:
  couponvault prefs
  couponvault prefs set --days 5 --time 18:30`,
	Args: cobra.NoArgs,
	RunE: runPrefs,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change notification preferences",
	Long: `Change notification preferences. A running daemon picks up the new time
immediately.

The time accepts 24-hour (18:30) or 12-hour (6:30pm) forms.`,
	Args: cobra.NoArgs,
	RunE: runPrefsSet,
}

func init() {
	prefsSetCmd.Flags().IntVar(&prefsFlagDays, "days", 0, "Days before expiry to start reminding (0-365, 0 turns reminders off)")
	prefsSetCmd.Flags().StringVar(&prefsFlagTime, "time", "", "Time of day to send reminders")

	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

// parseDays parses a days-before-expiry argument.
func parseDays(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.NewUserErrorWithField("days", s,
			"Days must be a whole number",
			"Example: couponvault expiring 7")
	}
	if err := validate.ReminderDays(n); err != nil {
		return 0, err
	}
	return n, nil
}

func printPreferences(cmd *cobra.Command) error {
	p := ctx.Coupons.GetNotificationPreferences(cmd.Context())
	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintPreferences(p)
	case ctx.IsPlain():
		ctx.Formatter.Printf("%d\t%s\n", p.DaysBeforeExpiry, p.NotificationTime)
	default:
		cli := ctx.CLIFormatter()
		cli.PrintPreferences(p)
		if h, m, err := parser.ParseTimeOfDay(p.NotificationTime); err == nil {
			next := parser.NextOccurrence(ctx.Coupons.Now(), h, m)
			cli.Muted("Next check: " + next.Format("Mon Jan 2 15:04"))
		}
	}
	return nil
}

func runPrefs(cmd *cobra.Command, args []string) error {
	return printPreferences(cmd)
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("days") && !flags.Changed("time") {
		return errors.NewUserError("Nothing to change",
			"Pass --days, --time or both: couponvault prefs set --days 5 --time 18:30")
	}

	p := ctx.Coupons.GetNotificationPreferences(cmd.Context())
	if flags.Changed("days") {
		if err := validate.ReminderDays(prefsFlagDays); err != nil {
			return err
		}
		p.DaysBeforeExpiry = prefsFlagDays
	}
	if flags.Changed("time") {
		t, err := parser.NormalizeTimeOfDay(prefsFlagTime)
		if err != nil {
			return err
		}
		p.NotificationTime = t
	}
	if err := ctx.Coupons.SetNotificationPreferences(cmd.Context(), p); err != nil {
		return err
	}

	reloadDaemon()
	return printPreferences(cmd)
}

// reloadDaemon asks a running daemon to pick up new preferences.
func reloadDaemon() {
	err := daemon.New(runtimeOptions().StorageOptions(), Version).Reload()
	switch {
	case err == nil:
		ctx.Debugf("daemon reloaded")
	case stderrors.Is(err, daemon.ErrNotRunning):
	default:
		logging.Warn("failed to reload daemon", logging.KeyError, err)
		if !ctx.IsJSON() {
			ctx.CLIFormatter().Warning(fmt.Sprintf("Daemon not reloaded: %v. Run: couponvault daemon reload", err))
		}
	}
}
