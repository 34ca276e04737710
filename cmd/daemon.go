package cmd

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/daemon"
	"github.com/manav03panchal/couponvault/internal/health"
	"github.com/manav03panchal/couponvault/internal/output"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonFlagExpiredDigest   bool
	daemonLogsFlagTail        int
	daemonInstallFlagForce    bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "bg", "service"},
	Short:   "Manage the background reminder daemon",
	Long: `Manage the couponvault daemon. Once a day, at the configured notification
time, it looks for coupons expiring within the reminder window and sends a
notification to every enabled webhook.

The daemon opens the database only while it checks, so the CLI keeps working
while it runs.

Examples:
  couponvault daemon start
  couponvault daemon status
  couponvault daemon stop
  couponvault daemon logs --tail 20`,
	Annotations: noDB,
	RunE:        runDaemonStatus,
}

// daemonStartCmd starts the daemon.
var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Start the couponvault daemon.

Examples:
  couponvault daemon start                   # Start in background
  couponvault daemon start --foreground      # Start in foreground (for debugging)
  couponvault daemon start --expired-digest  # Also remind about expired coupons`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

// daemonStopCmd stops the daemon.
var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

// daemonStatusCmd shows daemon status.
var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Make the daemon re-read the notification time",
	Args:  cobra.NoArgs,
	RunE:  runDaemonReload,
}

// daemonLogsCmd shows daemon logs.
var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View the daemon log file.

Examples:
  couponvault daemon logs
  couponvault daemon logs --tail 50`,
	Args: cobra.NoArgs,
	RunE: runDaemonLogs,
}

// daemonInstallCmd installs the daemon as a system service.
var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install daemon as a system service",
	Long: `Install the couponvault daemon as a system service that starts automatically on login.

On macOS, this creates a launchd agent in ~/Library/LaunchAgents.
On Linux, this creates a systemd user service in ~/.config/systemd/user.

Examples:
  couponvault daemon install
  couponvault daemon install --force   # Reinstall if already installed`,
	Args: cobra.NoArgs,
	RunE: runDaemonInstall,
}

// daemonUninstallCmd uninstalls the daemon system service.
var daemonUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall daemon system service",
	Args:  cobra.NoArgs,
	RunE:  runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")
	daemonStartCmd.Flags().BoolVar(&daemonFlagExpiredDigest, "expired-digest", false,
		"Also send a daily reminder about expired coupons")

	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")

	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Force reinstall if already installed")
	daemonInstallCmd.Flags().BoolVar(&daemonFlagExpiredDigest, "expired-digest", false,
		"Also send a daily reminder about expired coupons")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
}

func newDaemon() *daemon.Daemon {
	d := daemon.New(runtimeOptions().StorageOptions(), Version)
	d.SetDebug(flagDebug)
	if daemonFlagExpiredDigest {
		d.EnableExpiredDigest()
	}
	return d
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	f := formatter()
	cli := output.NewCLIFormatter(f)
	d := newDaemon()

	if d.IsRunning() {
		status := d.Status()
		if f.IsJSON() {
			return f.JSON(map[string]any{"status": "already_running", "pid": status.PID})
		}
		return fmt.Errorf("%w (PID: %d)", daemon.ErrAlreadyRunning, status.PID)
	}

	if !daemonStartFlagForeground {
		pid, err := d.StartBackground()
		if err != nil {
			return err
		}
		if f.IsJSON() {
			return f.JSON(map[string]any{"status": "started", "pid": pid})
		}
		cli.Success(fmt.Sprintf("Daemon started (PID: %d)", pid))
		return nil
	}

	hooks, err := daemon.NewDBSource(runtimeOptions().StorageOptions()).ListEnabled(cmd.Context())
	if err != nil {
		return err
	}
	if len(hooks) == 0 && !f.IsJSON() {
		cli.Warning("No webhooks enabled; reminders will only be logged. Add one with: couponvault webhook add")
	}

	daemon.InitLogging(os.Stderr, config.Global.Log, flagDebug)
	return d.Start(cmd.Context())
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	f := formatter()
	d := newDaemon()
	pid := d.Status().PID

	err := d.Stop()
	if stderrors.Is(err, daemon.ErrNotRunning) {
		if f.IsJSON() {
			return f.JSON(map[string]any{"status": "not_running"})
		}
		output.NewCLIFormatter(f).Muted("Daemon is not running.")
		return nil
	}
	if err != nil {
		return err
	}

	if f.IsJSON() {
		return f.JSON(map[string]any{"status": "stopped", "pid": pid})
	}
	output.NewCLIFormatter(f).Success(fmt.Sprintf("Daemon stopped (was PID: %d)", pid))
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	f := formatter()
	status := newDaemon().Status()

	if f.IsJSON() {
		out := map[string]any{"status": status}
		if status.State != nil {
			out["health"] = status.State.Health
			out["metrics"] = status.State.Metrics
		}
		return f.JSON(out)
	}
	if f.IsPlain() {
		state := "stopped"
		if status.Running {
			state = "running"
		}
		f.Printf("%s\t%d\n", state, status.PID)
		return nil
	}

	cli := output.NewCLIFormatter(f)
	cli.Title("Couponvault daemon")
	if !status.Running {
		cli.Printf("  Status:     stopped\n\n")
		cli.Muted("Start with: couponvault daemon start")
		return nil
	}
	cli.Printf("  Status:     running\n")
	cli.Printf("  PID:        %d\n", status.PID)
	if status.Uptime != "" {
		cli.Printf("  Uptime:     %s\n", status.Uptime)
	}
	if status.Schedule != "" {
		cli.Printf("  Schedule:   %s\n", status.Schedule)
	}
	if !status.NextCheck.IsZero() {
		cli.Printf("  Next check: %s\n", status.NextCheck.Local().Format("Mon Jan 2 15:04"))
	}
	if st := status.State; st != nil {
		m := st.Metrics
		cli.Printf("  Checks:     %d (%d notifications sent, %d failed)\n",
			m.ChecksRunTotal, m.NotificationsSentTotal, m.NotificationsFailedTotal)
		if st.Health != nil && st.Health.Status != health.StatusHealthy {
			for _, c := range st.Health.Checks {
				if !c.Healthy {
					cli.Warning(fmt.Sprintf("%s check failing: %s", c.Name, c.Error))
				}
			}
		}
	}
	return nil
}

func runDaemonReload(cmd *cobra.Command, args []string) error {
	f := formatter()
	if err := newDaemon().Reload(); err != nil {
		return err
	}
	if f.IsJSON() {
		return f.JSON(map[string]any{"status": "reloaded"})
	}
	output.NewCLIFormatter(f).Success("Daemon reloaded")
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	f := formatter()
	logPath := daemon.LogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		output.NewCLIFormatter(f).Muted("No log file found: " + logPath)
		return nil
	}

	lines, err := tailFile(logPath, daemonLogsFlagTail)
	if err != nil {
		return err
	}
	if f.IsJSON() {
		return f.JSON(map[string]any{"path": logPath, "lines": lines})
	}
	for _, line := range lines {
		f.Println(line)
	}
	return nil
}

// tailFile reads the last n lines from a file.
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

// serviceArgs are the flags the installed service passes to
// `daemon start --foreground`.
func serviceArgs() []string {
	var args []string
	if daemonFlagExpiredDigest {
		args = append(args, "--expired-digest")
	}
	if flagDB != "" {
		args = append(args, "--db", flagDB)
	}
	return args
}

func runDaemonInstall(cmd *cobra.Command, args []string) error {
	f := formatter()
	cli := output.NewCLIFormatter(f)
	mgr, err := daemon.NewServiceManager(serviceArgs()...)
	if err != nil {
		return err
	}

	if mgr.IsInstalled() {
		if !daemonInstallFlagForce {
			if f.IsJSON() {
				return f.JSON(map[string]any{"status": "already_installed"})
			}
			cli.Muted("Service is already installed. Use --force to reinstall.")
			return nil
		}
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove existing service: %w", err)
		}
	}

	if err := mgr.Install(); err != nil {
		return err
	}
	path, _ := mgr.UnitPath()
	if f.IsJSON() {
		return f.JSON(map[string]any{"status": "installed", "path": path})
	}
	cli.Success("Service installed: " + path)
	cli.Muted("The daemon now starts automatically when you log in.")
	return nil
}

func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	f := formatter()
	cli := output.NewCLIFormatter(f)
	mgr, err := daemon.NewServiceManager()
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		if f.IsJSON() {
			return f.JSON(map[string]any{"status": "not_installed"})
		}
		cli.Muted("Service is not installed.")
		return nil
	}

	if err := newDaemon().Stop(); err != nil && !stderrors.Is(err, daemon.ErrNotRunning) {
		if flagDebug {
			fmt.Fprintf(os.Stderr, "[DEBUG] failed to stop daemon: %v\n", err)
		}
	}
	if err := mgr.Uninstall(); err != nil {
		return err
	}

	if f.IsJSON() {
		return f.JSON(map[string]any{"status": "uninstalled"})
	}
	cli.Success("Service uninstalled")
	return nil
}
