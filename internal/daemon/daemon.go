package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/health"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/scheduler"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// Daemon runs the expiry scheduler until it is signalled to stop.
type Daemon struct {
	dbOpts    storage.Options
	pidFile   *PIDFile
	statePath string
	version   string
	debug     bool
	digest    bool
	metrics   *metrics.Metrics
}

// State is persisted while the daemon runs so `daemon status` can report it.
type State struct {
	PID       int              `json:"pid"`
	StartedAt time.Time        `json:"started_at"`
	Version   string           `json:"version,omitempty"`
	Schedule  string           `json:"schedule,omitempty"`
	NextCheck time.Time        `json:"next_check,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
	Health    *health.Status   `json:"health,omitempty"`
	Metrics   metrics.Snapshot `json:"metrics"`
}

// Status is the view returned by Status.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Schedule  string    `json:"schedule,omitempty"`
	NextCheck time.Time `json:"next_check,omitempty"`
	State     *State    `json:"-"`
}

// New creates a daemon over the database described by dbOpts.
func New(dbOpts storage.Options, version string) *Daemon {
	return &Daemon{
		dbOpts:    dbOpts,
		pidFile:   NewPIDFile(),
		statePath: filepath.Join(StateDir(), "daemon.json"),
		version:   version,
		metrics:   metrics.Default,
	}
}

// SetDebug passes --debug to a background child.
func (d *Daemon) SetDebug(debug bool) {
	d.debug = debug
}

// EnableExpiredDigest also sends the daily expired-coupon reminder.
func (d *Daemon) EnableExpiredDigest() {
	d.digest = true
}

// IsRunning reports whether a daemon process is alive.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.IsRunning()
}

// Status reads the PID and state files.
func (d *Daemon) Status() *Status {
	status := &Status{}
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return status
	}
	status.Running = true
	status.PID = pid
	if state, err := d.readState(); err == nil {
		status.State = state
		status.StartedAt = state.StartedAt
		status.Uptime = FormatUptime(time.Since(state.StartedAt))
		status.Schedule = state.Schedule
		status.NextCheck = state.NextCheck
	}
	return status
}

// Start runs the daemon in the foreground until ctx is cancelled or a stop
// signal arrives. SIGHUP reloads the notification time.
func (d *Daemon) Start(ctx context.Context) error {
	if d.IsRunning() {
		return ErrAlreadyRunning
	}
	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer d.cleanup()

	source := NewDBSource(d.dbOpts)
	queue := notify.NewRetryQueue(notify.NewHTTPClient(), d.metrics)
	dispatcher := notify.NewDispatcher(source,
		notify.WithRetryQueue(queue),
		notify.WithFallback(notify.LogSink{}),
		notify.WithMetrics(d.metrics))

	opts := []scheduler.Option{scheduler.WithMetrics(d.metrics)}
	if d.digest {
		opts = append(opts, scheduler.WithExpiredDigest())
	}
	sched := scheduler.New(source, dispatcher, opts...)

	checker := health.NewChecker(d.version)
	checker.AddCheck("database", source.Ping)
	checker.SetPendingSource(queue.Pending)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue.Start(runCtx)
	defer queue.Stop()
	if err := sched.Start(runCtx); err != nil {
		return err
	}
	defer sched.Stop()

	state := &State{PID: os.Getpid(), StartedAt: time.Now(), Version: d.version}
	d.refreshState(runCtx, state, sched, checker)
	logging.Info("daemon started", "pid", state.PID, logging.KeyNextRun, sched.NextRun())

	signals := NewSignalHandler()
	defer signals.Close()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	sigCh := make(chan SignalAction, 1)
	go func() {
		for {
			sig, action := signals.Wait(runCtx)
			if sig != nil {
				logging.Info("received signal", "signal", sig.String())
			}
			sigCh <- action
			if action == ActionStop {
				return
			}
		}
	}()

	for {
		select {
		case action := <-sigCh:
			switch action {
			case ActionReload:
				if err := sched.Reschedule(runCtx); err != nil {
					logging.Warn("reload failed", logging.KeyError, err)
				}
				d.refreshState(runCtx, state, sched, checker)
			case ActionStop:
				logging.Info("daemon stopping")
				return nil
			}
		case <-ticker.C:
			d.refreshState(runCtx, state, sched, checker)
		}
	}
}

func (d *Daemon) refreshState(ctx context.Context, state *State, sched *scheduler.Scheduler, checker *health.Checker) {
	state.Schedule = sched.Spec()
	state.NextCheck = sched.NextRun()
	state.UpdatedAt = time.Now()
	state.Health = checker.Check(ctx)
	state.Metrics = d.metrics.Snapshot()
	if err := d.writeState(state); err != nil {
		logging.Warn("failed to write daemon state", logging.KeyError, err, logging.KeyPath, d.statePath)
	}
}

func (d *Daemon) cleanup() {
	if err := d.pidFile.Remove(); err != nil {
		logging.Warn("failed to remove PID file", logging.KeyError, err)
	}
	d.removeState()
}

// StartBackground re-executes the binary as `daemon start --foreground` with
// output appended to the daemon log, and returns the child's pid.
func (d *Daemon) StartBackground() (int, error) {
	if pid := d.pidFile.RunningPID(); pid > 0 {
		return pid, ErrAlreadyRunning
	}
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"daemon", "start", "--foreground"}
	if d.debug {
		args = append(args, "--debug")
	}
	if d.digest {
		args = append(args, "--expired-digest")
	}
	if d.dbOpts.Path != "" {
		args = append(args, "--db", d.dbOpts.Path)
	}
	cmd := exec.Command(executable, args...)

	logFile, err := OpenLogFile(LogPath(), MaxLogSize)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()
	cmd.Stdout = logFile.file
	cmd.Stderr = logFile.file

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = cmd.Process.Release()

	time.Sleep(config.Global.Daemon.StartupWait)
	if !d.pidFile.IsRunning() {
		if msg := lastLogError(LogPath(), 10); msg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", msg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", LogPath())
	}
	return d.pidFile.RunningPID(), nil
}

// Stop interrupts the running daemon and waits up to the configured kill
// timeout before killing it.
func (d *Daemon) Stop() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(os.Interrupt); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}

	deadline := time.Now().Add(config.Global.Daemon.KillTimeout)
	for IsProcessRunning(pid) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if IsProcessRunning(pid) {
		_ = process.Kill()
	}

	_ = d.pidFile.Remove()
	d.removeState()
	return nil
}

// Reload asks the running daemon to re-read the notification time.
func (d *Daemon) Reload() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	return signalReload(pid)
}

func (d *Daemon) writeState(state *State) error {
	if err := os.MkdirAll(filepath.Dir(d.statePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return storage.SafeWrite(d.statePath, data, 0o644)
}

func (d *Daemon) readState() (*State, error) {
	data, err := os.ReadFile(d.statePath)
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (d *Daemon) removeState() {
	if err := os.Remove(d.statePath); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, logging.KeyPath, d.statePath)
	}
}

// FormatUptime renders d as "45s", "12m", "3h 5m" or "2d 4h".
func FormatUptime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h, m := int(d.Hours()), int(d.Minutes())%60
		if m > 0 {
			return fmt.Sprintf("%dh %dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days, h := int(d.Hours()/24), int(d.Hours())%24
	if h > 0 {
		return fmt.Sprintf("%dd %dh", days, h)
	}
	return fmt.Sprintf("%dd", days)
}
