package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/couponvault/internal/logging"
)

const (
	launchdLabel = "com.couponvault.daemon"
	systemdUnit  = "couponvault.service"
)

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Executable}}</string>
        <string>daemon</string>
        <string>start</string>
        <string>--foreground</string>{{range .ExtraArgs}}
        <string>{{.}}</string>{{end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=Couponvault expiry notifications
After=network-online.target

[Service]
Type=simple
ExecStart={{.Executable}} daemon start --foreground{{range .ExtraArgs}} {{.}}{{end}}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
Environment="XDG_DATA_HOME={{.DataHome}}"
Environment="XDG_STATE_HOME={{.StateHome}}"
Environment="XDG_CONFIG_HOME={{.ConfigHome}}"

[Install]
WantedBy=default.target
`

// ServiceManager installs the daemon as a per-user launchd agent (macOS) or
// systemd user unit (Linux).
type ServiceManager struct {
	goos       string
	executable string
	extraArgs  []string
	run        func(name string, args ...string) error
}

// NewServiceManager targets the running binary on the current OS. extraArgs
// are appended to `daemon start --foreground`.
func NewServiceManager(extraArgs ...string) (*ServiceManager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return &ServiceManager{
		goos:       runtime.GOOS,
		executable: exe,
		extraArgs:  extraArgs,
		run:        runCommand,
	}, nil
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(out))
	}
	return nil
}

// UnitPath returns where the service definition is written.
func (m *ServiceManager) UnitPath() (string, error) {
	switch m.goos {
	case "darwin":
		return filepath.Join(xdg.Home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "systemd", "user", systemdUnit), nil
	}
	return "", fmt.Errorf("service installation is not supported on %s", m.goos)
}

// Render returns the service definition for the target OS.
func (m *ServiceManager) Render() ([]byte, error) {
	src := systemdTemplate
	if m.goos == "darwin" {
		src = launchdPlist
	} else if m.goos != "linux" {
		return nil, fmt.Errorf("service installation is not supported on %s", m.goos)
	}
	tmpl, err := template.New("unit").Parse(src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Label":      launchdLabel,
		"Executable": m.executable,
		"ExtraArgs":  m.extraArgs,
		"LogPath":    LogPath(),
		"DataHome":   xdg.DataHome,
		"StateHome":  xdg.StateHome,
		"ConfigHome": xdg.ConfigHome,
	})
	return buf.Bytes(), err
}

// Install writes the definition and loads it.
func (m *ServiceManager) Install() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}
	content, err := m.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	if m.goos == "darwin" {
		err = m.run("launchctl", "load", path)
	} else {
		err = m.run("systemctl", "--user", "daemon-reload")
		if err == nil {
			err = m.run("systemctl", "--user", "enable", "--now", systemdUnit)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load service: %w", err)
	}
	logging.Debug("service installed", logging.KeyPath, path)
	return nil
}

// Uninstall unloads the service and removes its definition.
func (m *ServiceManager) Uninstall() error {
	path, err := m.UnitPath()
	if err != nil {
		return err
	}
	if m.goos == "darwin" {
		_ = m.run("launchctl", "unload", path)
	} else {
		_ = m.run("systemctl", "--user", "disable", "--now", systemdUnit)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	if m.goos == "linux" {
		_ = m.run("systemctl", "--user", "daemon-reload")
	}
	logging.Debug("service uninstalled", logging.KeyPath, path)
	return nil
}

// IsInstalled reports whether the definition file exists.
func (m *ServiceManager) IsInstalled() bool {
	path, err := m.UnitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
