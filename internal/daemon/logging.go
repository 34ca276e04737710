package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/logging"
)

// MaxLogSize is the size at which the daemon log is rotated on open.
const MaxLogSize int64 = 5 << 20

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(StateDir(), "daemon.log")
}

// LogFile is an append-only log file that keeps one rotated copy (".old").
type LogFile struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenLogFile opens path for appending, rotating it first if it exceeds maxSize.
func OpenLogFile(path string, maxSize int64) (*LogFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &LogFile{path: path}
	if info, err := os.Stat(path); err == nil && maxSize > 0 && info.Size() >= maxSize {
		_ = os.Remove(path + ".old")
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("failed to rotate log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = f
	return l, nil
}

func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Close closes the file.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the file path.
func (l *LogFile) Path() string {
	return l.path
}

// InitLogging points the global logger at w using the configured level and
// format. Debug forces debug level.
func InitLogging(w io.Writer, cfg config.LogConfig, debug bool) {
	lc := logging.DaemonConfig()
	lc.Output = w
	lc.JSON = cfg.JSON
	if cfg.Level != "" {
		lc.Level = logging.ParseLevel(cfg.Level)
	}
	if debug {
		lc = logging.DebugConfig()
		lc.Output = w
	}
	logging.Init(lc)
}

// lastLogError scans the tail of the log for a line that looks like a failure.
func lastLogError(path string, lines int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	start := max(0, len(all)-lines)
	for i := len(all) - 1; i >= start; i-- {
		line := strings.TrimSpace(all[i])
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			return line
		}
	}
	return ""
}
