package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalAction is what the daemon does in response to a signal.
type SignalAction int

const (
	ActionNone SignalAction = iota
	// ActionReload re-reads the notification preferences.
	ActionReload
	// ActionStop shuts the daemon down.
	ActionStop
)

// ActionFor maps SIGHUP to reload and SIGINT/SIGTERM to stop.
func ActionFor(sig os.Signal) SignalAction {
	switch sig {
	case syscall.SIGHUP:
		return ActionReload
	case syscall.SIGINT, syscall.SIGTERM, os.Interrupt:
		return ActionStop
	}
	return ActionNone
}

// SignalHandler receives the daemon's control signals.
type SignalHandler struct {
	signals chan os.Signal
}

// NewSignalHandler registers for SIGINT, SIGTERM and SIGHUP.
func NewSignalHandler() *SignalHandler {
	h := &SignalHandler{signals: make(chan os.Signal, 1)}
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	return h
}

// Wait blocks until a signal arrives or ctx is done. A done ctx yields ActionStop.
func (h *SignalHandler) Wait(ctx context.Context) (os.Signal, SignalAction) {
	select {
	case sig := <-h.signals:
		return sig, ActionFor(sig)
	case <-ctx.Done():
		return nil, ActionStop
	}
}

// Close unregisters the handler.
func (h *SignalHandler) Close() {
	signal.Stop(h.signals)
}
