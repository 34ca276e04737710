//go:build windows

package daemon

import "github.com/manav03panchal/couponvault/internal/errors"

func signalReload(int) error {
	return errors.NewUserError("reload is not supported on Windows", "Restart the daemon instead: couponvault daemon stop && couponvault daemon start")
}
