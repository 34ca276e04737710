// Couponvault - keep discount coupons and get reminded before they expire.
package main

import (
	"os"

	"github.com/manav03panchal/couponvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
