package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/tui"
)

// dashboardCmd represents the dashboard command.
var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash", "tui"},
	Short:   "Open the interactive dashboard",
	Long: `Open an interactive terminal dashboard with every coupon, grouped by store
and colored by how soon it expires.

Keyboard Controls:
  ↑/↓, k/j - Move between coupons
  p        - Delete expired coupons
  r        - Refresh data
  q        - Quit dashboard

Examples:
  couponvault dashboard
  couponvault tui`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	return tui.Run(tui.DashboardConfig{Source: ctx.Coupons})
}
