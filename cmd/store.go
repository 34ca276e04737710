package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/coupons"
)

// storesCmd lists stores.
var storesCmd = &cobra.Command{
	Use:     "stores",
	Aliases: []string{"store"},
	Short:   "List stores with coupon counts",
	Args:    cobra.NoArgs,
	RunE:    runStores,
}

var storesRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild the store list from saved coupons",
	Long: `Drop stores that no coupon references and add stores that are missing
from the store list.`,
	Args: cobra.NoArgs,
	RunE: runStoresRepair,
}

func init() {
	storesCmd.AddCommand(storesRepairCmd)
	rootCmd.AddCommand(storesCmd)
}

func runStores(cmd *cobra.Command, args []string) error {
	all, err := ctx.Coupons.GetCoupons(cmd.Context())
	if err != nil {
		return err
	}
	names := ctx.Coupons.GetStores(cmd.Context())
	counts := make(map[string]int, len(names))
	for name, list := range coupons.GroupByStore(all) {
		counts[name] = len(list)
	}

	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintStores(names, counts)
	case ctx.IsPlain():
		ctx.PlainFormatter().PrintStores(names)
	default:
		ctx.CLIFormatter().PrintStores(names, counts)
	}
	return nil
}

func runStoresRepair(cmd *cobra.Command, args []string) error {
	removed, added, err := ctx.Coupons.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	switch {
	case ctx.IsJSON():
		return ctx.Formatter.JSON(map[string]any{"status": "repaired", "removed": removed, "added": added})
	case ctx.IsPlain():
		ctx.Formatter.Printf("%d\t%d\n", removed, added)
	case removed == 0 && added == 0:
		ctx.CLIFormatter().Muted("Store list already consistent.")
	default:
		ctx.CLIFormatter().Success(fmt.Sprintf("Removed %d and added %d store(s)", removed, added))
	}
	return nil
}
