package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/runtime"
)

// completionContext returns the shared context, opening it if the completion
// request arrived before PersistentPreRunE. The returned func closes what was
// opened here.
func completionContext() (*runtime.Context, func()) {
	if ctx != nil {
		return ctx, func() {}
	}
	c, err := runtime.New(runtimeOptions())
	if err != nil {
		return nil, func() {}
	}
	return c, func() { _ = c.Close() }
}

// completeCouponIDs completes coupon ids, described by store and discount.
func completeCouponIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rc, done := completionContext()
	defer done()
	if rc == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	list, err := rc.Coupons.GetCoupons(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, c := range list {
		if strings.HasPrefix(c.ID, toComplete) {
			out = append(out, c.ID+"\t"+c.Store+" "+c.Discount)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeStores completes --store values.
func completeStores(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rc, done := completionContext()
	defer done()
	if rc == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	lower := strings.ToLower(toComplete)
	for _, s := range rc.Coupons.GetStores(cmd.Context()) {
		if strings.HasPrefix(strings.ToLower(s), lower) {
			out = append(out, s)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeWebhookNames completes the first argument with webhook names.
func completeWebhookNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	rc, done := completionContext()
	defer done()
	if rc == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	hooks, err := rc.Webhooks.List(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, w := range hooks {
		if strings.HasPrefix(w.Name, toComplete) {
			names = append(names, w.Name+"\t"+w.Type)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
