package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/parser"
	"github.com/manav03panchal/couponvault/internal/validate"
)

// Coupon command flags.
var (
	addFlagStore    string
	addFlagCode     string
	addFlagDiscount string
	addFlagExpires  string
	addFlagCodeType string
	addFlagImage    string
	addFlagScan     bool

	listFlagStore   string
	listFlagExpired bool

	editFlagStore      string
	editFlagCode       string
	editFlagDiscount   string
	editFlagExpires    string
	editFlagCodeType   string
	editFlagClearImage bool
)

// addCmd adds a coupon.
var addCmd = &cobra.Command{
	Use:     "add",
	Aliases: []string{"new", "a"},
	Short:   "Add a coupon",
	Long: `Add a coupon. Store, code and discount are required unless --scan fills
them from an image.

The expiry accepts calendar dates, natural language and offsets:
  2026-12-31, "Dec 31", "next friday", "in 2 weeks", +30d, none

Examples:
  couponvault add --store Acme --code SAVE10 --discount 10% --expires 2026-12-31
  couponvault add -s Acme -c FREESHIP -d "free shipping" -e "in 2 weeks"
  couponvault add --image coupon.jpg --scan
  couponvault add -s Cafe -c 0042 -d "free coffee" --image qr.png --code-type qr`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

// listCmd lists coupons.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List coupons grouped by store",
	Long: `List coupons grouped by store, soonest expiry first.

Examples:
  couponvault list
  couponvault list --store Acme
  couponvault list --expired
  couponvault list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// showCmd shows one coupon.
var showCmd = &cobra.Command{
	Use:               "show ID",
	Short:             "Show a coupon",
	Long:              `Show every field of a coupon. ID may be a unique prefix of four or more characters.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCouponIDs,
	RunE:              runShow,
}

// editCmd edits a coupon.
var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a coupon",
	Long: `Change fields of a coupon. Only the flags you pass are changed.

Moving a coupon to another store gives it a new id.

Examples:
  couponvault edit 3f2a --expires "next month"
  couponvault edit 3f2a --store "Acme Online"`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCouponIDs,
	RunE:              runEdit,
}

// deleteCmd deletes coupons.
var deleteCmd = &cobra.Command{
	Use:               "delete ID...",
	Aliases:           []string{"rm", "remove"},
	Short:             "Delete coupons",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeCouponIDs,
	RunE:              runDelete,
}

// purgeCmd deletes every expired coupon.
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all expired coupons",
	Long: `Delete every coupon whose expiry date is before today. Coupons without an
expiry date and coupons with an unreadable date are kept.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

// expiringCmd lists coupons in the notification window.
var expiringCmd = &cobra.Command{
	Use:   "expiring [DAYS]",
	Short: "List coupons expiring soon",
	Long: `List coupons expiring within DAYS days. DAYS defaults to the
notification preference.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExpiring,
}

func init() {
	addCmd.Flags().StringVarP(&addFlagStore, "store", "s", "", "Store name")
	addCmd.Flags().StringVarP(&addFlagCode, "code", "c", "", "Coupon code")
	addCmd.Flags().StringVarP(&addFlagDiscount, "discount", "d", "", "Discount, e.g. '10%' or '$5 off'")
	addCmd.Flags().StringVarP(&addFlagExpires, "expires", "e", "", "Expiry date (default: none)")
	addCmd.Flags().StringVar(&addFlagCodeType, "code-type", "", "Scannable code type: qr or barcode")
	addCmd.Flags().StringVarP(&addFlagImage, "image", "i", "", "Image of the coupon code to keep with the coupon")
	addCmd.Flags().BoolVar(&addFlagScan, "scan", false, "Fill missing fields by analyzing --image")
	_ = addCmd.RegisterFlagCompletionFunc("store", completeStores)
	_ = addCmd.RegisterFlagCompletionFunc("code-type", cobra.FixedCompletions(
		[]string{model.CodeTypeQR, model.CodeTypeBarcode}, cobra.ShellCompDirectiveNoFileComp))

	listCmd.Flags().StringVarP(&listFlagStore, "store", "s", "", "Only coupons from this store")
	listCmd.Flags().BoolVar(&listFlagExpired, "expired", false, "Only expired coupons")
	_ = listCmd.RegisterFlagCompletionFunc("store", completeStores)

	editCmd.Flags().StringVarP(&editFlagStore, "store", "s", "", "New store name")
	editCmd.Flags().StringVarP(&editFlagCode, "code", "c", "", "New code")
	editCmd.Flags().StringVarP(&editFlagDiscount, "discount", "d", "", "New discount")
	editCmd.Flags().StringVarP(&editFlagExpires, "expires", "e", "", "New expiry date")
	editCmd.Flags().StringVar(&editFlagCodeType, "code-type", "", "New code type: qr or barcode")
	editCmd.Flags().BoolVar(&editFlagClearImage, "clear-image", false, "Remove the stored code image")
	_ = editCmd.RegisterFlagCompletionFunc("store", completeStores)

	rootCmd.AddCommand(addCmd, listCmd, showCmd, editCmd, deleteCmd, purgeCmd, expiringCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	c := model.Coupon{
		Store:    addFlagStore,
		Code:     addFlagCode,
		Discount: addFlagDiscount,
		CodeType: addFlagCodeType,
	}
	expires := addFlagExpires

	if addFlagScan && addFlagImage == "" {
		return errors.NewUserError("--scan needs an image", "Pass the image with --image PATH")
	}
	if addFlagImage != "" {
		img, err := loadImage(addFlagImage)
		if err != nil {
			return err
		}
		c.CodeImage = dataURI(img)

		if addFlagScan {
			ext, err := extract(cmd.Context(), img)
			if err != nil {
				return err
			}
			ext.Apply(&c)
			if expires == "" {
				expires = c.ExpiryDate
			}
			ctx.Debugf("scan filled store=%q code=%q discount=%q expiry=%q", c.Store, c.Code, c.Discount, c.ExpiryDate)
		}
	}

	scanned := addFlagExpires == "" && expires != ""
	if expires == "" {
		expires = model.NoExpiry
	}
	now := ctx.Coupons.Now()
	expiry, err := parser.ParseExpiry(expires, now)
	switch {
	case err == nil:
		c.ExpiryDate = expiry
	case scanned:
		// Keep what the image said; unreadable dates never count as expired.
		c.ExpiryDate = expires
	default:
		return err
	}

	c = validate.SanitizeCoupon(c)
	if err := validate.Coupon(c); err != nil {
		return err
	}

	added, err := ctx.Coupons.AddCoupon(cmd.Context(), c)
	if err != nil {
		return err
	}

	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintCoupon(added, now)
	case ctx.IsPlain():
		ctx.Formatter.Println(added.ID)
	default:
		ctx.CLIFormatter().PrintCouponAdded(added, now)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	list, err := ctx.Coupons.GetCoupons(cmd.Context())
	if err != nil {
		return err
	}
	now := ctx.Coupons.Now()

	if listFlagStore != "" {
		list = coupons.GroupByStore(list)[validate.SanitizeField(listFlagStore)]
	}
	if listFlagExpired {
		list = coupons.Expired(list, now)
	}
	if err := printCoupons(list); err != nil {
		return err
	}
	if !ctx.IsJSON() && !ctx.IsPlain() && !listFlagExpired && ctx.Coupons.HasExpiredCoupons(cmd.Context()) {
		ctx.CLIFormatter().Muted("Some coupons have expired. Remove them with: couponvault purge")
	}
	return nil
}

// printCoupons writes list in the selected output format.
func printCoupons(list []model.Coupon) error {
	now := ctx.Coupons.Now()
	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintCoupons(list, now)
	case ctx.IsPlain():
		ctx.PlainFormatter().PrintCoupons(list, now)
	default:
		ctx.CLIFormatter().PrintCouponList(list, now)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	c, err := ctx.FindCoupon(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	now := ctx.Coupons.Now()
	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintCoupon(c, now)
	case ctx.IsPlain():
		ctx.PlainFormatter().PrintCoupons([]model.Coupon{c}, now)
	default:
		ctx.CLIFormatter().PrintCoupon(c, now)
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	c, err := ctx.FindCoupon(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	edited := c

	if flags.Changed("code") {
		edited.Code = editFlagCode
	}
	if flags.Changed("discount") {
		edited.Discount = editFlagDiscount
	}
	if flags.Changed("code-type") {
		edited.CodeType = editFlagCodeType
	}
	if editFlagClearImage {
		edited.CodeImage = ""
		edited.CodeType = ""
	}
	if flags.Changed("expires") {
		expiry, err := parser.ParseExpiry(editFlagExpires, ctx.Coupons.Now())
		if err != nil {
			return err
		}
		edited.ExpiryDate = expiry
	}
	if flags.Changed("store") {
		edited.Store = editFlagStore
	}

	edited = validate.SanitizeCoupon(edited)
	if err := validate.Coupon(edited); err != nil {
		return err
	}

	if newStore := edited.Store; newStore != c.Store {
		edited.Store = c.Store
		edited, err = ctx.Coupons.UpdateCouponWithNewStore(cmd.Context(), edited, newStore)
	} else {
		err = ctx.Coupons.UpdateCoupon(cmd.Context(), edited)
	}
	if err != nil {
		return err
	}

	now := ctx.Coupons.Now()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCoupon(edited, now)
	}
	if ctx.IsPlain() {
		ctx.Formatter.Println(edited.ID)
		return nil
	}
	cli := ctx.CLIFormatter()
	cli.Success("Coupon updated")
	if edited.ID != c.ID {
		cli.Muted(fmt.Sprintf("Moved to %s; new id %s", edited.Store, edited.ID))
	}
	cli.PrintCoupon(edited, now)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	var deleted []string
	for _, id := range args {
		c, err := ctx.FindCoupon(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := ctx.Coupons.DeleteCoupon(cmd.Context(), c.ID); err != nil {
			return err
		}
		deleted = append(deleted, c.ID)
		if !ctx.IsJSON() && !ctx.IsPlain() {
			ctx.CLIFormatter().Success(fmt.Sprintf("Deleted %s coupon %s", c.Store, c.Code))
		}
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("deleted", len(deleted), strings.Join(deleted, ","))
	}
	if ctx.IsPlain() {
		for _, id := range deleted {
			ctx.Formatter.Println(id)
		}
	}
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	n, err := ctx.Coupons.DeleteExpiredCoupons(cmd.Context())
	if err != nil {
		return err
	}
	metrics.Default.AddPurged(n)

	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintResult("purged", n, "")
	case ctx.IsPlain():
		ctx.Formatter.Println(n)
	case n == 0:
		ctx.CLIFormatter().Muted("No expired coupons.")
	default:
		ctx.CLIFormatter().Success(fmt.Sprintf("Deleted %d expired coupon(s)", n))
	}
	return nil
}

func runExpiring(cmd *cobra.Command, args []string) error {
	days := ctx.Coupons.GetNotificationPreferences(cmd.Context()).DaysBeforeExpiry
	if len(args) == 1 {
		n, err := parseDays(args[0])
		if err != nil {
			return err
		}
		days = n
	}

	list, err := ctx.Coupons.ExpiringWithin(cmd.Context(), days)
	if err != nil {
		return err
	}
	if len(list) == 0 && !ctx.IsJSON() && !ctx.IsPlain() {
		ctx.CLIFormatter().Muted(fmt.Sprintf("Nothing expires in the next %s.", parser.FormatDaysLeft(days)))
		return nil
	}
	return printCoupons(list)
}
