package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/output"
	"github.com/manav03panchal/couponvault/internal/parser"
	"github.com/manav03panchal/couponvault/internal/validate"
	"github.com/manav03panchal/couponvault/internal/vision"
)

var scanFlagSave bool

// scanCmd extracts coupon fields from a photo.
var scanCmd = &cobra.Command{
	Use:   "scan IMAGE",
	Short: "Read a coupon from a photo",
	Long: `Send a photo of a coupon to the image-analysis service and print the
code, discount, store and expiry date it finds. Requires ANTHROPIC_API_KEY.

With --save the result is stored as a new coupon, with the photo attached.

Examples:
  couponvault scan coupon.jpg
  couponvault scan flyer.png --save`,
	Args:        cobra.ExactArgs(1),
	Annotations: noDB,
	RunE:        runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanFlagSave, "save", false, "Save the result as a coupon")
	rootCmd.AddCommand(scanCmd)
}

// loadImage reads and normalizes an image file for analysis and storage.
func loadImage(path string) (vision.Image, error) {
	if err := validate.ImageFile(path); err != nil {
		return vision.Image{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return vision.Image{}, err
	}
	return vision.PrepareImageBytes(raw, config.Global.Vision.MaxImageEdge)
}

func dataURI(img vision.Image) string {
	return "data:" + img.MediaType + ";base64," + img.Base64()
}

// extract runs the configured vision client over img.
func extract(c context.Context, img vision.Image) (vision.Extraction, error) {
	client := vision.NewClient()
	if !client.Configured() {
		return vision.Extraction{}, errors.ErrMissingAPIKey
	}
	return client.Extract(c, img)
}

func runScan(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[0])
	if err != nil {
		return err
	}
	ext, err := extract(cmd.Context(), img)
	if err != nil {
		return err
	}

	if !scanFlagSave {
		return printExtraction(formatter(), ext)
	}

	if err := openContext(); err != nil {
		return err
	}
	var c model.Coupon
	ext.Apply(&c)
	c.CodeImage = dataURI(img)

	now := ctx.Coupons.Now()
	if c.ExpiryDate == "" {
		c.ExpiryDate = model.NoExpiry
	} else if expiry, err := parser.ParseExpiry(c.ExpiryDate, now); err == nil {
		c.ExpiryDate = expiry
	}
	c = validate.SanitizeCoupon(c)
	if err := validate.Coupon(c); err != nil {
		return errors.NewUserError(
			fmt.Sprintf("scan found too little to save: %v", err),
			"Add the missing fields by hand: couponvault add --image "+args[0]+" --scan --store ... --code ...")
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

func printExtraction(f *output.Formatter, ext vision.Extraction) error {
	if f.IsJSON() {
		return f.JSON(ext)
	}
	if f.IsPlain() {
		f.Printf("%s\t%s\t%s\t%s\n", ext.Store, ext.Code, ext.Discount, ext.ExpiryDate)
		return nil
	}
	cli := output.NewCLIFormatter(f)
	if ext.Empty() {
		cli.Warning("Nothing recognized in the image.")
		return nil
	}
	field := func(label, v string) {
		if v == "" {
			v = "-"
		}
		cli.Printf("  %-9s %s\n", label+":", v)
	}
	cli.Title("Scan result")
	field("Store", ext.Store)
	field("Code", ext.Code)
	field("Discount", ext.Discount)
	field("Expires", ext.ExpiryDate)
	return nil
}
