package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/coupons"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// Transfer command flags.
var (
	exportFlagOutput string
	exportFlagYAML   bool
	importFlagPrefs  bool
)

// exportCmd writes every coupon and the preferences to a portable document.
var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"dump"},
	Short:   "Export coupons as JSON or YAML",
	Long: `Export every coupon and the notification preferences. The format follows
the output file extension (.yaml or .yml for YAML) unless --yaml is given.

Examples:
  couponvault export > coupons.json
  couponvault export -o coupons.yaml`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// importCmd loads coupons from an export document.
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import coupons from an export",
	Long: `Import coupons from a JSON or YAML export. Coupons whose id already exists
are skipped; invalid coupons are reported and skipped. Pass "-" to read stdin.

Examples:
  couponvault import coupons.json
  couponvault import coupons.yaml --prefs`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlagOutput, "output", "o", "", "Output file (stdout if omitted)")
	exportCmd.Flags().BoolVar(&exportFlagYAML, "yaml", false, "Write YAML instead of JSON")
	importCmd.Flags().BoolVar(&importFlagPrefs, "prefs", false, "Also replace notification preferences")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func exportFormat() coupons.Format {
	ext := strings.ToLower(filepath.Ext(exportFlagOutput))
	if exportFlagYAML || ext == ".yaml" || ext == ".yml" {
		return coupons.FormatYAML
	}
	return coupons.FormatJSON
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFlagOutput == "" {
		_, err := ctx.Coupons.Export(cmd.Context(), ctx.Formatter.Writer, exportFormat())
		return err
	}

	var buf bytes.Buffer
	n, err := ctx.Coupons.Export(cmd.Context(), &buf, exportFormat())
	if err != nil {
		return err
	}
	if err := storage.SafeWrite(exportFlagOutput, buf.Bytes(), 0o600); err != nil {
		return err
	}

	switch {
	case ctx.IsJSON():
		return ctx.JSONFormatter().PrintResult("exported", n, exportFlagOutput)
	case ctx.IsPlain():
		ctx.Formatter.Println(n)
	default:
		ctx.CLIFormatter().Success(fmt.Sprintf("Exported %d coupon(s) to %s", n, exportFlagOutput))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.NewUserErrorWithField("file", args[0],
				"Cannot open import file",
				"Check the path and try again")
		}
		defer f.Close()
		r = f
	}

	res, err := ctx.Coupons.Import(cmd.Context(), r, importFlagPrefs)
	if err != nil {
		return err
	}
	if importFlagPrefs {
		reloadDaemon()
	}

	switch {
	case ctx.IsJSON():
		invalid := res.Invalid
		if invalid == nil {
			invalid = []string{}
		}
		return ctx.Formatter.JSON(map[string]any{
			"status":   "imported",
			"imported": res.Imported,
			"skipped":  res.Skipped,
			"invalid":  invalid,
		})
	case ctx.IsPlain():
		ctx.Formatter.Printf("%d\t%d\t%d\n", res.Imported, res.Skipped, len(res.Invalid))
		return nil
	}

	cli := ctx.CLIFormatter()
	cli.Success(fmt.Sprintf("Imported %d coupon(s), skipped %d already present", res.Imported, res.Skipped))
	for _, msg := range res.Invalid {
		cli.Warning("Skipped invalid coupon: " + msg)
	}
	return nil
}
