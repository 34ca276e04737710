package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/storage"
)

var restoreFlagForce bool

// doctorCmd checks the database.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the database for damaged records",
	Long: `Scan every record in the database and report values that cannot be decoded,
keys that belong to no collection, and a schema version mismatch. Also warns
when the disk holding the database is nearly full.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// backupCmd writes a database backup.
var backupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Back up the database to a file",
	Long: `Write a full binary backup of the database. Restore it with
couponvault restore FILE.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

// restoreCmd loads a database backup.
var restoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Restore the database from a backup",
	Long: `Load a backup made with couponvault backup. Records in the backup overwrite
records with the same key; the store list is rebuilt afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreFlagForce, "force", false, "Skip confirmation")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report, err := storage.CheckIntegrity(cmd.Context(), ctx.DB)
	if err != nil {
		return err
	}
	diskWarning := ""
	if path := runtimeOptions().DBPath; path != "" {
		diskWarning = storage.CheckDiskSpaceWarning(path)
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"report": report, "disk_warning": diskWarning})
	}
	if ctx.IsPlain() {
		ctx.Formatter.Printf("%t\t%d\t%d\n", report.Healthy, len(report.Undecodable), len(report.Unknown))
		return nil
	}

	cli := ctx.CLIFormatter()
	cli.Title("Database check")
	cli.Printf("  Schema version: %d (expected %d)\n", report.Schema, storage.SchemaVersion)
	collections := make([]string, 0, len(report.Counts))
	for c := range report.Counts {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		cli.Printf("  %-16s %d\n", c+":", report.Counts[c])
	}
	for _, key := range report.Undecodable {
		cli.Error("Undecodable record: " + key)
	}
	for _, key := range report.Unknown {
		cli.Warning("Unknown key: " + key)
	}
	if diskWarning != "" {
		cli.Warning(diskWarning)
	}

	if !report.Healthy {
		return errors.NewUserError("Database has problems",
			"Restore a backup with: couponvault restore FILE")
	}
	cli.Success("Database is healthy")
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	var buf bytes.Buffer
	if err := storage.Backup(cmd.Context(), ctx.DB, &buf); err != nil {
		return err
	}
	if err := storage.SafeWrite(args[0], buf.Bytes(), 0o600); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"status": "backed_up", "path": args[0], "bytes": buf.Len()})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Backup written to %s (%d bytes)", args[0], buf.Len()))
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.NewUserErrorWithField("file", args[0],
			"Cannot open backup file",
			"Check the path and try again")
	}
	defer f.Close()

	if !restoreFlagForce && !ctx.IsJSON() {
		if !confirm("Restore will overwrite coupons with the same id. Continue?") {
			ctx.CLIFormatter().Muted("Cancelled.")
			return nil
		}
	}

	if err := storage.Restore(cmd.Context(), ctx.DB, f); err != nil {
		return err
	}
	removed, added, err := ctx.Coupons.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{
			"status":         "restored",
			"stores_removed": removed,
			"stores_added":   added,
		})
	}
	ctx.CLIFormatter().Success("Restored from " + args[0])
	return nil
}
