// Package cmd provides the CLI commands for couponvault.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/output"
	"github.com/manav03panchal/couponvault/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagDB     string
)

// ctx is the shared runtime context. It is nil for commands annotated with
// annotationNoDB.
var ctx *runtime.Context

// annotationNoDB marks commands that must not hold the database open, either
// because they do not need it or because they open it themselves.
const annotationNoDB = "couponvault/no-db"

var noDB = map[string]string{annotationNoDB: "true"}

// outWriter receives command output. It follows the executing command's writer.
var outWriter io.Writer = os.Stdout

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "couponvault",
	Short: "Keep your coupons and get reminded before they expire",
	Long: `Couponvault stores discount coupons by store, shows how long each one has
left, and sends webhook reminders before they expire.

Examples:
  couponvault add --store Acme --code SAVE10 --discount 10% --expires 'in 2 weeks'
  couponvault scan receipt.jpg --save
  couponvault list
  couponvault prefs set --days 5 --time 08:30
  couponvault daemon start`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		outWriter = cmd.OutOrStdout()
		if err := loadConfig(); err != nil {
			return err
		}
		initCLILogging()

		if cmd.Name() == "completion" || cmd.Name() == "help" || skipsDB(cmd) {
			return nil
		}
		return openContext()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeContext()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args)
	},
}

func loadConfig() error {
	cfg, err := config.Load(config.FilePath())
	if err != nil {
		return err
	}
	*config.Global = *cfg
	return nil
}

func initCLILogging() {
	if flagDebug {
		logging.InitDebug()
		return
	}
	logging.Init(logging.DefaultConfig())
}

func skipsDB(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoDB] == "true" {
			return true
		}
	}
	return false
}

// runtimeOptions builds runtime options from the global flags.
func runtimeOptions() runtime.Options {
	opts := runtime.DefaultOptions()
	opts.Format = output.ParseFormat(flagFormat)
	opts.ColorMode = output.ParseColorMode(flagColor)
	opts.Debug = flagDebug
	if flagDB != "" {
		opts.DBPath = flagDB
	}
	return opts
}

// openContext opens the shared runtime context if it is not open yet.
func openContext() error {
	if ctx != nil {
		return nil
	}
	var err error
	ctx, err = runtime.New(runtimeOptions())
	if err != nil {
		return err
	}
	ctx.Formatter.Writer = outWriter
	return nil
}

func closeContext() error {
	if ctx == nil {
		return nil
	}
	err := ctx.Close()
	ctx = nil
	return err
}

// formatter returns the runtime formatter, or a standalone one for commands
// that run without the database.
func formatter() *output.Formatter {
	if ctx != nil {
		return ctx.Formatter
	}
	f := output.NewFormatter()
	f.Writer = outWriter
	f.Format = output.ParseFormat(flagFormat)
	f.ColorMode = output.ParseColorMode(flagColor)
	return f
}

// Execute adds all child commands to the root command and runs it. Interrupts
// cancel the command's context.
func Execute() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(sigCtx)
	if err != nil {
		printError(err)
		_ = closeContext()
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "",
		"Database directory (\":memory:\" for a throwaway database)")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: noDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := formatter()
		if f.IsJSON() {
			return f.JSON(map[string]string{"version": Version, "commit": Commit, "built": BuildTime})
		}
		f.Printf("couponvault %s\n", Version)
		f.Printf("  commit: %s\n", Commit)
		f.Printf("  built: %s\n", BuildTime)
		return nil
	},
}

// printError reports err on stderr, or as a JSON error document on stdout
// in JSON mode.
func printError(err error) {
	f := formatter()
	if f.IsJSON() {
		_ = output.NewJSONFormatter(f).PrintError(err.Error(), runtime.GetSuggestion(err))
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+runtime.FormatError(err, flagDebug))
}
