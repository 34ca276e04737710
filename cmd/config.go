package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/couponvault/internal/config"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Inspect runtime configuration",
	Long: `Show the effective configuration: defaults, overridden by the YAML file,
overridden by COUPONVAULT_* environment variables. Secrets are redacted.

Examples:
  couponvault config show
  couponvault config path`,
	Annotations: noDB,
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := formatter()
		if f.IsJSON() {
			return f.JSON(map[string]string{"path": config.FilePath()})
		}
		f.Println(config.FilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	f := formatter()
	if f.IsJSON() {
		return f.JSON(config.Global.Redacted())
	}
	data, err := config.Global.Marshal()
	if err != nil {
		return err
	}
	f.Print(string(data))
	return nil
}
