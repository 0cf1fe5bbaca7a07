// Package commands implements the CLI commands for the locker tool.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// cfg is loaded once in the persistent pre-run and shared by subcommands.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "locker",
	Short: "Attach and manage remote filesystems (lockers)",
	Long: `locker attaches remote AFS, NFS and local filesystems at conventional
locations, tracks them in a shared attachment table, maps user credentials
onto attached servers (fsid) and aggregates quota usage across backends.

Use "locker [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		logCfg := logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logCfg.Level = "DEBUG"
		}
		return logger.Init(logCfg)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: /etc/locker/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(detachCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(fsidCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(athdirCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
