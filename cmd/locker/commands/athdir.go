package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/pkg/athdir"
)

var athdirFlags struct {
	dirType        string
	listAll        bool
	noSearch       bool
	existsOnly     bool
	allConventions bool
	forceDep       bool
	forceIndep     bool
	template       string
	sysName        string
	hostType       string
}

var athdirCmd = &cobra.Command{
	Use:   "athdir <locker_root>",
	Short: "Resolve a locker's conventional directory",
	Long: `athdir resolves the OS- and architecture-specific subdirectory for a
file class (bin, lib, man, ...) under a locker root, following the Athena
directory conventions, and prints the matching path.

Platform identity comes from ATHENA_SYS, ATHENA_SYS_COMPAT and HOSTTYPE,
falling back to the machtype command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := athdir.New(args[0], athdirFlags.dirType, athdir.Options{
			SysName:        athdirFlags.sysName,
			HostType:       athdirFlags.hostType,
			CustomTemplate: athdirFlags.template,
		})
		if err != nil {
			return err
		}

		paths, err := resolver.Paths(athdir.Query{
			AllConventions:   athdirFlags.allConventions,
			NoSearch:         athdirFlags.noSearch,
			ForceDependent:   athdirFlags.forceDep,
			ForceIndependent: athdirFlags.forceIndep,
			ListAll:          athdirFlags.listAll,
		})
		if err != nil {
			return err
		}

		if athdirFlags.existsOnly {
			paths = existingOnly(paths)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

// existingOnly filters candidate paths to those present on disk.
func existingOnly(paths []string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	athdirCmd.Flags().StringVarP(&athdirFlags.dirType, "type", "t", "bin", "Directory type (bin, lib, man, include, ...)")
	athdirCmd.Flags().BoolVarP(&athdirFlags.listAll, "list", "l", false, "List every candidate path instead of the first match")
	athdirCmd.Flags().BoolVarP(&athdirFlags.noSearch, "no-search", "s", false, "Print the first appropriate path without checking existence")
	athdirCmd.Flags().BoolVarP(&athdirFlags.existsOnly, "exists", "e", false, "Print only paths that exist (useful with --list)")
	athdirCmd.Flags().BoolVar(&athdirFlags.allConventions, "all-conventions", false, "Consider every convention, not just the accepted ones")
	athdirCmd.Flags().BoolVarP(&athdirFlags.forceDep, "dependent", "d", false, "Force an architecture-dependent path (with --no-search)")
	athdirCmd.Flags().BoolVarP(&athdirFlags.forceIndep, "independent", "i", false, "Force an architecture-independent path (with --no-search)")
	athdirCmd.Flags().StringVar(&athdirFlags.template, "template", "", "Custom path template tried before the standard conventions")
	athdirCmd.Flags().StringVar(&athdirFlags.sysName, "sysname", "", "Override the platform sysname")
	athdirCmd.Flags().StringVar(&athdirFlags.hostType, "hosttype", "", "Override the host type")
}
