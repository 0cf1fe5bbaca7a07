package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/pkg/fsid"
)

var fsidCmd = &cobra.Command{
	Use:   "fsid [-q|-v] [-m|-u|-p|-r] [-f fs|-h host|-c cell|-a]...",
	Short: "Map user credentials onto attached servers",
	Long: `fsid applies credential mapping operations to filesystem targets.
Flags are processed strictly left to right: mode flags (-m map, -u unmap,
-p purge host, -r purge user) set the operation for the target flags
(-f filesystem, -h host, -c cell, -a all attached) that follow them.

Exit status is 0 on success, 1 if the authentication backends cannot be
initialized, and 2 if any target operation failed. Under -a, success of
at least one target counts as overall success; the FSID_EXTRA_CELLS
environment variable adds cells to the -a set.`,
	// Flags are order-sensitive, so cobra's parser stays out of the way.
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && (args[0] == "--help" || args[0] == "help") {
			return cmd.Help()
		}

		inv, err := fsid.Parse(args)
		if err != nil {
			return err
		}

		e := newEnv()

		// Kerberos setup failure is fatal when any step touches AFS.
		if e.ticketErr != nil && touchesAFS(inv) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", fmt.Errorf("%w: %v", fsid.ErrFatalInit, e.ticketErr))
			os.Exit(fsid.ExitFatal)
		}

		runner := fsid.NewRunner(e.backends, e.store, cfg.Fsid.Timeout, cfg.Fsid.ExtraCells, os.Getuid())
		res, err := runner.Run(cmd.Context(), inv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(fsid.ExitFatal)
		}

		report(inv, res)

		if code := res.ExitCode(); code != fsid.ExitOK {
			os.Exit(code)
		}
		return nil
	},
}

// touchesAFS reports whether any step could reach an AFS target. -a and
// -f are conservative: their target sets are not known until run time.
func touchesAFS(inv *fsid.Invocation) bool {
	for _, step := range inv.Steps {
		if step.Kind != fsid.TargetHost {
			return true
		}
	}
	return false
}

// report prints per-target outcomes. One line per action is the default;
// quiet mode suppresses progress but still prints the error summary.
func report(inv *fsid.Invocation, res *fsid.Result) {
	if inv.Quiet {
		if res.Errors != nil {
			fmt.Fprintf(os.Stderr, "fsid: %v\n", res.Errors)
		}
		return
	}

	for _, out := range res.Outcomes {
		if out.Err != nil {
			fmt.Fprintf(os.Stderr, "fsid: %v\n", out.Err)
			continue
		}
		fmt.Printf("fsid: %s %s: ok\n", out.Op, out.Descriptor)
	}
}
