package commands

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/internal/cli/output"
	"github.com/hesiodfs/locker/internal/cli/prompt"
)

var detachFlags struct {
	all   bool
	force bool
}

var detachCmd = &cobra.Command{
	Use:   "detach [mount_point]",
	Short: "Detach a locker",
	Long: `Detach the locker at the given mount point and remove its record
from the attachment table. A backend resource that is already gone does
not fail the detach.

With --all, every recorded locker is detached.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv()
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		if detachFlags.all {
			if len(args) > 0 {
				return fmt.Errorf("--all takes no mount point argument")
			}
			return detachAll(cmd, e, printer)
		}

		if len(args) != 1 {
			return fmt.Errorf("a mount point is required without --all")
		}

		if err := e.manager.Detach(cmd.Context(), args[0]); err != nil {
			return err
		}
		printer.Success("detached " + args[0])
		return nil
	},
}

// detachAll detaches every recorded locker, continuing past individual
// failures and reporting them together.
func detachAll(cmd *cobra.Command, e *env, printer *output.Printer) error {
	table, err := e.manager.Table()
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		printer.Success("nothing attached")
		return nil
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Detach all %d lockers?", table.Len()),
		detachFlags.force,
	)
	if err != nil {
		if prompt.IsAborted(err) {
			return fmt.Errorf("aborted")
		}
		return err
	}
	if !ok {
		return nil
	}

	var errs *multierror.Error
	for _, rec := range table.Records {
		if err := e.manager.Detach(cmd.Context(), rec.MountPoint); err != nil {
			printer.Failure(rec.MountPoint + ": " + err.Error())
			errs = multierror.Append(errs, err)
			continue
		}
		printer.Success("detached " + rec.MountPoint)
	}
	return errs.ErrorOrNil()
}

func init() {
	detachCmd.Flags().BoolVarP(&detachFlags.all, "all", "a", false, "Detach every recorded locker")
	detachCmd.Flags().BoolVarP(&detachFlags.force, "force", "f", false, "Skip the confirmation prompt for --all")
}
