package commands

import (
	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/pkg/locker/attach"
)

var attachFlags struct {
	mountPoint string
	readOnly   bool
	force      bool
}

var attachCmd = &cobra.Command{
	Use:   "attach <source> [mount-point]",
	Short: "Attach a locker",
	Long: `Attach a remote filesystem at its conventional location under the
mount root, or at the given mount point.

The source is an NFS export (host:/path), an AFS cell name, or a local
block device (/dev/...).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv()

		mountPoint := attachFlags.mountPoint
		if len(args) == 2 {
			mountPoint = args[1]
		}

		rec, err := e.manager.Attach(cmd.Context(), args[0], attach.Options{
			MountPoint: mountPoint,
			ReadOnly:   attachFlags.readOnly,
			Force:      attachFlags.force,
		})
		if err != nil {
			return err
		}

		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		printer.Success(rec.Descriptor.String() + " attached at " + rec.MountPoint)
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVarP(&attachFlags.mountPoint, "mountpoint", "m", "", "Attachment point (default: conventional path under the mount root)")
	attachCmd.Flags().BoolVarP(&attachFlags.readOnly, "read-only", "r", false, "Attach read-only")
	attachCmd.Flags().BoolVarP(&attachFlags.force, "force", "f", false, "Replace a conflicting attachment")
}
