package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/internal/cli/output"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List attached lockers",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv()

		table, err := e.manager.Table()
		if err != nil {
			return err
		}

		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		if printer.Format() != output.FormatTable {
			return printer.Print(table.Records)
		}
		return printer.Print(attachmentTable(table.Records))
	},
}

// attachmentTable renders attachtab records for terminal output.
func attachmentTable(records []*attachtab.Record) *output.TableData {
	t := output.NewTableData("MOUNTPOINT", "KIND", "SOURCE", "MODE", "ATTACHED")
	for _, rec := range records {
		mode := "rw"
		if rec.HasOption("ro") {
			mode = "ro"
		}
		t.AddRow(
			rec.MountPoint,
			string(rec.Descriptor.Kind),
			rec.Descriptor.String(),
			mode,
			rec.AttachedAt.Local().Format(time.RFC3339),
		)
	}
	return t
}
