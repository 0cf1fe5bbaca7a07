package commands

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/internal/cli/output"
	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/quota"
)

var quotaFilsys string

var quotaCmd = &cobra.Command{
	Use:   "quota [user]",
	Short: "Report quota usage across attached filesystems",
	Long: `quota queries every attached filesystem's native quota mechanism and
prints one normalized report. Unreachable backends are reported as failed
without blocking the rest of the report.

Only root may query another user.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid := os.Getuid()
		if len(args) == 1 {
			u, err := user.Lookup(args[0])
			if err != nil {
				return fmt.Errorf("unknown user %q: %w", args[0], err)
			}
			uid, err = strconv.Atoi(u.Uid)
			if err != nil {
				return fmt.Errorf("parse uid for %q: %w", args[0], err)
			}
			logger.Debug("resolved quota user", logger.KeyUsername, args[0], logger.KeyUID, uid)
		}

		e := newEnv()
		agg := quota.NewAggregator(e.backends, e.store, quota.NewMountLister(), cfg.Quota.Workers, cfg.Quota.Timeout)

		var records []quota.Record
		if quotaFilsys != "" {
			rec, err := agg.ReportTarget(cmd.Context(), quotaFilsys, uid)
			if err != nil {
				return err
			}
			records = []quota.Record{rec}
		} else {
			all, err := agg.Report(cmd.Context(), uid)
			if err != nil {
				return err
			}
			records = all
		}

		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		if printer.Format() != output.FormatTable {
			return printer.Print(records)
		}
		if err := printer.Print(quotaTable(records)); err != nil {
			return err
		}

		// The report only fails outright when nothing answered.
		if len(records) > 0 && allFailed(records) {
			return fmt.Errorf("no backend could be queried")
		}
		return nil
	},
}

func allFailed(records []quota.Record) bool {
	for _, r := range records {
		if !r.Failed() {
			return false
		}
	}
	return true
}

// quotaTable renders quota records for terminal output, sizes in
// kilobyte blocks.
func quotaTable(records []quota.Record) *output.TableData {
	t := output.NewTableData("FILESYSTEM", "MOUNTPOINT", "USED", "SOFT", "HARD", "STATUS")
	for _, r := range records {
		if r.Failed() {
			t.AddRow(r.Descriptor.String(), r.MountPoint, "-", "-", "-", r.Err.Error())
			continue
		}
		t.AddRow(
			r.Descriptor.String(),
			r.MountPoint,
			strconv.FormatUint(r.Info.Used, 10),
			formatLimit(r.Info.SoftLimit),
			formatLimit(r.Info.HardLimit),
			"ok",
		)
	}
	return t
}

// formatLimit renders a block limit; zero means unlimited.
func formatLimit(limit uint64) string {
	if limit == 0 {
		return "unlimited"
	}
	return strconv.FormatUint(limit, 10)
}

func init() {
	quotaCmd.Flags().StringVarP(&quotaFilsys, "filsys", "f", "", "Query a single filesystem (mount point, export or cell)")
}
