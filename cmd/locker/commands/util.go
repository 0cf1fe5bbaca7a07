package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/hesiodfs/locker/internal/cli/output"
	"github.com/hesiodfs/locker/internal/protocol/mount"
	"github.com/hesiodfs/locker/internal/protocol/rquota"
	"github.com/hesiodfs/locker/pkg/auth/kerberos"
	"github.com/hesiodfs/locker/pkg/locker/attach"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// env bundles the wired-up subsystems a command needs. Kerberos setup is
// attempted once; commands that need tickets check ticketErr themselves
// so commands that never touch AFS authentication still work without a
// Kerberos environment.
type env struct {
	store     *attachtab.Store
	backends  *backend.Registry
	manager   *attach.Manager
	ticketErr error
}

// failingTickets reports the deferred Kerberos setup error on first use.
type failingTickets struct {
	err error
}

func (f failingTickets) ObtainServiceTicket(context.Context, string, int) error {
	return f.err
}

func (f failingTickets) VerifyCredentials(int) error {
	return f.err
}

// newEnv wires the backends per the loaded configuration.
func newEnv() *env {
	store := attachtab.NewStore(cfg.AttachTab.Path)

	var tickets backend.TicketSource
	auth, err := kerberos.New(kerberos.Config{
		Krb5Conf: cfg.Kerberos.Krb5Conf,
		CCache:   cfg.Kerberos.CCache,
	})
	if err != nil {
		tickets = failingTickets{err: err}
	} else {
		tickets = auth
	}

	timeout := cfg.NFS.Timeout
	mountPort := uint16(cfg.NFS.MountPort)
	mountClient := func(host string) backend.MountRPC {
		return mount.NewClient(host, mountPort, timeout)
	}
	quotaClient := func(host string) backend.QuotaRPC {
		return rquota.NewClient(host, 0, timeout)
	}

	registry := backend.NewRegistry(
		backend.NewAFS(cfg.AFS.Root, tickets, backend.NewUsageReader()),
		backend.NewNFS(backend.NewSystemMounter(), mountClient, quotaClient),
		backend.NewUFS(backend.NewSystemMounter(), backend.NewDiskQuota(), ""),
	)

	return &env{
		store:     store,
		backends:  registry,
		manager:   attach.NewManager(store, registry, cfg.Mount.Root),
		ticketErr: err,
	}
}

// newPrinter builds a printer honoring the global output flags.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	formatStr, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	return output.NewPrinter(os.Stdout, format, !noColor), nil
}
