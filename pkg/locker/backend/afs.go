package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
)

// TicketSource obtains and checks the user credentials behind AFS cell
// authentication.
type TicketSource interface {
	ObtainServiceTicket(ctx context.Context, cell string, uid int) error
	VerifyCredentials(uid int) error
}

// AFS serves targets that live in the global AFS namespace. Attaching is
// a symlink into the cell tree; the cache manager does the real work.
type AFS struct {
	root    string // where the cache manager exposes the namespace
	tickets TicketSource
	usage   UsageReader
}

// NewAFS builds the AFS backend rooted at root (normally /afs).
func NewAFS(root string, tickets TicketSource, usage UsageReader) *AFS {
	return &AFS{root: root, tickets: tickets, usage: usage}
}

func (a *AFS) Kind() locker.Kind {
	return locker.KindAFS
}

// cellPath maps a descriptor into the AFS namespace.
func (a *AFS) cellPath(desc locker.Descriptor) string {
	return filepath.Join(a.root, desc.Host, desc.RemotePath)
}

// Attach links mountPoint at the target's location in the cell tree. An
// existing link already pointing at the right place is success; a
// conflicting one is replaced only under Force.
func (a *AFS) Attach(_ context.Context, desc locker.Descriptor, mountPoint string, opts AttachOptions) error {
	target := a.cellPath(desc)

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("%w: %s: %v", locker.ErrMountFailed, target, err)
	}

	if existing, err := os.Readlink(mountPoint); err == nil {
		if existing == target {
			return nil
		}
		if !opts.Force {
			return fmt.Errorf("%w: %s points at %s", locker.ErrAlreadyAttached, mountPoint, existing)
		}
		if err := os.Remove(mountPoint); err != nil {
			return fmt.Errorf("replace %s: %w", mountPoint, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		// Present but not a symlink; never overwrite it.
		return fmt.Errorf("%w: %s exists and is not a symlink", locker.ErrAlreadyAttached, mountPoint)
	}

	if err := os.MkdirAll(filepath.Dir(mountPoint), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", mountPoint, err)
	}
	if err := os.Symlink(target, mountPoint); err != nil {
		return fmt.Errorf("%w: symlink %s: %v", locker.ErrMountFailed, mountPoint, err)
	}

	logger.Debug("linked AFS target",
		logger.KeyCell, desc.Host,
		logger.KeyMountPoint, mountPoint,
	)
	return nil
}

// Detach removes the symlink. A missing link is success.
func (a *AFS) Detach(_ context.Context, _ locker.Descriptor, mountPoint string) error {
	if _, err := os.Lstat(mountPoint); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", mountPoint, err)
	}
	if err := os.Remove(mountPoint); err != nil {
		return fmt.Errorf("remove %s: %w", mountPoint, err)
	}
	return nil
}

// Authenticate maps to Kerberos ticket operations. Mapping obtains the
// cell's service ticket; the unmap and purge shapes have no server side
// for AFS, so they only check the credential cache is intact.
func (a *AFS) Authenticate(ctx context.Context, desc locker.Descriptor, op locker.AuthOp, uid int) error {
	switch op {
	case locker.OpMapUser:
		return a.tickets.ObtainServiceTicket(ctx, desc.Host, uid)
	case locker.OpUnmapUser, locker.OpPurgeUser, locker.OpPurgeHost:
		return a.tickets.VerifyCredentials(uid)
	default:
		return fmt.Errorf("unsupported authentication operation %s", op)
	}
}

// Quota reports the volume quota through statfs on the volume root. The
// cache manager maps the volume's quota onto total blocks, so usage
// against quota falls out of a plain usage reading.
func (a *AFS) Quota(_ context.Context, desc locker.Descriptor, _ string, _ int) (*locker.QuotaInfo, error) {
	target := a.cellPath(desc)
	u, err := a.usage.Usage(target)
	if err != nil {
		return nil, err
	}

	const kb = 1024
	return &locker.QuotaInfo{
		Used:      (u.Total - u.Free) / kb,
		SoftLimit: u.Total / kb,
		HardLimit: u.Total / kb,
		BlockSize: kb,
	}, nil
}
