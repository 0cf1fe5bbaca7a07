package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/internal/protocol/rpc"
	"github.com/hesiodfs/locker/internal/protocol/rquota"
	"github.com/hesiodfs/locker/pkg/locker"
)

// MountRPC is the mount-protocol surface the NFS backend consumes.
// *mount.Client satisfies it.
type MountRPC interface {
	Mount(ctx context.Context, dirPath string, cred rpc.OpaqueAuth) ([]byte, error)
	Unmount(ctx context.Context, dirPath string, cred rpc.OpaqueAuth) error
	MapUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error
	UnmapUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error
	PurgeHost(ctx context.Context, cred rpc.OpaqueAuth) error
	PurgeUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error
}

// QuotaRPC is the rquota surface the NFS backend consumes.
// *rquota.Client satisfies it.
type QuotaRPC interface {
	GetQuota(ctx context.Context, pathname string, uid uint32, cred rpc.OpaqueAuth) (*rquota.Quota, error)
}

// NFS serves remote NFS exports. The export is validated against mountd
// before the kernel mount, so a bad export name fails with the server's
// reason instead of a bare mount error.
type NFS struct {
	mounter     Mounter
	mountClient func(host string) MountRPC
	quotaClient func(host string) QuotaRPC
}

// NewNFS builds the NFS backend. The client factories create protocol
// clients per server host.
func NewNFS(mounter Mounter, mountClient func(host string) MountRPC, quotaClient func(host string) QuotaRPC) *NFS {
	return &NFS{mounter: mounter, mountClient: mountClient, quotaClient: quotaClient}
}

func (n *NFS) Kind() locker.Kind {
	return locker.KindNFS
}

// unixCred builds an AUTH_UNIX credential for uid using the invoking
// process's group memberships.
func unixCred(uid int) (rpc.OpaqueAuth, error) {
	groups, err := os.Getgroups()
	if err != nil {
		groups = nil
	}
	gids := make([]uint32, 0, len(groups))
	for _, g := range groups {
		gids = append(gids, uint32(g))
	}
	return rpc.UnixAuth(uint32(uid), uint32(os.Getgid()), gids)
}

func (n *NFS) Attach(ctx context.Context, desc locker.Descriptor, mountPoint string, opts AttachOptions) error {
	cred, err := unixCred(os.Getuid())
	if err != nil {
		return err
	}

	// Ask mountd first so export problems surface with a protocol-level
	// reason before touching the kernel.
	if _, err := n.mountClient(desc.Host).Mount(ctx, desc.RemotePath, cred); err != nil {
		return fmt.Errorf("%w: %v", locker.ErrMountFailed, err)
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return fmt.Errorf("create mount point %s: %w", mountPoint, err)
	}

	source := desc.Host + ":" + desc.RemotePath
	options := "addr=" + desc.Host
	if err := n.mounter.Mount(source, mountPoint, "nfs", opts.ReadOnly, options); err != nil {
		return fmt.Errorf("%w: %v", locker.ErrMountFailed, err)
	}

	logger.Debug("mounted NFS export",
		logger.KeyHost, desc.Host,
		logger.KeyRemotePath, desc.RemotePath,
		logger.KeyMountPoint, mountPoint,
	)
	return nil
}

// Detach unmounts the export and tells mountd the entry is gone. The
// server notification is advisory; its failure does not fail the detach.
func (n *NFS) Detach(ctx context.Context, desc locker.Descriptor, mountPoint string) error {
	if err := n.mounter.Unmount(mountPoint); err != nil {
		return err
	}

	if cred, err := unixCred(os.Getuid()); err == nil {
		if err := n.mountClient(desc.Host).Unmount(ctx, desc.RemotePath, cred); err != nil {
			logger.Warn("mountd unmount notification failed",
				logger.KeyHost, desc.Host,
				logger.KeyError, err.Error(),
			)
		}
	}

	// The mount point directory was created by attach; leave the tree
	// clean when it is empty.
	_ = os.Remove(mountPoint)
	return nil
}

// Authenticate runs the server-side UID mapping procedures.
func (n *NFS) Authenticate(ctx context.Context, desc locker.Descriptor, op locker.AuthOp, uid int) error {
	cred, err := unixCred(uid)
	if err != nil {
		return err
	}

	client := n.mountClient(desc.Host)
	switch op {
	case locker.OpMapUser:
		err = client.MapUser(ctx, uint32(uid), cred)
	case locker.OpUnmapUser:
		err = client.UnmapUser(ctx, uint32(uid), cred)
	case locker.OpPurgeHost:
		err = client.PurgeHost(ctx, cred)
	case locker.OpPurgeUser:
		err = client.PurgeUser(ctx, uint32(uid), cred)
	default:
		return fmt.Errorf("unsupported authentication operation %s", op)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", locker.ErrBackendAuthFailed, err)
	}
	return nil
}

// Quota asks the server's rquotad, normalized to kilobyte blocks.
func (n *NFS) Quota(ctx context.Context, desc locker.Descriptor, _ string, uid int) (*locker.QuotaInfo, error) {
	cred, err := unixCred(uid)
	if err != nil {
		return nil, err
	}

	q, err := n.quotaClient(desc.Host).GetQuota(ctx, desc.RemotePath, uint32(uid), cred)
	if err != nil {
		return nil, err
	}

	// The export path must be the device path the server's quota system
	// knows; rquotad resolves it. Sizes come back in BlockSize units.
	scale := uint64(q.BlockSize)
	if scale == 0 {
		scale = 1024
	}
	toKB := func(blocks uint32) uint64 {
		return uint64(blocks) * scale / 1024
	}

	return &locker.QuotaInfo{
		Used:      toKB(q.CurrentBlocks),
		SoftLimit: toKB(q.BlockSoftLimit),
		HardLimit: toKB(q.BlockHardLimit),
		BlockSize: 1024,
	}, nil
}
