package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
)

// DiskQuota queries the local quota subsystem for a block device.
type DiskQuota interface {
	Query(device string, uid int) (*locker.QuotaInfo, error)
}

// UFS serves local block-device filesystems.
type UFS struct {
	mounter Mounter
	quota   DiskQuota
	fstype  string
}

// DefaultUFSType is the filesystem type used for local device mounts.
const DefaultUFSType = "ext4"

// NewUFS builds the local-filesystem backend. An empty fstype selects
// DefaultUFSType.
func NewUFS(mounter Mounter, quota DiskQuota, fstype string) *UFS {
	if fstype == "" {
		fstype = DefaultUFSType
	}
	return &UFS{mounter: mounter, quota: quota, fstype: fstype}
}

func (u *UFS) Kind() locker.Kind {
	return locker.KindUFS
}

func (u *UFS) Attach(_ context.Context, desc locker.Descriptor, mountPoint string, opts AttachOptions) error {
	if _, err := os.Stat(desc.RemotePath); err != nil {
		return fmt.Errorf("%w: device %s: %v", locker.ErrMountFailed, desc.RemotePath, err)
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return fmt.Errorf("create mount point %s: %w", mountPoint, err)
	}

	if err := u.mounter.Mount(desc.RemotePath, mountPoint, u.fstype, opts.ReadOnly, ""); err != nil {
		return fmt.Errorf("%w: %v", locker.ErrMountFailed, err)
	}

	logger.Debug("mounted local device",
		logger.KeyTarget, desc.RemotePath,
		logger.KeyMountPoint, mountPoint,
	)
	return nil
}

func (u *UFS) Detach(_ context.Context, _ locker.Descriptor, mountPoint string) error {
	if err := u.mounter.Unmount(mountPoint); err != nil {
		return err
	}
	_ = os.Remove(mountPoint)
	return nil
}

// Authenticate is a no-op for local filesystems; access is governed by
// ordinary file permissions.
func (u *UFS) Authenticate(context.Context, locker.Descriptor, locker.AuthOp, int) error {
	return nil
}

func (u *UFS) Quota(_ context.Context, desc locker.Descriptor, _ string, uid int) (*locker.QuotaInfo, error) {
	return u.quota.Query(desc.RemotePath, uid)
}
