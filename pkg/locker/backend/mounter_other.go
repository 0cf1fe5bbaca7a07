//go:build !linux

package backend

import "errors"

var errMountUnsupported = errors.New("kernel mounts are only supported on linux")

type systemMounter struct{}

// NewSystemMounter returns the kernel-backed Mounter. On non-linux
// platforms every call fails; only the AFS symlink backend works there.
func NewSystemMounter() Mounter {
	return systemMounter{}
}

func (systemMounter) Mount(string, string, string, bool, string) error {
	return errMountUnsupported
}

func (systemMounter) Unmount(string) error {
	return errMountUnsupported
}
