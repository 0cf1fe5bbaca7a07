package backend

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// systemMounter performs real mount(2) and umount(2) calls.
type systemMounter struct{}

// NewSystemMounter returns the kernel-backed Mounter.
func NewSystemMounter() Mounter {
	return systemMounter{}
}

func (systemMounter) Mount(source, target, fstype string, readOnly bool, options string) error {
	var flags uintptr = unix.MS_NOSUID
	if readOnly {
		flags |= unix.MS_RDONLY
	}
	if err := unix.Mount(source, target, fstype, flags, options); err != nil {
		return fmt.Errorf("mount %s on %s: %w", source, target, err)
	}
	return nil
}

func (systemMounter) Unmount(target string) error {
	if err := unix.Unmount(target, 0); err != nil {
		if errors.Is(err, unix.EINVAL) {
			// Not mounted; treat as already detached.
			return nil
		}
		return fmt.Errorf("unmount %s: %w", target, err)
	}
	return nil
}
