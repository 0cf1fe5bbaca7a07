package backend

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/hesiodfs/locker/pkg/locker"
)

// Quota command constants from <linux/quota.h>. x/sys/unix carries the
// quotactl syscall number but no wrapper, so the call goes through
// Syscall6 directly.
const (
	qGetQuota = 0x800007
	usrQuota  = 0
)

// qcmd packs a quota command and type the way the kernel QCMD macro does.
func qcmd(cmd, qtype int) int {
	return cmd<<8 | qtype&0xff
}

// dqblk mirrors struct if_dqblk from <linux/quota.h>. Block limits are
// in 1K blocks, current usage in bytes.
type dqblk struct {
	BHardLimit uint64
	BSoftLimit uint64
	CurSpace   uint64
	IHardLimit uint64
	ISoftLimit uint64
	CurInodes  uint64
	BTime      uint64
	ITime      uint64
	Valid      uint32
}

type kernelQuota struct{}

// NewDiskQuota returns the quotactl(2)-backed DiskQuota.
func NewDiskQuota() DiskQuota {
	return kernelQuota{}
}

func (kernelQuota) Query(device string, uid int) (*locker.QuotaInfo, error) {
	dev, err := unix.BytePtrFromString(device)
	if err != nil {
		return nil, fmt.Errorf("quotactl %s: %w", device, err)
	}

	var dq dqblk
	_, _, errno := unix.Syscall6(unix.SYS_QUOTACTL,
		uintptr(qcmd(qGetQuota, usrQuota)),
		uintptr(unsafe.Pointer(dev)),
		uintptr(uid),
		uintptr(unsafe.Pointer(&dq)),
		0, 0)
	if errno != 0 {
		return nil, fmt.Errorf("quotactl %s uid %d: %w", device, uid, errno)
	}

	return &locker.QuotaInfo{
		Used:      dq.CurSpace / 1024,
		SoftLimit: dq.BSoftLimit,
		HardLimit: dq.BHardLimit,
		BlockSize: 1024,
	}, nil
}
