//go:build !linux

package backend

import (
	"errors"

	"github.com/hesiodfs/locker/pkg/locker"
)

type kernelQuota struct{}

// NewDiskQuota returns the quotactl-backed DiskQuota. Local disk quotas
// are only supported on linux.
func NewDiskQuota() DiskQuota {
	return kernelQuota{}
}

func (kernelQuota) Query(string, int) (*locker.QuotaInfo, error) {
	return nil, errors.New("local disk quotas are only supported on linux")
}
