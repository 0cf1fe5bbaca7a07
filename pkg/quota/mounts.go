package quota

import (
	"strings"

	"github.com/moby/sys/mountinfo"
)

// LocalMount is one block-device-backed mount found on this machine.
type LocalMount struct {
	Device     string
	MountPoint string
	FSType     string
}

// MountLister enumerates local mounts worth a quota query.
type MountLister interface {
	LocalMounts() ([]LocalMount, error)
}

// procMounts reads the kernel mount table.
type procMounts struct{}

// NewMountLister returns the /proc/self/mountinfo-backed lister.
func NewMountLister() MountLister {
	return procMounts{}
}

func (procMounts) LocalMounts() ([]LocalMount, error) {
	infos, err := mountinfo.GetMounts(func(i *mountinfo.Info) (skip, stop bool) {
		// Only block-device filesystems carry local quotas.
		return !strings.HasPrefix(i.Source, "/dev/"), false
	})
	if err != nil {
		return nil, err
	}

	out := make([]LocalMount, 0, len(infos))
	for _, i := range infos {
		out = append(out, LocalMount{
			Device:     i.Source,
			MountPoint: i.Mountpoint,
			FSType:     i.FSType,
		})
	}
	return out, nil
}
