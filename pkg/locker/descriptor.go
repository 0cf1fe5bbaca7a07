// Package locker defines the core types shared by the attach, fsid and
// quota subsystems: filesystem kinds, target descriptors and the error
// taxonomy for per-target failures.
package locker

import "fmt"

// Kind identifies a filesystem technology.
type Kind string

const (
	// KindAFS is an AFS cell volume, reached through the cache manager.
	KindAFS Kind = "afs"
	// KindNFS is a remote NFS export.
	KindNFS Kind = "nfs"
	// KindUFS is a local block-device filesystem.
	KindUFS Kind = "ufs"
)

// ParseKind parses a kind string as stored in the attachtab.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAFS, KindNFS, KindUFS:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown filesystem kind %q", s)
	}
}

// Descriptor is the canonical description of an attachable target.
// It is immutable once resolved; equality is structural.
//
// For AFS, Host carries the cell name and RemotePath the path within the
// cell's volume tree. For NFS, Host is the server and RemotePath the export
// path. For UFS, Host is empty and RemotePath is the block device.
type Descriptor struct {
	Kind       Kind   `json:"kind"`
	Host       string `json:"host,omitempty"`
	RemotePath string `json:"remote_path,omitempty"`
}

// String renders the descriptor the way it is shown in listings.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindAFS:
		if d.RemotePath == "" {
			return d.Host
		}
		return fmt.Sprintf("%s:%s", d.Host, d.RemotePath)
	case KindNFS:
		return fmt.Sprintf("%s:%s", d.Host, d.RemotePath)
	default:
		return d.RemotePath
	}
}

// AuthOp is one authentication-mapping operation applied to a target.
type AuthOp int

const (
	// OpMapUser binds the invoking user's credentials to the target.
	OpMapUser AuthOp = iota
	// OpUnmapUser removes the invoking user's binding from the target.
	OpUnmapUser
	// OpPurgeHost removes every mapping this client holds on the target.
	OpPurgeHost
	// OpPurgeUser removes the invoking user's mappings on the target.
	OpPurgeUser
)

func (op AuthOp) String() string {
	switch op {
	case OpMapUser:
		return "map"
	case OpUnmapUser:
		return "unmap"
	case OpPurgeHost:
		return "purge-host"
	case OpPurgeUser:
		return "purge-user"
	default:
		return fmt.Sprintf("authop(%d)", int(op))
	}
}

// QuotaInfo is a backend's native quota answer, normalized to kilobyte
// blocks. A zero HardLimit means unlimited.
type QuotaInfo struct {
	Used      uint64 `json:"used"`
	SoftLimit uint64 `json:"soft_limit"`
	HardLimit uint64 `json:"hard_limit"`
	BlockSize uint64 `json:"block_size"`
}
