// Package attach orchestrates attaching and detaching lockers: it
// resolves command-line tokens into target descriptors, drives the
// kind-specific backends and keeps the persisted attachtab consistent.
package attach

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
)

// Resolve turns a command-line token into a target descriptor.
//
// Accepted shapes, tried in order:
//   - an absolute path: looked up in the attachtab, resolving to the
//     descriptor attached there
//   - a /dev device path: a local filesystem
//   - host:path: an NFS export
//   - a dotted name: an AFS cell
//
// Anything else fails with ErrUnresolvableTarget.
func Resolve(token string, table *attachtab.Table) (locker.Descriptor, error) {
	if token == "" {
		return locker.Descriptor{}, fmt.Errorf("%w: empty target", locker.ErrUnresolvableTarget)
	}

	if strings.HasPrefix(token, "/dev/") {
		return locker.Descriptor{Kind: locker.KindUFS, RemotePath: filepath.Clean(token)}, nil
	}

	if filepath.IsAbs(token) {
		if table != nil {
			if rec, ok := table.Find(token); ok {
				return rec.Descriptor, nil
			}
		}
		return locker.Descriptor{}, fmt.Errorf("%w: %s is not an attached mount point", locker.ErrUnresolvableTarget, token)
	}

	if host, path, ok := strings.Cut(token, ":"); ok {
		if host == "" || path == "" {
			return locker.Descriptor{}, fmt.Errorf("%w: malformed export %q", locker.ErrUnresolvableTarget, token)
		}
		return locker.Descriptor{Kind: locker.KindNFS, Host: host, RemotePath: path}, nil
	}

	if strings.Contains(token, ".") {
		return locker.Descriptor{Kind: locker.KindAFS, Host: token}, nil
	}

	return locker.Descriptor{}, fmt.Errorf("%w: %q", locker.ErrUnresolvableTarget, token)
}

// DefaultMountPoint derives the conventional attachment point for a
// descriptor under the mount root: the last component of the remote
// identity.
func DefaultMountPoint(mountRoot string, desc locker.Descriptor) string {
	var name string
	switch desc.Kind {
	case locker.KindAFS:
		if desc.RemotePath != "" {
			name = filepath.Base(desc.RemotePath)
		} else {
			name = desc.Host
		}
	default:
		name = filepath.Base(desc.RemotePath)
	}
	return filepath.Join(mountRoot, name)
}
