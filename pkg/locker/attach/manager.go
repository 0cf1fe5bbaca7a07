package attach

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// Options carries caller choices for one attach.
type Options struct {
	// MountPoint overrides the conventional attachment point.
	MountPoint string

	// ReadOnly attaches without write access.
	ReadOnly bool

	// Force replaces a conflicting attachment.
	Force bool
}

// Manager drives attach and detach end to end. The attachtab lock is
// held only across the table read-modify-write, never across backend
// mount or network calls.
type Manager struct {
	store     *attachtab.Store
	backends  *backend.Registry
	mountRoot string
}

// NewManager builds a manager over the given store and backends.
// mountRoot bounds where lockers may be attached.
func NewManager(store *attachtab.Store, backends *backend.Registry, mountRoot string) *Manager {
	return &Manager{store: store, backends: backends, mountRoot: filepath.Clean(mountRoot)}
}

// Table returns the current attachtab contents.
func (m *Manager) Table() (*attachtab.Table, error) {
	return m.store.Load()
}

// underRoot reports whether path lives inside the mount root.
func (m *Manager) underRoot(path string) bool {
	rel, err := filepath.Rel(m.mountRoot, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// Attach resolves source, mounts it and records the attachment.
func (m *Manager) Attach(ctx context.Context, source string, opts Options) (*attachtab.Record, error) {
	table, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	desc, err := Resolve(source, table)
	if err != nil {
		return nil, err
	}

	mountPoint := opts.MountPoint
	if mountPoint == "" {
		mountPoint = DefaultMountPoint(m.mountRoot, desc)
	}
	mountPoint = filepath.Clean(mountPoint)

	if !m.underRoot(mountPoint) {
		return nil, fmt.Errorf("%w: %s is outside %s", locker.ErrPermissionDenied, mountPoint, m.mountRoot)
	}

	// Fast path: refuse before mounting when the conflict is already
	// visible. The authoritative check runs again under the lock below.
	if existing, ok := table.Find(mountPoint); ok && !opts.Force {
		return nil, alreadyAttached(mountPoint, desc, existing.Descriptor)
	}

	b, err := m.backends.For(desc.Kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = b.Attach(ctx, desc, mountPoint, backend.AttachOptions{ReadOnly: opts.ReadOnly, Force: opts.Force})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", locker.ErrPermissionDenied, err)
		}
		return nil, err
	}

	rec := &attachtab.Record{
		MountPoint: mountPoint,
		Descriptor: desc,
		AttachedAt: time.Now().UTC(),
		Options:    recordOptions(opts),
	}

	// Recheck under the lock: a concurrent invocation may have claimed
	// the mount point while the backend mount ran. Its record must win;
	// upserting over it would lose that update.
	var conflict *attachtab.Record
	if err := m.store.Update(func(t *attachtab.Table) error {
		if existing, ok := t.Find(mountPoint); ok && !opts.Force {
			c := *existing
			conflict = &c
			return errContested
		}
		t.Upsert(rec)
		return nil
	}); err != nil {
		if conflict != nil {
			// Unwind the mount just performed; the rival keeps the
			// mount point. The lock is not held across the unmount.
			_ = b.Detach(ctx, desc, mountPoint)
			return nil, alreadyAttached(mountPoint, desc, conflict.Descriptor)
		}
		return nil, fmt.Errorf("record attachment: %w", err)
	}

	logger.Info("attached",
		logger.KeyTarget, desc.String(),
		logger.KeyKind, string(desc.Kind),
		logger.KeyMountPoint, mountPoint,
		logger.KeyDuration, time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// errContested aborts the table save when the mount point was claimed by
// a concurrent invocation; Attach translates it to ErrAlreadyAttached.
var errContested = errors.New("mount point contested")

// alreadyAttached builds the conflict error for a held mount point.
func alreadyAttached(mountPoint string, want, held locker.Descriptor) error {
	if held == want {
		return fmt.Errorf("%w: %s already holds %s", locker.ErrAlreadyAttached, mountPoint, want)
	}
	return fmt.Errorf("%w: %s holds %s", locker.ErrAlreadyAttached, mountPoint, held)
}

func recordOptions(opts Options) []string {
	var out []string
	if opts.ReadOnly {
		out = append(out, "ro")
	}
	return out
}

// Detach unmounts the locker at mountPoint and removes its record. A
// backend resource that is already gone does not fail the detach; only a
// missing record does.
func (m *Manager) Detach(ctx context.Context, mountPoint string) error {
	mountPoint = filepath.Clean(mountPoint)

	table, err := m.store.Load()
	if err != nil {
		return err
	}
	rec, ok := table.Find(mountPoint)
	if !ok {
		return fmt.Errorf("%w: %s", locker.ErrNotAttached, mountPoint)
	}

	b, err := m.backends.For(rec.Descriptor.Kind)
	if err != nil {
		return err
	}

	if err := b.Detach(ctx, rec.Descriptor, mountPoint); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %v", locker.ErrPermissionDenied, err)
		}
		return err
	}

	if err := m.store.Update(func(t *attachtab.Table) error {
		t.Remove(mountPoint)
		return nil
	}); err != nil {
		return fmt.Errorf("remove attachment record: %w", err)
	}

	logger.Info("detached",
		logger.KeyTarget, rec.Descriptor.String(),
		logger.KeyMountPoint, mountPoint,
	)
	return nil
}
