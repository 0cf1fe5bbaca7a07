package attach

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// stubBackend records calls and returns scripted errors for one kind.
type stubBackend struct {
	kind      locker.Kind
	attachErr error
	detachErr error
	attached  []string
	detached  []string
}

func (s *stubBackend) Kind() locker.Kind { return s.kind }

func (s *stubBackend) Attach(_ context.Context, _ locker.Descriptor, mountPoint string, _ backend.AttachOptions) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attached = append(s.attached, mountPoint)
	return nil
}

func (s *stubBackend) Detach(_ context.Context, _ locker.Descriptor, mountPoint string) error {
	if s.detachErr != nil {
		return s.detachErr
	}
	s.detached = append(s.detached, mountPoint)
	return nil
}

func (s *stubBackend) Authenticate(context.Context, locker.Descriptor, locker.AuthOp, int) error {
	return nil
}

func (s *stubBackend) Quota(context.Context, locker.Descriptor, string, int) (*locker.QuotaInfo, error) {
	return nil, errors.New("not implemented")
}

func newManagerFixture(t *testing.T, backends ...backend.Backend) (*Manager, *attachtab.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := attachtab.NewStore(filepath.Join(dir, "attachtab"))
	root := filepath.Join(dir, "mit")
	return NewManager(store, backend.NewRegistry(backends...), root), store, root
}

func TestAttachRecordsOnSuccess(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS}
	mgr, store, root := newManagerFixture(t, nfs)

	rec, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "games"), rec.MountPoint)
	assert.Equal(t, []string{rec.MountPoint}, nfs.attached)

	table, err := store.Load()
	require.NoError(t, err)
	got, ok := table.Find(rec.MountPoint)
	require.True(t, ok)
	assert.Equal(t, rec.Descriptor, got.Descriptor)
}

func TestAttachDoesNotRecordOnBackendFailure(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS, attachErr: locker.ErrMountFailed}
	mgr, store, _ := newManagerFixture(t, nfs)

	_, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.ErrorIs(t, err, locker.ErrMountFailed)

	table, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, table.Len())
}

func TestAttachRejectsBusyMountPoint(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS}
	mgr, _, _ := newManagerFixture(t, nfs)

	_, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.NoError(t, err)

	// Same descriptor again is a conflict without force.
	_, err = mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.ErrorIs(t, err, locker.ErrAlreadyAttached)

	// A different descriptor at the same mount point likewise.
	_, err = mgr.Attach(context.Background(), "other.mit.edu:/export/games", Options{})
	require.ErrorIs(t, err, locker.ErrAlreadyAttached)

	// Force replaces the record.
	rec, err := mgr.Attach(context.Background(), "other.mit.edu:/export/games", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, "other.mit.edu", rec.Descriptor.Host)
}

func TestAttachRefusesMountPointOutsideRoot(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS}
	mgr, _, _ := newManagerFixture(t, nfs)

	_, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{MountPoint: "/usr/local/games"})
	require.ErrorIs(t, err, locker.ErrPermissionDenied)
	assert.Empty(t, nfs.attached)
}

func TestDetachRemovesRecord(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS}
	mgr, store, _ := newManagerFixture(t, nfs)

	rec, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.NoError(t, err)

	require.NoError(t, mgr.Detach(context.Background(), rec.MountPoint))
	assert.Equal(t, []string{rec.MountPoint}, nfs.detached)

	table, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, table.Len())
}

func TestDetachUnknownMountPoint(t *testing.T) {
	mgr, _, root := newManagerFixture(t, &stubBackend{kind: locker.KindNFS})

	err := mgr.Detach(context.Background(), filepath.Join(root, "nope"))
	require.ErrorIs(t, err, locker.ErrNotAttached)
}

func TestDetachKeepsRecordOnBackendFailure(t *testing.T) {
	nfs := &stubBackend{kind: locker.KindNFS}
	mgr, store, _ := newManagerFixture(t, nfs)

	rec, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.NoError(t, err)

	nfs.detachErr = errors.New("device busy")
	require.Error(t, mgr.Detach(context.Background(), rec.MountPoint))

	table, err := store.Load()
	require.NoError(t, err)
	_, ok := table.Find(rec.MountPoint)
	assert.True(t, ok)
}

// racingBackend runs a hook during Attach, standing in for work done by
// a concurrent invocation while the mount is in flight.
type racingBackend struct {
	stubBackend
	during func()
}

func (r *racingBackend) Attach(ctx context.Context, desc locker.Descriptor, mountPoint string, opts backend.AttachOptions) error {
	if r.during != nil {
		r.during()
	}
	return r.stubBackend.Attach(ctx, desc, mountPoint, opts)
}

func TestAttachDoesNotClobberConcurrentRecord(t *testing.T) {
	nfs := &racingBackend{stubBackend: stubBackend{kind: locker.KindNFS}}
	mgr, store, root := newManagerFixture(t, nfs)

	mountPoint := filepath.Join(root, "games")
	rival := locker.Descriptor{Kind: locker.KindNFS, Host: "rival.mit.edu", RemotePath: "/export/games"}
	nfs.during = func() {
		require.NoError(t, store.Update(func(tab *attachtab.Table) error {
			tab.Upsert(&attachtab.Record{MountPoint: mountPoint, Descriptor: rival})
			return nil
		}))
	}

	_, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{})
	require.ErrorIs(t, err, locker.ErrAlreadyAttached)

	// The rival's record survives and the losing mount was unwound.
	table, err := store.Load()
	require.NoError(t, err)
	got, ok := table.Find(mountPoint)
	require.True(t, ok)
	assert.Equal(t, rival, got.Descriptor)
	assert.Equal(t, []string{mountPoint}, nfs.detached)
}

func TestAttachForceWinsConcurrentRace(t *testing.T) {
	nfs := &racingBackend{stubBackend: stubBackend{kind: locker.KindNFS}}
	mgr, store, root := newManagerFixture(t, nfs)

	mountPoint := filepath.Join(root, "games")
	nfs.during = func() {
		require.NoError(t, store.Update(func(tab *attachtab.Table) error {
			tab.Upsert(&attachtab.Record{
				MountPoint: mountPoint,
				Descriptor: locker.Descriptor{Kind: locker.KindNFS, Host: "rival.mit.edu", RemotePath: "/export/games"},
			})
			return nil
		}))
	}

	rec, err := mgr.Attach(context.Background(), "fs.mit.edu:/export/games", Options{Force: true})
	require.NoError(t, err)

	table, err := store.Load()
	require.NoError(t, err)
	got, ok := table.Find(mountPoint)
	require.True(t, ok)
	assert.Equal(t, rec.Descriptor, got.Descriptor)
	assert.Empty(t, nfs.detached)
}
