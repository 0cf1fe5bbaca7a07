package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesiodfs/locker/pkg/locker"
)

type fakeTickets struct {
	obtained []string
	verified int
	err      error
}

func (f *fakeTickets) ObtainServiceTicket(_ context.Context, cell string, _ int) error {
	f.obtained = append(f.obtained, cell)
	return f.err
}

func (f *fakeTickets) VerifyCredentials(int) error {
	f.verified++
	return f.err
}

type fakeUsage struct {
	usage FSUsage
	err   error
}

func (f *fakeUsage) Usage(string) (FSUsage, error) {
	return f.usage, f.err
}

// newAFSFixture builds an AFS backend over a temporary namespace with one
// cell directory present, returning the backend and a descriptor for it.
func newAFSFixture(t *testing.T) (*AFS, *fakeTickets, locker.Descriptor, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "athena.mit.edu", "project", "games"), 0o755))

	tickets := &fakeTickets{}
	afs := NewAFS(root, tickets, &fakeUsage{usage: FSUsage{Total: 2048 * 1024, Free: 1024 * 1024}})

	desc := locker.Descriptor{
		Kind:       locker.KindAFS,
		Host:       "athena.mit.edu",
		RemotePath: "project/games",
	}
	return afs, tickets, desc, filepath.Join(t.TempDir(), "games")
}

func TestAFSAttachCreatesSymlink(t *testing.T) {
	afs, _, desc, mountPoint := newAFSFixture(t)

	require.NoError(t, afs.Attach(context.Background(), desc, mountPoint, AttachOptions{}))

	target, err := os.Readlink(mountPoint)
	require.NoError(t, err)
	assert.Equal(t, afs.cellPath(desc), target)
}

func TestAFSAttachIsIdempotent(t *testing.T) {
	afs, _, desc, mountPoint := newAFSFixture(t)

	require.NoError(t, afs.Attach(context.Background(), desc, mountPoint, AttachOptions{}))
	require.NoError(t, afs.Attach(context.Background(), desc, mountPoint, AttachOptions{}))
}

func TestAFSAttachRejectsConflictingLink(t *testing.T) {
	afs, _, desc, mountPoint := newAFSFixture(t)

	other := t.TempDir()
	require.NoError(t, os.Symlink(other, mountPoint))

	err := afs.Attach(context.Background(), desc, mountPoint, AttachOptions{})
	require.ErrorIs(t, err, locker.ErrAlreadyAttached)

	// Force replaces the wrong link.
	require.NoError(t, afs.Attach(context.Background(), desc, mountPoint, AttachOptions{Force: true}))
	target, err := os.Readlink(mountPoint)
	require.NoError(t, err)
	assert.Equal(t, afs.cellPath(desc), target)
}

func TestAFSAttachNeverOverwritesRealFile(t *testing.T) {
	afs, _, desc, mountPoint := newAFSFixture(t)
	require.NoError(t, os.WriteFile(mountPoint, []byte("data"), 0o644))

	err := afs.Attach(context.Background(), desc, mountPoint, AttachOptions{Force: true})
	require.ErrorIs(t, err, locker.ErrAlreadyAttached)
}

func TestAFSAttachFailsOnMissingTarget(t *testing.T) {
	afs, _, _, mountPoint := newAFSFixture(t)
	missing := locker.Descriptor{Kind: locker.KindAFS, Host: "athena.mit.edu", RemotePath: "no/such/volume"}

	err := afs.Attach(context.Background(), missing, mountPoint, AttachOptions{})
	require.ErrorIs(t, err, locker.ErrMountFailed)
}

func TestAFSDetachRemovesLinkAndIsIdempotent(t *testing.T) {
	afs, _, desc, mountPoint := newAFSFixture(t)
	require.NoError(t, afs.Attach(context.Background(), desc, mountPoint, AttachOptions{}))

	require.NoError(t, afs.Detach(context.Background(), desc, mountPoint))
	_, err := os.Lstat(mountPoint)
	assert.True(t, os.IsNotExist(err))

	// Already gone is success.
	require.NoError(t, afs.Detach(context.Background(), desc, mountPoint))
}

func TestAFSAuthenticateDispatch(t *testing.T) {
	afs, tickets, desc, _ := newAFSFixture(t)

	require.NoError(t, afs.Authenticate(context.Background(), desc, locker.OpMapUser, 1000))
	assert.Equal(t, []string{"athena.mit.edu"}, tickets.obtained)

	require.NoError(t, afs.Authenticate(context.Background(), desc, locker.OpUnmapUser, 1000))
	assert.Equal(t, 1, tickets.verified)
}

func TestAFSQuotaFromUsage(t *testing.T) {
	afs, _, desc, _ := newAFSFixture(t)

	q, err := afs.Quota(context.Background(), desc, "", 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), q.Used)
	assert.Equal(t, uint64(2048), q.HardLimit)
}
