package attach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
)

func TestResolveShapes(t *testing.T) {
	cases := []struct {
		name  string
		token string
		want  locker.Descriptor
	}{
		{
			name:  "nfs export",
			token: "fileserver.mit.edu:/export/u1",
			want:  locker.Descriptor{Kind: locker.KindNFS, Host: "fileserver.mit.edu", RemotePath: "/export/u1"},
		},
		{
			name:  "afs cell",
			token: "athena.mit.edu",
			want:  locker.Descriptor{Kind: locker.KindAFS, Host: "athena.mit.edu"},
		},
		{
			name:  "local device",
			token: "/dev/sdb1",
			want:  locker.Descriptor{Kind: locker.KindUFS, RemotePath: "/dev/sdb1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.token, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveAttachedPath(t *testing.T) {
	desc := locker.Descriptor{Kind: locker.KindNFS, Host: "fs.mit.edu", RemotePath: "/export/games"}
	table := attachtab.NewTable()
	table.Upsert(&attachtab.Record{MountPoint: "/mit/games", Descriptor: desc})

	got, err := Resolve("/mit/games", table)
	require.NoError(t, err)
	assert.Equal(t, desc, got)
}

func TestResolveRejectsUnknownShapes(t *testing.T) {
	for _, token := range []string{"", "games", "/mit/not-attached", "fs.mit.edu:", ":/export"} {
		t.Run(token, func(t *testing.T) {
			_, err := Resolve(token, attachtab.NewTable())
			require.ErrorIs(t, err, locker.ErrUnresolvableTarget)
		})
	}
}

func TestDefaultMountPoint(t *testing.T) {
	nfs := locker.Descriptor{Kind: locker.KindNFS, Host: "fs.mit.edu", RemotePath: "/export/games"}
	assert.Equal(t, "/mit/games", DefaultMountPoint("/mit", nfs))

	cell := locker.Descriptor{Kind: locker.KindAFS, Host: "athena.mit.edu"}
	assert.Equal(t, "/mit/athena.mit.edu", DefaultMountPoint("/mit", cell))

	dev := locker.Descriptor{Kind: locker.KindUFS, RemotePath: "/dev/sdb1"}
	assert.Equal(t, "/mit/sdb1", DefaultMountPoint("/mit", dev))
}
