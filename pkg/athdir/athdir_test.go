package athdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = Options{
	SysName:   "amd64_deb12",
	SysCompat: []string{"amd64_deb11", "amd64_deb10"},
	HostType:  "linux",
}

func newResolver(t *testing.T, root, dirType string, opts Options) *Resolver {
	t.Helper()
	r, err := New(root, dirType, opts)
	require.NoError(t, err)
	return r
}

func TestPathsPrefersArchConvention(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "arch", "amd64_deb12", "bin")
	require.NoError(t, os.MkdirAll(want, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "amd64_deb12", "bin"), 0o755))

	r := newResolver(t, root, "bin", testOpts)
	paths, err := r.Paths(Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{want}, paths)
}

func TestPathsFallsBackThroughCompatList(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "arch", "amd64_deb10", "bin")
	require.NoError(t, os.MkdirAll(want, 0o755))

	r := newResolver(t, root, "bin", testOpts)
	paths, err := r.Paths(Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{want}, paths)
}

func TestPathsFallsBackToOldStyleSysname(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "amd64_deb12", "bin")
	require.NoError(t, os.MkdirAll(want, 0o755))

	r := newResolver(t, root, "bin", testOpts)
	paths, err := r.Paths(Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{want}, paths)
}

func TestPathsMachineConventionForLegacyTypes(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "linuxbin")
	require.NoError(t, os.MkdirAll(want, 0o755))

	r := newResolver(t, root, "bin", testOpts)
	paths, err := r.Paths(Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{want}, paths)
}

func TestPathsIndependentTypeUsesPlainLayout(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "man")
	require.NoError(t, os.MkdirAll(want, 0o755))

	r := newResolver(t, root, "man", testOpts)
	paths, err := r.Paths(Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{want}, paths)
}

func TestPathsNoMatch(t *testing.T) {
	r := newResolver(t, t.TempDir(), "bin", testOpts)

	_, err := r.Paths(Query{})
	require.ErrorIs(t, err, ErrNoConventionMatch)
}

func TestPathsIsDeterministic(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "arch", "amd64_deb12", "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "amd64_deb11", "bin"), 0o755))

	r := newResolver(t, root, "bin", testOpts)
	first, err := r.Paths(Query{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.Paths(Query{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPathsListAllExpandsEveryCandidate(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, root, "bin", testOpts)

	paths, err := r.Paths(Query{ListAll: true})
	require.NoError(t, err)

	// Three sysnames for each of the two sysname templates, one machine
	// path, one plain path is excluded for legacy types.
	assert.Contains(t, paths, filepath.Join(root, "arch", "amd64_deb12", "bin"))
	assert.Contains(t, paths, filepath.Join(root, "arch", "amd64_deb10", "bin"))
	assert.Contains(t, paths, filepath.Join(root, "amd64_deb11", "bin"))
	assert.Contains(t, paths, filepath.Join(root, "linuxbin"))
	assert.NotContains(t, paths, filepath.Join(root, "bin"))
}

func TestPathsNoSearchReturnsFirstCandidate(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, root, "bin", testOpts)

	paths, err := r.Paths(Query{NoSearch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "arch", "amd64_deb12", "bin")}, paths)
}

func TestPathsForceIndependent(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, root, "bin", testOpts)

	paths, err := r.Paths(Query{NoSearch: true, ForceIndependent: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "bin")}, paths)
}

func TestPathsForceFlagsConflict(t *testing.T) {
	r := newResolver(t, t.TempDir(), "bin", testOpts)

	_, err := r.Paths(Query{NoSearch: true, ForceDependent: true, ForceIndependent: true})
	require.Error(t, err)

	_, err = r.Paths(Query{ForceDependent: true})
	require.Error(t, err)
}

func TestPathsCustomTemplateWinsFirst(t *testing.T) {
	root := t.TempDir()
	opts := testOpts
	opts.CustomTemplate = "%p/custom/%s/%t"

	r := newResolver(t, root, "bin", opts)
	paths, err := r.Paths(Query{NoSearch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "custom", "amd64_deb12", "bin")}, paths)
}

func TestPlatformFromEnvironment(t *testing.T) {
	t.Setenv("ATHENA_SYS", "amd64_deb12")
	t.Setenv("ATHENA_SYS_COMPAT", "amd64_deb11:amd64_deb10")
	t.Setenv("HOSTTYPE", "linux")

	sys, err := SysName()
	require.NoError(t, err)
	assert.Equal(t, "amd64_deb12", sys)

	compat, err := SysCompat()
	require.NoError(t, err)
	assert.Equal(t, []string{"amd64_deb11", "amd64_deb10"}, compat)

	host, err := HostType()
	require.NoError(t, err)
	assert.Equal(t, "linux", host)
}

func TestIsNative(t *testing.T) {
	native, err := IsNative("/mit/games/arch/amd64_deb12/bin", "amd64_deb12")
	require.NoError(t, err)
	assert.True(t, native)

	native, err = IsNative("/mit/games/arch/amd64_deb10/bin", "amd64_deb12")
	require.NoError(t, err)
	assert.False(t, native)
}
