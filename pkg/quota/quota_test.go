package quota

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// quotaBackend answers quota queries per host with optional delay.
type quotaBackend struct {
	kind  locker.Kind
	info  map[string]*locker.QuotaInfo
	delay map[string]time.Duration
	err   map[string]error
}

func (q *quotaBackend) Kind() locker.Kind { return q.kind }

func (q *quotaBackend) Attach(context.Context, locker.Descriptor, string, backend.AttachOptions) error {
	return errors.New("not implemented")
}

func (q *quotaBackend) Detach(context.Context, locker.Descriptor, string) error {
	return errors.New("not implemented")
}

func (q *quotaBackend) Authenticate(context.Context, locker.Descriptor, locker.AuthOp, int) error {
	return errors.New("not implemented")
}

func (q *quotaBackend) Quota(ctx context.Context, desc locker.Descriptor, _ string, _ int) (*locker.QuotaInfo, error) {
	if d, ok := q.delay[desc.Host]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := q.err[desc.Host]; ok {
		return nil, err
	}
	return q.info[desc.Host], nil
}

type fakeMounts struct {
	mounts []LocalMount
	err    error
}

func (f *fakeMounts) LocalMounts() ([]LocalMount, error) {
	return f.mounts, f.err
}

func newAggregatorFixture(t *testing.T, mounts MountLister, backends ...backend.Backend) (*Aggregator, *attachtab.Store) {
	t.Helper()
	store := attachtab.NewStore(filepath.Join(t.TempDir(), "attachtab"))
	agg := NewAggregator(backend.NewRegistry(backends...), store, mounts, 2, 200*time.Millisecond)
	return agg, store
}

func seedAttachtab(t *testing.T, store *attachtab.Store, descs ...locker.Descriptor) {
	t.Helper()
	require.NoError(t, store.Update(func(tab *attachtab.Table) error {
		for i, d := range descs {
			tab.Upsert(&attachtab.Record{
				MountPoint: filepath.Join("/mit", "l"+string(rune('a'+i))),
				Descriptor: d,
			})
		}
		return nil
	}))
}

func TestReportCollectsAllTargets(t *testing.T) {
	nfs := &quotaBackend{
		kind: locker.KindNFS,
		info: map[string]*locker.QuotaInfo{
			"fs.mit.edu": {Used: 100, SoftLimit: 500, HardLimit: 1000, BlockSize: 1024},
		},
	}
	agg, store := newAggregatorFixture(t, nil, nfs)
	seedAttachtab(t, store, locker.Descriptor{Kind: locker.KindNFS, Host: "fs.mit.edu", RemotePath: "/export/u1"})

	records, err := agg.Report(context.Background(), os.Getuid())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Failed())
	assert.Equal(t, uint64(100), records[0].Info.Used)
}

func TestReportMarksUnreachableBackendsFailed(t *testing.T) {
	nfs := &quotaBackend{
		kind: locker.KindNFS,
		info: map[string]*locker.QuotaInfo{"good.mit.edu": {Used: 1}},
		err:  map[string]error{"bad.mit.edu": errors.New("connection refused")},
	}
	agg, store := newAggregatorFixture(t, nil, nfs)
	seedAttachtab(t, store,
		locker.Descriptor{Kind: locker.KindNFS, Host: "good.mit.edu", RemotePath: "/export/a"},
		locker.Descriptor{Kind: locker.KindNFS, Host: "bad.mit.edu", RemotePath: "/export/b"},
	)

	records, err := agg.Report(context.Background(), os.Getuid())
	require.NoError(t, err)
	require.Len(t, records, 2)

	byHost := map[string]Record{}
	for _, r := range records {
		byHost[r.Descriptor.Host] = r
	}
	assert.False(t, byHost["good.mit.edu"].Failed())
	assert.True(t, byHost["bad.mit.edu"].Failed())
}

func TestReportTimesOutSlowBackend(t *testing.T) {
	nfs := &quotaBackend{
		kind:  locker.KindNFS,
		info:  map[string]*locker.QuotaInfo{"fast.mit.edu": {Used: 1}},
		delay: map[string]time.Duration{"slow.mit.edu": 5 * time.Second},
	}
	agg, store := newAggregatorFixture(t, nil, nfs)
	seedAttachtab(t, store,
		locker.Descriptor{Kind: locker.KindNFS, Host: "slow.mit.edu", RemotePath: "/export/a"},
		locker.Descriptor{Kind: locker.KindNFS, Host: "fast.mit.edu", RemotePath: "/export/b"},
	)

	start := time.Now()
	records, err := agg.Report(context.Background(), os.Getuid())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	byHost := map[string]Record{}
	for _, r := range records {
		byHost[r.Descriptor.Host] = r
	}
	assert.True(t, byHost["slow.mit.edu"].Failed())
	assert.False(t, byHost["fast.mit.edu"].Failed())
}

func TestReportIncludesLocalMounts(t *testing.T) {
	ufs := &quotaBackend{kind: locker.KindUFS, info: map[string]*locker.QuotaInfo{"": {Used: 7}}}
	mounts := &fakeMounts{mounts: []LocalMount{{Device: "/dev/sda1", MountPoint: "/", FSType: "ext4"}}}
	agg, _ := newAggregatorFixture(t, mounts, ufs)

	records, err := agg.Report(context.Background(), os.Getuid())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, locker.KindUFS, records[0].Descriptor.Kind)
	assert.Equal(t, "/dev/sda1", records[0].Descriptor.RemotePath)
}

func TestReportSurvivesMountScanFailure(t *testing.T) {
	nfs := &quotaBackend{kind: locker.KindNFS, info: map[string]*locker.QuotaInfo{"fs.mit.edu": {Used: 1}}}
	mounts := &fakeMounts{err: errors.New("mountinfo unreadable")}
	agg, store := newAggregatorFixture(t, mounts, nfs)
	seedAttachtab(t, store, locker.Descriptor{Kind: locker.KindNFS, Host: "fs.mit.edu", RemotePath: "/export/u1"})

	records, err := agg.Report(context.Background(), os.Getuid())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReportTargetQueriesOneFilesystem(t *testing.T) {
	nfs := &quotaBackend{kind: locker.KindNFS, info: map[string]*locker.QuotaInfo{"fs.mit.edu": {Used: 42}}}
	agg, store := newAggregatorFixture(t, nil, nfs)
	seedAttachtab(t, store, locker.Descriptor{Kind: locker.KindNFS, Host: "fs.mit.edu", RemotePath: "/export/u1"})

	rec, err := agg.ReportTarget(context.Background(), "fs.mit.edu:/export/u1", os.Getuid())
	require.NoError(t, err)
	assert.False(t, rec.Failed())
	assert.Equal(t, uint64(42), rec.Info.Used)
	assert.Equal(t, "/mit/la", rec.MountPoint)
}

func TestReportTargetUnresolvable(t *testing.T) {
	agg, _ := newAggregatorFixture(t, nil)

	_, err := agg.ReportTarget(context.Background(), "no-such-token", os.Getuid())
	require.ErrorIs(t, err, locker.ErrUnresolvableTarget)
}

func TestReportRejectsOtherUsersForNonRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root")
	}
	agg, _ := newAggregatorFixture(t, nil)

	_, err := agg.Report(context.Background(), os.Getuid()+1)
	require.ErrorIs(t, err, locker.ErrPermissionDenied)
}

func TestStreamDeliversAnswersAsTheyArrive(t *testing.T) {
	nfs := &quotaBackend{
		kind:  locker.KindNFS,
		info:  map[string]*locker.QuotaInfo{"fast.mit.edu": {Used: 1}},
		delay: map[string]time.Duration{"slow.mit.edu": 5 * time.Second},
	}
	agg, store := newAggregatorFixture(t, nil, nfs)
	seedAttachtab(t, store,
		locker.Descriptor{Kind: locker.KindNFS, Host: "slow.mit.edu", RemotePath: "/export/a"},
		locker.Descriptor{Kind: locker.KindNFS, Host: "fast.mit.edu", RemotePath: "/export/b"},
	)

	ch, err := agg.Stream(context.Background(), os.Getuid())
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "fast.mit.edu", first.Descriptor.Host)
	assert.False(t, first.Failed())

	second := <-ch
	assert.Equal(t, "slow.mit.edu", second.Descriptor.Host)
	assert.True(t, second.Failed())

	_, open := <-ch
	assert.False(t, open)
}
