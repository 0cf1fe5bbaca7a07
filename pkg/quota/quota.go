// Package quota aggregates per-backend quota answers into one report.
// Targets come from the attachtab plus the local mount table; each is
// queried through its backend with a bounded worker pool so one slow or
// unreachable server cannot stall the whole report.
package quota

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attach"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// Record is one backend's answer (or failure) for one target.
type Record struct {
	Descriptor locker.Descriptor `json:"descriptor"`
	MountPoint string            `json:"mount_point,omitempty"`
	Info       *locker.QuotaInfo `json:"info,omitempty"`
	Err        error             `json:"-"`
}

// Failed reports whether the query for this target failed.
func (r Record) Failed() bool {
	return r.Err != nil
}

// Aggregator fans quota queries out across backends.
type Aggregator struct {
	backends *backend.Registry
	store    *attachtab.Store
	mounts   MountLister
	workers  int
	timeout  time.Duration
}

// NewAggregator builds an aggregator. workers bounds concurrent backend
// queries; timeout bounds each one.
func NewAggregator(backends *backend.Registry, store *attachtab.Store, mounts MountLister, workers int, timeout time.Duration) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		backends: backends,
		store:    store,
		mounts:   mounts,
		workers:  workers,
		timeout:  timeout,
	}
}

// Stream queries every target for uid and sends one record per target as
// each answer arrives; the channel closes once all targets are answered.
// Unreachable backends produce failed records, not a failed stream; the
// error is non-nil only when no target could be enumerated at all.
//
// Unprivileged callers may only query their own uid.
func (a *Aggregator) Stream(ctx context.Context, uid int) (<-chan Record, error) {
	if os.Geteuid() != 0 && uid != os.Getuid() {
		return nil, fmt.Errorf("%w: only root may query other users' quotas", locker.ErrPermissionDenied)
	}

	targets, err := a.targets()
	if err != nil {
		return nil, err
	}

	// Buffered to the target count so an abandoned consumer never
	// strands a worker goroutine.
	out := make(chan Record, len(targets))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for _, tgt := range targets {
		wg.Add(1)
		go func(tgt target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out <- a.query(ctx, tgt, uid)
		}(tgt)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Report collects the full stream into a slice, in completion order.
func (a *Aggregator) Report(ctx context.Context, uid int) ([]Record, error) {
	ch, err := a.Stream(ctx, uid)
	if err != nil {
		return nil, err
	}

	var records []Record
	for rec := range ch {
		records = append(records, rec)
	}
	return records, nil
}

// ReportTarget resolves one token and queries only that target.
func (a *Aggregator) ReportTarget(ctx context.Context, token string, uid int) (Record, error) {
	if os.Geteuid() != 0 && uid != os.Getuid() {
		return Record{}, fmt.Errorf("%w: only root may query other users' quotas", locker.ErrPermissionDenied)
	}

	table, err := a.store.Load()
	if err != nil {
		return Record{}, err
	}

	desc, err := attach.Resolve(token, table)
	if err != nil {
		return Record{}, err
	}

	tgt := target{desc: desc}
	if rec, ok := table.FindByDescriptor(desc); ok {
		tgt.mountPoint = rec.MountPoint
	}
	return a.query(ctx, tgt, uid), nil
}

// target is one enumerated quota target.
type target struct {
	desc       locker.Descriptor
	mountPoint string
}

// targets enumerates attachtab entries plus local disk mounts,
// deduplicated by descriptor.
func (a *Aggregator) targets() ([]target, error) {
	table, err := a.store.Load()
	if err != nil {
		return nil, err
	}

	seen := make(map[locker.Descriptor]bool)
	var out []target

	add := func(t target) {
		if !seen[t.desc] {
			seen[t.desc] = true
			out = append(out, t)
		}
	}

	for _, rec := range table.Records {
		add(target{desc: rec.Descriptor, mountPoint: rec.MountPoint})
	}

	if a.mounts != nil {
		locals, err := a.mounts.LocalMounts()
		if err != nil {
			// The attachtab targets are still worth reporting.
			logger.Warn("local mount scan failed", logger.KeyError, err.Error())
		}
		for _, m := range locals {
			add(target{
				desc:       locker.Descriptor{Kind: locker.KindUFS, RemotePath: m.Device},
				mountPoint: m.MountPoint,
			})
		}
	}

	return out, nil
}

// query asks one backend with the per-target timeout applied.
func (a *Aggregator) query(ctx context.Context, tgt target, uid int) Record {
	rec := Record{Descriptor: tgt.desc, MountPoint: tgt.mountPoint}

	b, err := a.backends.For(tgt.desc.Kind)
	if err != nil {
		rec.Err = err
		return rec
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type answer struct {
		info *locker.QuotaInfo
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		info, err := b.Quota(callCtx, tgt.desc, tgt.mountPoint, uid)
		ch <- answer{info: info, err: err}
	}()

	// Backends that ignore context cancellation must not stall the
	// report past the timeout; the straggler goroutine is abandoned.
	select {
	case ans := <-ch:
		rec.Info, rec.Err = ans.info, ans.err
	case <-callCtx.Done():
		rec.Err = fmt.Errorf("quota query for %s: %w", tgt.desc, callCtx.Err())
	}

	if rec.Err != nil {
		logger.Warn("quota query failed",
			logger.KeyTarget, tgt.desc.String(),
			logger.KeyError, rec.Err.Error(),
		)
	}
	return rec
}
