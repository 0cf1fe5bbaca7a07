package fsid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
	"github.com/hesiodfs/locker/pkg/locker/attach"
	"github.com/hesiodfs/locker/pkg/locker/attachtab"
	"github.com/hesiodfs/locker/pkg/locker/backend"
)

// ExtraCellsEnv lists additional AFS cells, space separated, included
// under -a alongside the configured ones.
const ExtraCellsEnv = "FSID_EXTRA_CELLS"

// ErrFatalInit means the runner could not be set up at all, as opposed
// to individual targets failing. It maps to ExitFatal.
var ErrFatalInit = errors.New("fsid initialization failed")

// Exit codes. Fatal initialization failures map to ExitFatal before a
// Runner exists; per-target outcomes map through Result.ExitCode.
const (
	ExitOK     = 0
	ExitFatal  = 1
	ExitFailed = 2
)

// Runner executes a parsed invocation against the backends.
type Runner struct {
	backends   *backend.Registry
	store      *attachtab.Store
	timeout    time.Duration
	extraCells []string
	uid        int
}

// NewRunner builds a runner. extraCells come from configuration; the
// environment list is merged at run time. timeout bounds each per-target
// call.
func NewRunner(backends *backend.Registry, store *attachtab.Store, timeout time.Duration, extraCells []string, uid int) *Runner {
	return &Runner{
		backends:   backends,
		store:      store,
		timeout:    timeout,
		extraCells: extraCells,
		uid:        uid,
	}
}

// Outcome is the result of one per-target call.
type Outcome struct {
	Descriptor locker.Descriptor
	Op         locker.AuthOp
	Err        error
}

// Result accumulates per-target outcomes across the whole invocation.
// Explicit targets and best-effort (-a) targets count separately: any
// explicit failure fails the invocation, while -a needs only one success.
type Result struct {
	Outcomes []Outcome

	explicitFailed    int
	bestEffortTried   int
	bestEffortSucceed int

	Errors *multierror.Error
}

// ExitCode maps the accumulated outcomes to the command exit code.
func (r *Result) ExitCode() int {
	if r.explicitFailed > 0 {
		return ExitFailed
	}
	if r.bestEffortTried > 0 && r.bestEffortSucceed == 0 {
		return ExitFailed
	}
	return ExitOK
}

// Run executes every step in order. Failures never short-circuit; every
// target is attempted and failures are accumulated.
func (r *Runner) Run(ctx context.Context, inv *Invocation) (*Result, error) {
	table, err := r.store.Load()
	if err != nil {
		// Without the attachtab no target set can be computed.
		return nil, fmt.Errorf("%w: load attachtab: %v", ErrFatalInit, err)
	}

	res := &Result{}
	for _, step := range inv.Steps {
		targets, err := r.expand(step, table)
		if err != nil {
			res.record(step, Outcome{Op: step.Op, Err: err})
			continue
		}
		for _, desc := range targets {
			res.record(step, r.apply(ctx, step.Op, desc))
		}
	}
	return res, nil
}

// record files one outcome under the step's accounting rules.
func (res *Result) record(step Step, out Outcome) {
	res.Outcomes = append(res.Outcomes, out)
	if out.Err == nil {
		if step.BestEffort {
			res.bestEffortTried++
			res.bestEffortSucceed++
		}
		return
	}

	res.Errors = multierror.Append(res.Errors, out.Err)
	if step.BestEffort {
		res.bestEffortTried++
	} else {
		res.explicitFailed++
	}
}

// expand turns one step into its concrete target descriptors.
func (r *Runner) expand(step Step, table *attachtab.Table) ([]locker.Descriptor, error) {
	switch step.Kind {
	case TargetFS:
		desc, err := attach.Resolve(step.Token, table)
		if err != nil {
			return nil, err
		}
		return []locker.Descriptor{desc}, nil

	case TargetHost:
		return []locker.Descriptor{{Kind: locker.KindNFS, Host: step.Token}}, nil

	case TargetCell:
		return []locker.Descriptor{{Kind: locker.KindAFS, Host: step.Token}}, nil

	case TargetAll:
		return r.allTargets(table, step.Op), nil

	default:
		return nil, fmt.Errorf("unknown target kind %d", step.Kind)
	}
}

// allTargets collects every authenticable attached target, deduplicated
// by descriptor. The extra cells only join for map and unmap; purges are
// scoped to what is actually attached.
func (r *Runner) allTargets(table *attachtab.Table, op locker.AuthOp) []locker.Descriptor {
	seen := make(map[locker.Descriptor]bool)
	var out []locker.Descriptor

	add := func(desc locker.Descriptor) {
		if !seen[desc] {
			seen[desc] = true
			out = append(out, desc)
		}
	}

	for _, rec := range table.Records {
		// Local filesystems have no authentication service.
		if rec.Descriptor.Kind == locker.KindUFS {
			continue
		}
		add(rec.Descriptor)
	}

	if op == locker.OpMapUser || op == locker.OpUnmapUser {
		for _, cell := range r.extraCells {
			add(locker.Descriptor{Kind: locker.KindAFS, Host: cell})
		}
		for _, cell := range strings.Fields(os.Getenv(ExtraCellsEnv)) {
			add(locker.Descriptor{Kind: locker.KindAFS, Host: cell})
		}
	}

	return out
}

// apply performs one authentication call with the per-target timeout.
func (r *Runner) apply(ctx context.Context, op locker.AuthOp, desc locker.Descriptor) Outcome {
	out := Outcome{Descriptor: desc, Op: op}

	b, err := r.backends.For(desc.Kind)
	if err != nil {
		out.Err = err
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := b.Authenticate(callCtx, desc, op, r.uid); err != nil {
		out.Err = fmt.Errorf("%s %s: %w", op, desc, err)
		logger.Warn("authentication call failed",
			logger.KeyOperation, op.String(),
			logger.KeyTarget, desc.String(),
			logger.KeyError, err.Error(),
		)
		return out
	}

	logger.Debug("authentication call succeeded",
		logger.KeyOperation, op.String(),
		logger.KeyTarget, desc.String(),
		logger.KeyUID, r.uid,
	)
	return out
}
