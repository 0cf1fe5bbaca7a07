// Package backend implements the per-filesystem-kind capability providers
// behind attach, detach, authentication mapping and quota queries.
package backend

import (
	"context"
	"fmt"

	"github.com/hesiodfs/locker/pkg/locker"
)

// AttachOptions carries caller choices that affect how a target is
// attached.
type AttachOptions struct {
	// ReadOnly attaches the target without write access.
	ReadOnly bool

	// Force replaces a conflicting attachment point where the backend
	// supports it.
	Force bool
}

// Backend is the capability surface one filesystem kind provides. Every
// method takes the resolved descriptor; backends hold no per-target state.
type Backend interface {
	// Kind reports which filesystem kind this backend serves.
	Kind() locker.Kind

	// Attach makes the target available at mountPoint.
	Attach(ctx context.Context, desc locker.Descriptor, mountPoint string, opts AttachOptions) error

	// Detach removes the attachment at mountPoint. A target that is
	// already gone is success.
	Detach(ctx context.Context, desc locker.Descriptor, mountPoint string) error

	// Authenticate applies one credential-mapping operation for uid
	// against the target.
	Authenticate(ctx context.Context, desc locker.Descriptor, op locker.AuthOp, uid int) error

	// Quota reports uid's usage and limits on the target.
	Quota(ctx context.Context, desc locker.Descriptor, mountPoint string, uid int) (*locker.QuotaInfo, error)
}

// Registry dispatches operations to the backend serving a kind.
type Registry struct {
	backends map[locker.Kind]Backend
}

// NewRegistry builds a registry over the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[locker.Kind]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

// For returns the backend serving kind.
func (r *Registry) For(kind locker.Kind) (Backend, error) {
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("no backend for filesystem kind %q", kind)
	}
	return b, nil
}
