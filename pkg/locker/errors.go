package locker

import "errors"

var (
	// ErrUnresolvableTarget indicates a token matched none of the accepted
	// target shapes, or a path with no attachtab record.
	ErrUnresolvableTarget = errors.New("unresolvable target")

	// ErrAlreadyAttached indicates the mount point is in use by a
	// different target.
	ErrAlreadyAttached = errors.New("already attached")

	// ErrNotAttached indicates no attachtab record exists for the mount
	// point.
	ErrNotAttached = errors.New("not attached")

	// ErrMountFailed indicates the backend mount call failed.
	ErrMountFailed = errors.New("mount failed")

	// ErrPermissionDenied indicates the caller lacks rights for the
	// requested operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBackendAuthFailed indicates a per-target authentication call
	// failed.
	ErrBackendAuthFailed = errors.New("authentication failed")
)
