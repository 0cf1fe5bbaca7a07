// Package attachtab persists the machine-wide table of attached lockers.
//
// The table file on disk is the source of truth. Every mutation goes
// through Store.Update, which holds an exclusive inter-process lock around
// a load-mutate-save cycle and replaces the file atomically, so concurrent
// locker invocations never lose updates or observe a torn table.
package attachtab

import (
	"path/filepath"
	"time"

	"github.com/hesiodfs/locker/pkg/locker"
)

// Record is one attached locker. Records are never mutated in place; a
// remount replaces the record wholesale.
type Record struct {
	MountPoint string            `json:"mount_point"`
	Descriptor locker.Descriptor `json:"descriptor"`
	AttachedAt time.Time         `json:"attached_at"`
	Options    []string          `json:"options,omitempty"`
}

// HasOption reports whether the record carries the given mount option.
func (r *Record) HasOption(opt string) bool {
	for _, o := range r.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Table is the ordered collection of live records. MountPoint is unique
// among them.
type Table struct {
	Version int       `json:"version"`
	Records []*Record `json:"records"`
}

// NewTable returns an empty table at the current format version.
func NewTable() *Table {
	return &Table{Version: formatVersion}
}

// Find returns the record attached at the given mount point.
func (t *Table) Find(mountPoint string) (*Record, bool) {
	mountPoint = filepath.Clean(mountPoint)
	for _, r := range t.Records {
		if r.MountPoint == mountPoint {
			return r, true
		}
	}
	return nil, false
}

// FindByDescriptor returns the first record whose descriptor matches.
func (t *Table) FindByDescriptor(desc locker.Descriptor) (*Record, bool) {
	for _, r := range t.Records {
		if r.Descriptor == desc {
			return r, true
		}
	}
	return nil, false
}

// Upsert inserts the record, replacing any existing record at the same
// mount point. Order of unrelated records is preserved.
func (t *Table) Upsert(rec *Record) {
	rec.MountPoint = filepath.Clean(rec.MountPoint)
	for i, r := range t.Records {
		if r.MountPoint == rec.MountPoint {
			t.Records[i] = rec
			return
		}
	}
	t.Records = append(t.Records, rec)
}

// Remove deletes the record at the given mount point and reports whether
// one existed.
func (t *Table) Remove(mountPoint string) bool {
	mountPoint = filepath.Clean(mountPoint)
	for i, r := range t.Records {
		if r.MountPoint == mountPoint {
			t.Records = append(t.Records[:i], t.Records[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of live records.
func (t *Table) Len() int {
	return len(t.Records)
}
