package attachtab

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/facebookgo/atomicfile"
	fslock "github.com/ipfs/go-fs-lock"

	"github.com/hesiodfs/locker/pkg/locker"
)

const (
	formatVersion = 1

	// FilePermissions for the attachtab (world readable, owner writable).
	FilePermissions = 0o644
	// DirPermissions for the attachtab directory.
	DirPermissions = 0o755
)

// Store reads and writes the persisted attachtab at a fixed path.
// All methods are safe against concurrent invocations of this program;
// mutation must go through Update.
type Store struct {
	path string
}

// NewStore creates a store for the attachtab at the given path.
// The lock file lives next to the table.
func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Path returns the attachtab file path.
func (s *Store) Path() string {
	return s.path
}

// lockName returns the lock file name within the attachtab directory.
func (s *Store) lockName() string {
	return filepath.Base(s.path) + ".lock"
}

// Load reads the persisted table. A missing file yields an empty table,
// not an error: the attachtab comes into existence on first attach.
func (s *Store) Load() (*Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("read attachtab %s: %w", s.path, err)
	}

	t := &Table{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse attachtab %s: %w", s.path, err)
	}
	if t.Version != formatVersion {
		return nil, fmt.Errorf("attachtab %s: unsupported format version %d", s.path, t.Version)
	}
	for _, rec := range t.Records {
		if _, err := locker.ParseKind(string(rec.Descriptor.Kind)); err != nil {
			return nil, fmt.Errorf("attachtab %s: record %s: %w", s.path, rec.MountPoint, err)
		}
	}
	return t, nil
}

// Save atomically replaces the persisted table (write to temp, then
// rename), so a concurrent Load never observes a half-written file.
func (s *Store) Save(t *Table) error {
	if err := os.MkdirAll(filepath.Dir(s.path), DirPermissions); err != nil {
		return fmt.Errorf("create attachtab directory: %w", err)
	}

	t.Version = formatVersion
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode attachtab: %w", err)
	}

	f, err := atomicfile.New(s.path, FilePermissions)
	if err != nil {
		return fmt.Errorf("stage attachtab %s: %w", s.path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Abort()
		return fmt.Errorf("write attachtab %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit attachtab %s: %w", s.path, err)
	}
	return nil
}

// Lock acquisition retry. The critical section only covers the
// read-modify-write of the table file, so contention is short-lived.
const (
	lockRetryInterval = 50 * time.Millisecond
	lockAcquireLimit  = 5 * time.Second
)

// acquireLock takes the attachtab lock, retrying while another invocation
// holds it. The underlying lock is non-blocking, so waiting is a poll.
func (s *Store) acquireLock() (io.Closer, error) {
	dir := filepath.Dir(s.path)
	deadline := time.Now().Add(lockAcquireLimit)
	for {
		closer, err := fslock.Lock(dir, s.lockName())
		if err == nil {
			return closer, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock attachtab: %w", err)
		}
		time.Sleep(lockRetryInterval)
	}
}

// WithLock runs fn while holding the exclusive inter-process lock that
// serializes attachtab mutations. The lock is released on every exit path.
// It is never held across backend mount or network calls; callers keep the
// critical section to the read-modify-write of the table itself.
func (s *Store) WithLock(fn func() error) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("create attachtab directory: %w", err)
	}

	closer, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	return fn()
}

// Update runs a locked load-mutate-save cycle. If fn returns an error the
// table is not written.
func (s *Store) Update(fn func(*Table) error) error {
	return s.WithLock(func() error {
		t, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		return s.Save(t)
	})
}
