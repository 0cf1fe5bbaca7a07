package backend

// Mounter abstracts the kernel mount interface so backends can be tested
// without privileges.
type Mounter interface {
	// Mount attaches source at target with the given filesystem type.
	// options is a comma-separated mount option string; empty means
	// defaults.
	Mount(source, target, fstype string, readOnly bool, options string) error

	// Unmount detaches the filesystem at target. Unmounting a path that
	// is not mounted returns an error the caller inspects.
	Unmount(target string) error
}
