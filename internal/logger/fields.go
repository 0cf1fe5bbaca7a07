package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that logs from
// the attach, fsid and quota paths can be correlated per target.
const (
	// Operation & target identification
	KeyOperation  = "operation"   // attach, detach, map, unmap, purge, quota
	KeyTarget     = "target"      // target identifier as given on the command line
	KeyMountPoint = "mountpoint"  // local attachment point
	KeyKind       = "kind"        // filesystem kind: afs, nfs, ufs
	KeyHost       = "host"        // remote NFS server hostname
	KeyCell       = "cell"        // AFS cell name
	KeyRemotePath = "remote_path" // path on the remote server / in the cell

	// Identity
	KeyUID      = "uid"      // effective user ID
	KeyUsername = "username" // resolved username

	// Outcome
	KeyError    = "error"    // underlying error message
	KeyDuration = "duration" // elapsed time in milliseconds
)
