package mount

// Mount protocol procedure numbers (RFC 1813 Appendix I).
const (
	// MountProcNull - Do nothing (connectivity test)
	MountProcNull = 0

	// MountProcMnt - Add mount entry
	MountProcMnt = 1

	// MountProcDump - Return mount entries
	MountProcDump = 2

	// MountProcUmnt - Remove mount entry
	MountProcUmnt = 3

	// MountProcUmntAll - Remove all mount entries
	MountProcUmntAll = 4

	// MountProcExport - Return export list
	MountProcExport = 5
)

// Athena mount protocol extensions for kernel UID mapping. The mapping
// procedures bind (or unbind) a client uid to the credential presented in
// the call, server side.
const (
	// MountProcKUIDMap - Map the calling user onto the server
	MountProcKUIDMap = 7

	// MountProcKUIDUmap - Unmap the calling user
	MountProcKUIDUmap = 8

	// MountProcKUIDPurge - Purge every mapping held by this client host
	MountProcKUIDPurge = 9

	// MountProcKUIDUPurge - Purge every mapping for the calling user
	MountProcKUIDUPurge = 10
)

// Mount status codes returned by mount protocol procedures.
const (
	// MountOK - Success
	MountOK = 0

	// MountErrPerm - Not owner
	MountErrPerm = 1

	// MountErrNoEnt - No such file or directory
	MountErrNoEnt = 2

	// MountErrIO - I/O error
	MountErrIO = 5

	// MountErrAccess - Permission denied
	MountErrAccess = 13

	// MountErrNotDir - Not a directory
	MountErrNotDir = 20

	// MountErrInval - Invalid argument
	MountErrInval = 22

	// MountErrNameTooLong - Filename too long
	MountErrNameTooLong = 63

	// MountErrNotSupp - Operation not supported
	MountErrNotSupp = 10004

	// MountErrServerFault - Server fault
	MountErrServerFault = 10006
)

// statusText maps mount status codes to messages.
var statusText = map[uint32]string{
	MountOK:             "success",
	MountErrPerm:        "not owner",
	MountErrNoEnt:       "no such file or directory",
	MountErrIO:          "I/O error",
	MountErrAccess:      "permission denied",
	MountErrNotDir:      "not a directory",
	MountErrInval:       "invalid argument",
	MountErrNameTooLong: "filename too long",
	MountErrNotSupp:     "operation not supported",
	MountErrServerFault: "server fault",
}

// StatusText returns a message for a mount status code.
func StatusText(status uint32) string {
	if msg, ok := statusText[status]; ok {
		return msg
	}
	return "unknown mount error"
}
