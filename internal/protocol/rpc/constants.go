package rpc

// RPC program numbers for the services the locker tools talk to.
const (
	// ProgramPortmap is the port mapper program number (RFC 1833)
	ProgramPortmap = 100000

	// ProgramMount is the Mount protocol program number (RFC 1813 Appendix I)
	ProgramMount = 100005

	// ProgramRquota is the remote quota program number
	ProgramRquota = 100011
)

// Program versions.
const (
	PortmapVersion = 2
	MountVersion   = 1
	RquotaVersion  = 1
)

// RPC message types
const (
	// RPCCall indicates an RPC call message
	RPCCall = 0

	// RPCReply indicates an RPC reply message
	RPCReply = 1
)

// RPCVersion is the only SunRPC protocol version in use.
const RPCVersion = 2

// RPC reply states
const (
	// RPCMsgAccepted indicates the RPC call was accepted
	RPCMsgAccepted = 0

	// RPCMsgDenied indicates the RPC call was denied
	RPCMsgDenied = 1
)

// RPC accept status
const (
	// RPCSuccess indicates successful RPC execution
	RPCSuccess = 0

	// RPCProgUnavail indicates the program is not exported
	RPCProgUnavail = 1

	// RPCProgMismatch indicates program version mismatch
	RPCProgMismatch = 2

	// RPCProcUnavail indicates the procedure is unavailable
	RPCProcUnavail = 3
)

// Authentication flavors
const (
	// AuthNull carries no credential
	AuthNull = 0

	// AuthUnix carries uid/gid credentials (RFC 5531 Appendix A)
	AuthUnix = 1
)
