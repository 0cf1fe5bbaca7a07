// Package mount implements the client side of the NFS mount protocol
// (RFC 1813 Appendix I) plus the Athena UID-mapping extensions used by
// fsid against NFS servers.
package mount

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hesiodfs/locker/internal/protocol/rpc"
)

// Client talks to mountd on one NFS server.
type Client struct {
	host    string
	port    uint16
	timeout time.Duration
}

// NewClient creates a mount protocol client for host. A zero port means
// the portmapper is queried on first use.
func NewClient(host string, port uint16, timeout time.Duration) *Client {
	return &Client{host: host, port: port, timeout: timeout}
}

// resolvePort returns the mountd port, asking the portmapper if needed.
func (c *Client) resolvePort(ctx context.Context) (uint16, error) {
	if c.port != 0 {
		return c.port, nil
	}
	port, err := rpc.GetPort(ctx, c.host, rpc.ProgramMount, rpc.MountVersion, rpc.ProtocolUDP, c.timeout)
	if err != nil {
		return 0, err
	}
	c.port = port
	return port, nil
}

// call performs one mount program procedure with AUTH_UNIX credentials.
func (c *Client) call(ctx context.Context, procedure uint32, cred rpc.OpaqueAuth, args, reply any) error {
	client, err := c.rpcClient(ctx)
	if err != nil {
		return err
	}
	return client.Call(ctx, rpc.ProgramMount, rpc.MountVersion, procedure, cred, args, reply)
}

func (c *Client) rpcClient(ctx context.Context) (*rpc.Client, error) {
	port, err := c.resolvePort(ctx)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(c.host, strconv.Itoa(int(port)))
	return rpc.NewClient("udp", addr, c.timeout), nil
}

// mountArgs is the MNT argument: the export directory path.
type mountArgs struct {
	DirPath string
}

// fhSize is the fixed file handle size in mount protocol version 1.
const fhSize = 32

// Mount asks the server for the export's root file handle. It validates
// that the export exists and that this client may reach it. The reply is
// a status discriminant followed by the handle only on success, so the
// results are decoded by hand.
func (c *Client) Mount(ctx context.Context, dirPath string, cred rpc.OpaqueAuth) ([]byte, error) {
	client, err := c.rpcClient(ctx)
	if err != nil {
		return nil, err
	}

	args := &mountArgs{DirPath: dirPath}
	results, err := client.CallRaw(ctx, rpc.ProgramMount, rpc.MountVersion, MountProcMnt, cred, args)
	if err != nil {
		return nil, fmt.Errorf("mount %s:%s: %w", c.host, dirPath, err)
	}
	if len(results) < 4 {
		return nil, fmt.Errorf("mount %s:%s: short reply (%d bytes)", c.host, dirPath, len(results))
	}

	status := binary.BigEndian.Uint32(results[:4])
	if status != MountOK {
		return nil, fmt.Errorf("mount %s:%s: %s", c.host, dirPath, StatusText(status))
	}
	if len(results) < 4+fhSize {
		return nil, fmt.Errorf("mount %s:%s: truncated file handle", c.host, dirPath)
	}

	fh := make([]byte, fhSize)
	copy(fh, results[4:4+fhSize])
	return fh, nil
}

// Unmount removes this client's mount entry for the export. Servers treat
// an unknown entry as success, so the call is idempotent.
func (c *Client) Unmount(ctx context.Context, dirPath string, cred rpc.OpaqueAuth) error {
	args := &mountArgs{DirPath: dirPath}
	if err := c.call(ctx, MountProcUmnt, cred, args, nil); err != nil {
		return fmt.Errorf("unmount %s:%s: %w", c.host, dirPath, err)
	}
	return nil
}

// kuidArgs carries the uid being mapped or unmapped.
type kuidArgs struct {
	UID uint32
}

// kuidReply is the status result of a UID-mapping procedure.
type kuidReply struct {
	Status uint32
}

// MapUser binds the calling credential to uid on the server.
func (c *Client) MapUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error {
	return c.kuidCall(ctx, MountProcKUIDMap, "map", uid, cred)
}

// UnmapUser removes the calling user's binding on the server.
func (c *Client) UnmapUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error {
	return c.kuidCall(ctx, MountProcKUIDUmap, "unmap", uid, cred)
}

// PurgeHost removes every mapping the server holds for this client host.
func (c *Client) PurgeHost(ctx context.Context, cred rpc.OpaqueAuth) error {
	reply := &kuidReply{}
	if err := c.call(ctx, MountProcKUIDPurge, cred, nil, reply); err != nil {
		return fmt.Errorf("purge mappings on %s: %w", c.host, err)
	}
	if reply.Status != MountOK {
		return fmt.Errorf("purge mappings on %s: %s", c.host, StatusText(reply.Status))
	}
	return nil
}

// PurgeUser removes every mapping for uid on the server.
func (c *Client) PurgeUser(ctx context.Context, uid uint32, cred rpc.OpaqueAuth) error {
	return c.kuidCall(ctx, MountProcKUIDUPurge, "purge user", uid, cred)
}

func (c *Client) kuidCall(ctx context.Context, procedure uint32, verb string, uid uint32, cred rpc.OpaqueAuth) error {
	args := &kuidArgs{UID: uid}
	reply := &kuidReply{}
	if err := c.call(ctx, procedure, cred, args, reply); err != nil {
		return fmt.Errorf("%s uid %d on %s: %w", verb, uid, c.host, err)
	}
	if reply.Status != MountOK {
		return fmt.Errorf("%s uid %d on %s: %s", verb, uid, c.host, StatusText(reply.Status))
	}
	return nil
}
