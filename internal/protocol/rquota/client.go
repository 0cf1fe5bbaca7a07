// Package rquota implements the client side of the remote quota protocol
// served by rquotad on NFS file servers.
package rquota

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hesiodfs/locker/internal/protocol/rpc"
)

// RQUOTAPROC procedure numbers.
const (
	ProcNull     = 0
	ProcGetQuota = 1
)

// Reply status values.
const (
	StatusOK      = 1
	StatusNoQuota = 2
	StatusEPerm   = 3
)

// ErrNoQuota is returned when the server enforces no quota for the user
// on the export.
var ErrNoQuota = fmt.Errorf("no quota for user on this filesystem")

// ErrPermission is returned when the server refuses to disclose the quota.
var ErrPermission = fmt.Errorf("quota query refused by server")

// Quota is the decoded RQUOTAPROC_GETQUOTA result.
type Quota struct {
	BlockSize      uint32
	Active         bool
	BlockHardLimit uint32
	BlockSoftLimit uint32
	CurrentBlocks  uint32
	FileHardLimit  uint32
	FileSoftLimit  uint32
	CurrentFiles   uint32
	BlockTimeLeft  uint32
	FileTimeLeft   uint32
}

// Client talks to rquotad on one NFS server.
type Client struct {
	host    string
	port    uint16
	timeout time.Duration
}

// NewClient creates an rquota client for host. A zero port means the
// portmapper is queried on first use.
func NewClient(host string, port uint16, timeout time.Duration) *Client {
	return &Client{host: host, port: port, timeout: timeout}
}

func (c *Client) resolvePort(ctx context.Context) (uint16, error) {
	if c.port != 0 {
		return c.port, nil
	}
	port, err := rpc.GetPort(ctx, c.host, rpc.ProgramRquota, rpc.RquotaVersion, rpc.ProtocolUDP, c.timeout)
	if err != nil {
		return 0, err
	}
	c.port = port
	return port, nil
}

// getQuotaArgs is the GETQUOTA argument: export path and uid.
type getQuotaArgs struct {
	Pathname string
	UID      uint32
}

// quotaBody is the fixed-size rquota struct that follows an OK status.
type quotaBody struct {
	BlockSize      uint32
	Active         uint32
	BlockHardLimit uint32
	BlockSoftLimit uint32
	CurrentBlocks  uint32
	FileHardLimit  uint32
	FileSoftLimit  uint32
	CurrentFiles   uint32
	BlockTimeLeft  uint32
	FileTimeLeft   uint32
}

const quotaBodySize = 10 * 4

// GetQuota fetches the block quota for uid on the given export path. The
// reply is a status discriminant followed by the quota body only on
// success, so the results are decoded by hand.
func (c *Client) GetQuota(ctx context.Context, pathname string, uid uint32, cred rpc.OpaqueAuth) (*Quota, error) {
	port, err := c.resolvePort(ctx)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(int(port)))
	client := rpc.NewClient("udp", addr, c.timeout)

	args := &getQuotaArgs{Pathname: pathname, UID: uid}
	results, err := client.CallRaw(ctx, rpc.ProgramRquota, rpc.RquotaVersion, ProcGetQuota, cred, args)
	if err != nil {
		return nil, fmt.Errorf("quota for uid %d on %s:%s: %w", uid, c.host, pathname, err)
	}
	if len(results) < 4 {
		return nil, fmt.Errorf("quota for uid %d on %s:%s: short reply (%d bytes)", uid, c.host, pathname, len(results))
	}

	switch status := binary.BigEndian.Uint32(results[:4]); status {
	case StatusOK:
	case StatusNoQuota:
		return nil, fmt.Errorf("quota for uid %d on %s:%s: %w", uid, c.host, pathname, ErrNoQuota)
	case StatusEPerm:
		return nil, fmt.Errorf("quota for uid %d on %s:%s: %w", uid, c.host, pathname, ErrPermission)
	default:
		return nil, fmt.Errorf("quota for uid %d on %s:%s: unknown status %d", uid, c.host, pathname, status)
	}

	body := results[4:]
	if len(body) < quotaBodySize {
		return nil, fmt.Errorf("quota for uid %d on %s:%s: truncated quota body", uid, c.host, pathname)
	}

	var raw quotaBody
	fields := []*uint32{
		&raw.BlockSize, &raw.Active,
		&raw.BlockHardLimit, &raw.BlockSoftLimit, &raw.CurrentBlocks,
		&raw.FileHardLimit, &raw.FileSoftLimit, &raw.CurrentFiles,
		&raw.BlockTimeLeft, &raw.FileTimeLeft,
	}
	for i, f := range fields {
		*f = binary.BigEndian.Uint32(body[i*4 : i*4+4])
	}

	return &Quota{
		BlockSize:      raw.BlockSize,
		Active:         raw.Active != 0,
		BlockHardLimit: raw.BlockHardLimit,
		BlockSoftLimit: raw.BlockSoftLimit,
		CurrentBlocks:  raw.CurrentBlocks,
		FileHardLimit:  raw.FileHardLimit,
		FileSoftLimit:  raw.FileSoftLimit,
		CurrentFiles:   raw.CurrentFiles,
		BlockTimeLeft:  raw.BlockTimeLeft,
		FileTimeLeft:   raw.FileTimeLeft,
	}, nil
}
