// Package rpc implements a minimal SunRPC (ONC RPC, RFC 5531) client used
// to talk to portmap, mountd and rquotad on NFS file servers.
package rpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"
)

// maxUDPReply bounds a single UDP reply datagram.
const maxUDPReply = 65507

// maxFragment bounds one TCP record-marking fragment we are willing to read.
const maxFragment = 1 << 20

// Client issues SunRPC calls to a single remote program endpoint.
// A Client is cheap; one is created per exchange.
type Client struct {
	network string // "tcp" or "udp"
	addr    string // host:port
	timeout time.Duration
}

// NewClient creates a client for the given endpoint. timeout bounds the
// whole exchange (dial, send, receive) when the context carries no earlier
// deadline.
func NewClient(network, addr string, timeout time.Duration) *Client {
	return &Client{network: network, addr: addr, timeout: timeout}
}

// Call performs one RPC exchange: marshal call + args, send, receive and
// decode the reply into reply (nil for void results).
func (c *Client) Call(ctx context.Context, program, version, procedure uint32, cred OpaqueAuth, args, reply any) error {
	xid := rand.Uint32()

	call := &CallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       cred,
		Verf:       NullAuth(),
	}

	payload, err := EncodeCall(call, args)
	if err != nil {
		return err
	}

	raw, err := c.exchange(ctx, payload)
	if err != nil {
		return err
	}

	return DecodeReply(raw, xid, reply)
}

// exchange dials the endpoint, sends one call payload and returns the raw
// reply bytes.
func (c *Client) exchange(ctx context.Context, payload []byte) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, c.network, c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", c.network, c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	var raw []byte
	switch c.network {
	case "tcp":
		raw, err = c.exchangeTCP(conn, payload)
	default:
		raw, err = c.exchangeUDP(conn, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.network, c.addr, err)
	}
	return raw, nil
}

// CallRaw performs one RPC exchange and returns the undecoded procedure
// results. Callers use it for replies whose shape depends on a leading
// discriminant.
func (c *Client) CallRaw(ctx context.Context, program, version, procedure uint32, cred OpaqueAuth, args any) ([]byte, error) {
	xid := rand.Uint32()

	call := &CallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       cred,
		Verf:       NullAuth(),
	}

	payload, err := EncodeCall(call, args)
	if err != nil {
		return nil, err
	}

	raw, err := c.exchange(ctx, payload)
	if err != nil {
		return nil, err
	}
	return DecodeReplyHeader(raw, xid)
}

// exchangeTCP sends the payload with RFC 5531 record marking and
// reassembles the reply fragments.
func (c *Client) exchangeTCP(conn net.Conn, payload []byte) ([]byte, error) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 0x80000000|uint32(len(payload))) // last fragment

	if _, err := conn.Write(append(header, payload...)); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	var reply []byte
	for {
		var fragHeader [4]byte
		if _, err := io.ReadFull(conn, fragHeader[:]); err != nil {
			return nil, fmt.Errorf("read fragment header: %w", err)
		}
		marker := binary.BigEndian.Uint32(fragHeader[:])
		size := marker & 0x7fffffff
		if size > maxFragment {
			return nil, fmt.Errorf("reply fragment too large: %d bytes", size)
		}

		frag := make([]byte, size)
		if _, err := io.ReadFull(conn, frag); err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		reply = append(reply, frag...)

		if marker&0x80000000 != 0 {
			return reply, nil
		}
	}
}

// exchangeUDP sends the payload as one datagram and reads one reply.
func (c *Client) exchangeUDP(conn net.Conn, payload []byte) ([]byte, error) {
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	buf := make([]byte, maxUDPReply)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return buf[:n], nil
}
