package rpc

import (
	"bytes"
	"fmt"
	"os"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// CallMessage is the SunRPC call header (RFC 5531 §9).
type CallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// ReplyHeader is the fixed prefix of an accepted SunRPC reply.
type ReplyHeader struct {
	XID        uint32
	MsgType    uint32 // 1 = REPLY
	ReplyState uint32 // 0 = MSG_ACCEPTED
	Verf       OpaqueAuth
	AcceptStat uint32 // 0 = SUCCESS
	// Procedure results follow
}

// OpaqueAuth is an RPC authentication blob.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// authUnixBody is the AUTH_UNIX credential body (RFC 5531 Appendix A).
type authUnixBody struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// NullAuth returns an empty AUTH_NULL credential.
func NullAuth() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

// UnixAuth builds an AUTH_UNIX credential for the given identity.
func UnixAuth(uid, gid uint32, gids []uint32) (OpaqueAuth, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	// AUTH_UNIX machine names are capped at 255 octets
	if len(hostname) > 255 {
		hostname = hostname[:255]
	}
	if gids == nil {
		gids = []uint32{}
	}

	body := authUnixBody{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: hostname,
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &body); err != nil {
		return OpaqueAuth{}, fmt.Errorf("marshal AUTH_UNIX credential: %w", err)
	}
	return OpaqueAuth{Flavor: AuthUnix, Body: buf.Bytes()}, nil
}

// EncodeCall serializes a call message followed by its XDR-encoded
// arguments. A nil args encodes a void argument list.
func EncodeCall(call *CallMessage, args any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, call); err != nil {
		return nil, fmt.Errorf("marshal RPC call header: %w", err)
	}
	if args != nil {
		if _, err := xdr.Marshal(&buf, args); err != nil {
			return nil, fmt.Errorf("marshal RPC call arguments: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeReplyHeader parses an accepted reply header, validates the XID
// against the originating call, and returns the undecoded procedure
// results.
func DecodeReplyHeader(data []byte, xid uint32) ([]byte, error) {
	r := bytes.NewReader(data)

	hdr := &ReplyHeader{}
	consumed, err := xdr.Unmarshal(r, hdr)
	if err != nil {
		return nil, fmt.Errorf("unmarshal RPC reply header: %w", err)
	}

	if hdr.XID != xid {
		return nil, fmt.Errorf("RPC reply XID mismatch: sent %d, got %d", xid, hdr.XID)
	}
	if hdr.MsgType != RPCReply {
		return nil, fmt.Errorf("expected REPLY (1), got %d", hdr.MsgType)
	}
	if hdr.ReplyState != RPCMsgAccepted {
		return nil, fmt.Errorf("RPC call denied by server (state %d)", hdr.ReplyState)
	}
	if hdr.AcceptStat != RPCSuccess {
		return nil, fmt.Errorf("RPC call not executed: accept status %d", hdr.AcceptStat)
	}

	return data[consumed:], nil
}

// DecodeReply parses an accepted reply and unmarshals the procedure
// results into reply (which may be nil for void results).
func DecodeReply(data []byte, xid uint32, reply any) error {
	results, err := DecodeReplyHeader(data, xid)
	if err != nil {
		return err
	}
	if reply != nil {
		if _, err := xdr.Unmarshal(bytes.NewReader(results), reply); err != nil {
			return fmt.Errorf("unmarshal RPC results: %w", err)
		}
	}
	return nil
}
