package rpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portmapper procedure numbers (RFC 1833).
const (
	PortmapProcNull    = 0
	PortmapProcGetPort = 3
)

// IP protocol numbers used in portmap mappings.
const (
	ProtocolTCP = 6
	ProtocolUDP = 17
)

// PortmapPort is the well-known portmapper port.
const PortmapPort = 111

// getPortArgs is the PMAPPROC_GETPORT argument struct.
type getPortArgs struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// getPortReply is the PMAPPROC_GETPORT result.
type getPortReply struct {
	Port uint32
}

// GetPort asks the portmapper on host for the port of the given program.
// A zero result means the program is not registered.
func GetPort(ctx context.Context, host string, program, version, protocol uint32, timeout time.Duration) (uint16, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(PortmapPort))
	client := NewClient("udp", addr, timeout)

	args := &getPortArgs{
		Program:  program,
		Version:  version,
		Protocol: protocol,
	}
	reply := &getPortReply{}

	if err := client.Call(ctx, ProgramPortmap, PortmapVersion, PortmapProcGetPort, NullAuth(), args, reply); err != nil {
		return 0, fmt.Errorf("portmap lookup on %s: %w", host, err)
	}
	if reply.Port == 0 || reply.Port > 65535 {
		return 0, fmt.Errorf("portmap lookup on %s: program %d version %d not registered", host, program, version)
	}
	return uint16(reply.Port), nil
}
