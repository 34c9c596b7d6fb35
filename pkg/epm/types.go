// Package epm implements the DCE/RPC endpoint mapper (ept_map) over
// ncacn_ip_tcp, used to find the dynamic port of an RPC interface.
package epm

import (
	"errors"
	"fmt"
	"net"

	"github.com/ineffectivecoder/NLGooser/pkg/dcerpc"
)

// Endpoint mapper opnums
const (
	OpEptMap = 3
)

// Tower floor protocol identifiers
const (
	ProtocolUUID   byte = 0x0d
	ProtocolRPCCO  byte = 0x0b
	ProtocolTCP    byte = 0x07
	ProtocolIP     byte = 0x09
	maxTowersAsked      = 4
	maxFloors           = 16
)

// Endpoint mapper status codes
const (
	StatusOK            uint32 = 0
	StatusNotRegistered uint32 = 0x16c9a0d6
)

// Errors
var (
	ErrNotRegistered = errors.New("endpoint not registered")
	ErrBadTower      = errors.New("malformed protocol tower")
)

// StatusError carries a non-zero ept_map status
type StatusError struct {
	Status uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ept_map returned 0x%08X", e.Status)
}

// Tower is a decoded ncacn_ip_tcp protocol tower
type Tower struct {
	Interface dcerpc.SyntaxID
	Transfer  dcerpc.SyntaxID
	Port      uint16
	IP        net.IP
}
