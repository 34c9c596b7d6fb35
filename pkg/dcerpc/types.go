// Package dcerpc provides a connection-oriented DCE/RPC client (BIND,
// REQUEST/RESPONSE, FAULT) over a framed byte stream such as ncacn_ip_tcp.
package dcerpc

import (
	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// RPC Protocol versions
const (
	RPCVersionMajor = 5
	RPCVersionMinor = 0
)

// PacketType identifies a connection-oriented PDU
type PacketType uint8

const (
	PacketTypeRequest  PacketType = 0
	PacketTypeResponse PacketType = 2
	PacketTypeFault    PacketType = 3
	PacketTypeBind     PacketType = 11
	PacketTypeBindAck  PacketType = 12
	PacketTypeBindNak  PacketType = 13
	PacketTypeShutdown PacketType = 17
)

// Packet flags
const (
	PacketFlagFirstFrag  uint8 = 0x01
	PacketFlagLastFrag   uint8 = 0x02
	PacketFlagDidNotExec uint8 = 0x20
)

// HeaderSize is the size of the common PDU header
const HeaderSize = 16

// DefaultMaxFrag is the fragment size offered in BIND
const DefaultMaxFrag = 4280

// NDR Data Representation (little-endian, ASCII, IEEE float)
const NDRDataRepresentation = 0x00000010

// CommonHeader represents the common RPC header (16 bytes)
type CommonHeader struct {
	Version            uint8
	VersionMinor       uint8
	PacketType         PacketType
	PacketFlags        uint8
	DataRepresentation uint32
	FragLength         uint16
	AuthLength         uint16
	CallID             uint32
}

func newHeader(ptype PacketType, flags uint8, callID uint32) CommonHeader {
	return CommonHeader{
		Version:            RPCVersionMajor,
		VersionMinor:       RPCVersionMinor,
		PacketType:         ptype,
		PacketFlags:        flags,
		DataRepresentation: NDRDataRepresentation,
		CallID:             callID,
	}
}

// Append serializes the header onto buf
func (h *CommonHeader) Append(buf []byte) []byte {
	buf = append(buf, h.Version, h.VersionMinor, byte(h.PacketType), h.PacketFlags)
	buf = encoding.AppendUint32LE(buf, h.DataRepresentation)
	buf = encoding.AppendUint16LE(buf, h.FragLength)
	buf = encoding.AppendUint16LE(buf, h.AuthLength)
	return encoding.AppendUint32LE(buf, h.CallID)
}

// Unmarshal deserializes a common header
func (h *CommonHeader) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrBufferTooSmall
	}
	h.Version = buf[0]
	h.VersionMinor = buf[1]
	h.PacketType = PacketType(buf[2])
	h.PacketFlags = buf[3]
	h.DataRepresentation = encoding.Uint32LE(buf[4:8])
	h.FragLength = encoding.Uint16LE(buf[8:10])
	h.AuthLength = encoding.Uint16LE(buf[10:12])
	h.CallID = encoding.Uint32LE(buf[12:16])
	if int(h.FragLength) < HeaderSize || int(h.FragLength) > len(buf) {
		return ErrBufferTooSmall
	}
	return nil
}

// IsLast reports whether the PDU carries the final fragment
func (h *CommonHeader) IsLast() bool {
	return h.PacketFlags&PacketFlagLastFrag != 0
}
