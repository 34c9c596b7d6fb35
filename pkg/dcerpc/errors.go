package dcerpc

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrBufferTooSmall   = errors.New("buffer too small")
	ErrBindFailed       = errors.New("bind failed")
	ErrNotBound         = errors.New("not bound to interface")
	ErrClosed           = errors.New("connection closed")
	ErrUnexpectedPDU    = errors.New("unexpected PDU")
	ErrResponseTooLarge = errors.New("response too large")
)

// Common RPC fault status codes
const (
	FaultAccessDenied        uint32 = 0x00000005
	FaultInvalidParameter    uint32 = 0x00000057
	FaultOpRangeError        uint32 = 0x1C010002
	FaultUnknownInterface    uint32 = 0x1C010003
	FaultProtocolError       uint32 = 0x1C01000B
	FaultInvalidTag          uint32 = 0x1C000006
	FaultBadStubData         uint32 = 0x000006F7
	FaultEndpointNotRegister uint32 = 0x000006D9
)

// FaultError is returned when the server answers a call with a FAULT PDU
type FaultError struct {
	Status uint32
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("RPC fault: %s (0x%08X)", FaultName(e.Status), e.Status)
}

// FaultName returns a short name for an RPC fault status
func FaultName(status uint32) string {
	switch status {
	case FaultAccessDenied:
		return "access denied"
	case FaultInvalidParameter:
		return "invalid parameter"
	case FaultOpRangeError:
		return "nca_s_op_rng_error"
	case FaultUnknownInterface:
		return "nca_s_unk_if"
	case FaultProtocolError:
		return "nca_s_proto_error"
	case FaultInvalidTag:
		return "nca_s_fault_invalid_tag"
	case FaultBadStubData:
		return "rpc_x_bad_stub_data"
	case FaultEndpointNotRegister:
		return "ept_s_not_registered"
	default:
		return "unknown"
	}
}
