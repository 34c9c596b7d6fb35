package dcerpc

import (
	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// BindRequest represents an RPC BIND request with a single presentation context
type BindRequest struct {
	Header         CommonHeader
	MaxXmitFrag    uint16
	MaxRecvFrag    uint16
	AssocGroup     uint32
	ContextID      uint16
	AbstractSyntax SyntaxID
	TransferSyntax SyntaxID
}

// NewBindRequest creates a bind request for an interface
func NewBindRequest(iface SyntaxID, contextID uint16, callID uint32) *BindRequest {
	return &BindRequest{
		Header:         newHeader(PacketTypeBind, PacketFlagFirstFrag|PacketFlagLastFrag, callID),
		MaxXmitFrag:    DefaultMaxFrag,
		MaxRecvFrag:    DefaultMaxFrag,
		ContextID:      contextID,
		AbstractSyntax: iface,
		TransferSyntax: NDRSyntax,
	}
}

// Marshal serializes the bind request
func (r *BindRequest) Marshal() []byte {
	// Header: 16, bind fixed: 12, one context item with one transfer syntax: 44
	r.Header.FragLength = HeaderSize + 12 + 44

	buf := make([]byte, 0, r.Header.FragLength)
	buf = r.Header.Append(buf)
	buf = encoding.AppendUint16LE(buf, r.MaxXmitFrag)
	buf = encoding.AppendUint16LE(buf, r.MaxRecvFrag)
	buf = encoding.AppendUint32LE(buf, r.AssocGroup)
	buf = append(buf, 1, 0, 0, 0) // n_context_elem + reserved

	buf = encoding.AppendUint16LE(buf, r.ContextID)
	buf = append(buf, 1, 0) // n_transfer_syn + reserved
	buf = r.AbstractSyntax.Append(buf)
	return r.TransferSyntax.Append(buf)
}

// BindAckResult represents the result of a context negotiation
type BindAckResult struct {
	Result         uint16
	Reason         uint16
	TransferSyntax SyntaxID
}

// BindAck represents an RPC BIND_ACK response
type BindAck struct {
	Header      CommonHeader
	MaxXmitFrag uint16
	MaxRecvFrag uint16
	AssocGroup  uint32
	SecAddr     string
	Results     []BindAckResult
}

// Unmarshal deserializes a bind ack response
func (r *BindAck) Unmarshal(buf []byte) error {
	if err := r.Header.Unmarshal(buf); err != nil {
		return err
	}
	buf = buf[:r.Header.FragLength]
	if len(buf) < HeaderSize+10 {
		return ErrBufferTooSmall
	}

	r.MaxXmitFrag = encoding.Uint16LE(buf[16:18])
	r.MaxRecvFrag = encoding.Uint16LE(buf[18:20])
	r.AssocGroup = encoding.Uint32LE(buf[20:24])
	secAddrLen := int(encoding.Uint16LE(buf[24:26]))
	offset := 26

	if offset+secAddrLen > len(buf) {
		return ErrBufferTooSmall
	}
	if secAddrLen > 0 {
		r.SecAddr = string(buf[offset : offset+secAddrLen-1]) // drop NUL
	}
	offset += secAddrLen

	// Align to 4 bytes
	if offset%4 != 0 {
		offset += 4 - (offset % 4)
	}
	if offset+4 > len(buf) {
		return ErrBufferTooSmall
	}

	numResults := int(buf[offset])
	offset += 4

	r.Results = r.Results[:0]
	for i := 0; i < numResults; i++ {
		if offset+24 > len(buf) {
			return ErrBufferTooSmall
		}
		result := BindAckResult{
			Result: encoding.Uint16LE(buf[offset:]),
			Reason: encoding.Uint16LE(buf[offset+2:]),
		}
		if err := result.TransferSyntax.Unmarshal(buf[offset+4:]); err != nil {
			return err
		}
		offset += 24
		r.Results = append(r.Results, result)
	}
	return nil
}

// IsAccepted returns true if the bind was accepted
func (r *BindAck) IsAccepted() bool {
	return len(r.Results) > 0 && r.Results[0].Result == 0
}
