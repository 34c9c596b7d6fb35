package dcerpc

import (
	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// requestHeaderSize covers the common header plus alloc hint, context and opnum
const requestHeaderSize = HeaderSize + 8

// Request represents an RPC REQUEST fragment
type Request struct {
	Header    CommonHeader
	AllocHint uint32
	ContextID uint16
	Opnum     uint16
	StubData  []byte
}

// Marshal serializes the request
func (r *Request) Marshal() []byte {
	r.Header.FragLength = uint16(requestHeaderSize + len(r.StubData))

	buf := make([]byte, 0, requestHeaderSize+len(r.StubData))
	buf = r.Header.Append(buf)
	buf = encoding.AppendUint32LE(buf, r.AllocHint)
	buf = encoding.AppendUint16LE(buf, r.ContextID)
	buf = encoding.AppendUint16LE(buf, r.Opnum)
	return append(buf, r.StubData...)
}

// buildRequests splits stub data into REQUEST fragments that fit maxFrag
func buildRequests(opnum, contextID uint16, stub []byte, callID uint32, maxFrag int) [][]byte {
	chunk := maxFrag - requestHeaderSize
	if chunk <= 0 {
		chunk = DefaultMaxFrag - requestHeaderSize
	}

	var pdus [][]byte
	remaining := stub
	first := true
	for {
		n := len(remaining)
		if n > chunk {
			n = chunk
		}
		var flags uint8
		if first {
			flags |= PacketFlagFirstFrag
		}
		if n == len(remaining) {
			flags |= PacketFlagLastFrag
		}

		req := Request{
			Header:    newHeader(PacketTypeRequest, flags, callID),
			AllocHint: uint32(len(remaining)),
			ContextID: contextID,
			Opnum:     opnum,
			StubData:  remaining[:n],
		}
		pdus = append(pdus, req.Marshal())

		remaining = remaining[n:]
		first = false
		if flags&PacketFlagLastFrag != 0 {
			return pdus
		}
	}
}

// Response represents an RPC RESPONSE fragment
type Response struct {
	Header      CommonHeader
	AllocHint   uint32
	ContextID   uint16
	CancelCount uint8
	StubData    []byte
}

// Unmarshal deserializes a response
func (r *Response) Unmarshal(buf []byte) error {
	if err := r.Header.Unmarshal(buf); err != nil {
		return err
	}
	if r.Header.FragLength < requestHeaderSize {
		return ErrBufferTooSmall
	}

	r.AllocHint = encoding.Uint32LE(buf[16:20])
	r.ContextID = encoding.Uint16LE(buf[20:22])
	r.CancelCount = buf[22]

	// Auth trailer, if any, sits at the end of the fragment
	end := int(r.Header.FragLength)
	if r.Header.AuthLength > 0 {
		end -= int(r.Header.AuthLength) + 8
		if end < requestHeaderSize {
			return ErrBufferTooSmall
		}
	}
	r.StubData = make([]byte, end-requestHeaderSize)
	copy(r.StubData, buf[requestHeaderSize:end])
	return nil
}

// Fault represents an RPC FAULT response
type Fault struct {
	Header      CommonHeader
	AllocHint   uint32
	ContextID   uint16
	CancelCount uint8
	Status      uint32
}

// Unmarshal deserializes a fault response
func (r *Fault) Unmarshal(buf []byte) error {
	if err := r.Header.Unmarshal(buf); err != nil {
		return err
	}
	if r.Header.FragLength < requestHeaderSize+4 {
		return ErrBufferTooSmall
	}
	r.AllocHint = encoding.Uint32LE(buf[16:20])
	r.ContextID = encoding.Uint16LE(buf[20:22])
	r.CancelCount = buf[22]
	r.Status = encoding.Uint32LE(buf[24:28])
	return nil
}
