package dcerpc

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

func TestParseUUID(t *testing.T) {
	uuid, err := ParseUUID("12345678-1234-abcd-ef00-01234567cffb")
	if err != nil {
		t.Fatalf("failed to parse valid UUID: %v", err)
	}
	if str := uuid.String(); str != "12345678-1234-abcd-ef00-01234567cffb" {
		t.Errorf("expected 12345678-1234-abcd-ef00-01234567cffb, got %s", str)
	}

	// Wire order swaps the first three groups
	if uuid[0] != 0x78 || uuid[4] != 0x34 || uuid[6] != 0xcd || uuid[8] != 0xef {
		t.Errorf("unexpected wire layout: %x", uuid[:])
	}

	uuid2, err := ParseUUID("123456781234abcdef0001234567cffb")
	if err != nil {
		t.Fatalf("failed to parse UUID without dashes: %v", err)
	}
	if !bytes.Equal(uuid[:], uuid2[:]) {
		t.Error("UUIDs should be equal regardless of dash format")
	}
}

func TestParseUUIDInvalid(t *testing.T) {
	if _, err := ParseUUID("c681d488-d850"); err == nil {
		t.Error("expected error for invalid UUID length")
	}
	if _, err := ParseUUID("zzzzzzzz-d850-11d0-8c52-00c04fd90f7e"); err == nil {
		t.Error("expected error for invalid hex characters")
	}
}

func TestSyntaxIDVersion(t *testing.T) {
	s := SyntaxID{UUID: EPMSyntax.UUID, Version: 0x00020003}
	if s.Major() != 3 || s.Minor() != 2 {
		t.Errorf("Major/Minor = %d/%d, want 3/2", s.Major(), s.Minor())
	}
	if data := s.Append(nil); len(data) != 20 {
		t.Errorf("expected 20 bytes, got %d", len(data))
	}
}

func TestCommonHeaderRoundTrip(t *testing.T) {
	header := newHeader(PacketTypeBind, PacketFlagFirstFrag|PacketFlagLastFrag, 7)
	header.FragLength = 16

	data := header.Append(nil)
	if len(data) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(data))
	}

	var got CommonHeader
	if err := got.Unmarshal(data); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got != header {
		t.Errorf("got %+v, want %+v", got, header)
	}
}

func TestCommonHeaderUnmarshalTooShort(t *testing.T) {
	var header CommonHeader
	if err := header.Unmarshal(make([]byte, 10)); err == nil {
		t.Error("expected error for buffer too short")
	}

	// Fragment length beyond the buffer
	buf := make([]byte, 16)
	encoding.PutUint16LE(buf[8:10], 64)
	if err := header.Unmarshal(buf); err == nil {
		t.Error("expected error for truncated fragment")
	}
}

func TestBindRequestLayout(t *testing.T) {
	iface := SyntaxID{UUID: MustParseUUID("12345678-1234-abcd-ef00-01234567cffb"), Version: 1}
	data := NewBindRequest(iface, 0, 1).Marshal()

	if len(data) != 72 {
		t.Fatalf("bind length = %d, want 72", len(data))
	}
	if encoding.Uint16LE(data[8:10]) != 72 {
		t.Errorf("frag length = %d", encoding.Uint16LE(data[8:10]))
	}
	if !bytes.Equal(data[32:48], iface.UUID[:]) {
		t.Errorf("abstract syntax = %x", data[32:48])
	}
	if !bytes.Equal(data[52:68], NDRSyntax.UUID[:]) {
		t.Errorf("transfer syntax = %x", data[52:68])
	}
}

func TestBuildRequestsFragments(t *testing.T) {
	stub := bytes.Repeat([]byte{0x5a}, 100)
	pdus := buildRequests(2, 0, stub, 9, requestHeaderSize+40)
	if len(pdus) != 3 {
		t.Fatalf("got %d fragments, want 3", len(pdus))
	}

	var joined []byte
	for i, pdu := range pdus {
		var h CommonHeader
		if err := h.Unmarshal(pdu); err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		first := h.PacketFlags&PacketFlagFirstFrag != 0
		if first != (i == 0) || h.IsLast() != (i == len(pdus)-1) {
			t.Errorf("fragment %d flags = %#x", i, h.PacketFlags)
		}
		if encoding.Uint16LE(pdu[22:24]) != 2 {
			t.Errorf("fragment %d opnum = %d", i, encoding.Uint16LE(pdu[22:24]))
		}
		joined = append(joined, pdu[requestHeaderSize:]...)
	}
	if !bytes.Equal(joined, stub) {
		t.Error("reassembled stub differs")
	}

	if pdus := buildRequests(2, 0, nil, 1, DefaultMaxFrag); len(pdus) != 1 {
		t.Errorf("empty stub produced %d fragments", len(pdus))
	}
}

// scriptConn replays canned server PDUs and records what the client sends
type scriptConn struct {
	sent    [][]byte
	replies [][]byte
	closed  int
}

func (s *scriptConn) WritePDU(pdu []byte) error {
	s.sent = append(s.sent, pdu)
	return nil
}

func (s *scriptConn) ReadPDU() ([]byte, error) {
	if len(s.replies) == 0 {
		return nil, errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptConn) Close() error {
	s.closed++
	return nil
}

func bindAckPDU(callID uint32, result uint16) []byte {
	body := encoding.AppendUint16LE(nil, 2048)
	body = encoding.AppendUint16LE(body, 2048)
	body = encoding.AppendUint32LE(body, 0x1234)
	body = encoding.AppendUint16LE(body, 4)
	body = append(body, '1', '3', '5', 0)
	body = append(body, 0, 0) // align to 4
	body = append(body, 1, 0, 0, 0)
	body = encoding.AppendUint16LE(body, result)
	body = encoding.AppendUint16LE(body, 0)
	body = NDRSyntax.Append(body)

	h := newHeader(PacketTypeBindAck, PacketFlagFirstFrag|PacketFlagLastFrag, callID)
	h.FragLength = uint16(HeaderSize + len(body))
	return append(h.Append(nil), body...)
}

func responsePDU(callID uint32, flags uint8, stub []byte) []byte {
	h := newHeader(PacketTypeResponse, flags, callID)
	h.FragLength = uint16(requestHeaderSize + len(stub))
	buf := h.Append(nil)
	buf = encoding.AppendUint32LE(buf, uint32(len(stub)))
	buf = append(buf, 0, 0, 0, 0)
	return append(buf, stub...)
}

func faultPDU(callID uint32, status uint32) []byte {
	h := newHeader(PacketTypeFault, PacketFlagFirstFrag|PacketFlagLastFrag, callID)
	h.FragLength = 32
	buf := h.Append(nil)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0)
	buf = encoding.AppendUint32LE(buf, status)
	return append(buf, 0, 0, 0, 0)
}

func TestClientBindAndCall(t *testing.T) {
	conn := &scriptConn{replies: [][]byte{
		bindAckPDU(1, 0),
		responsePDU(2, PacketFlagFirstFrag, []byte{1, 2, 3}),
		responsePDU(2, PacketFlagLastFrag, []byte{4, 5}),
	}}
	c := NewClient(conn)

	if _, err := c.Call(4, nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("Call before Bind: got %v, want ErrNotBound", err)
	}

	if err := c.Bind(EPMSyntax); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if !c.IsBound() || c.BoundInterface() != EPMSyntax {
		t.Fatal("client not bound to EPM")
	}
	if c.maxXmitFrag != 2048 {
		t.Errorf("maxXmitFrag = %d, want 2048", c.maxXmitFrag)
	}

	stub, err := c.Call(3, []byte{0xaa})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !bytes.Equal(stub, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("stub = %x", stub)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	c.Close()
	if conn.closed != 1 {
		t.Errorf("conn closed %d times, want 1", conn.closed)
	}
}

func TestClientBindRejected(t *testing.T) {
	c := NewClient(&scriptConn{replies: [][]byte{bindAckPDU(1, 2)}})
	if err := c.Bind(EPMSyntax); !errors.Is(err, ErrBindFailed) {
		t.Errorf("Bind: got %v, want ErrBindFailed", err)
	}
}

func TestClientFault(t *testing.T) {
	c := NewClient(&scriptConn{replies: [][]byte{
		bindAckPDU(1, 0),
		faultPDU(2, FaultOpRangeError),
	}})
	if err := c.Bind(EPMSyntax); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	_, err := c.Call(99, nil)
	var fault *FaultError
	if !errors.As(err, &fault) {
		t.Fatalf("Call: got %v, want *FaultError", err)
	}
	if fault.Status != FaultOpRangeError {
		t.Errorf("fault status = %#x", fault.Status)
	}
}

func TestClientCapsReassembledResponse(t *testing.T) {
	conn := &scriptConn{replies: [][]byte{bindAckPDU(1, 0)}}
	for i := 0; i < 4; i++ {
		conn.replies = append(conn.replies, responsePDU(2, 0, make([]byte, 1000)))
	}
	c := NewClient(conn)
	c.maxResponse = 2500
	if err := c.Bind(EPMSyntax); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if _, err := c.Call(3, nil); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("Call: got %v, want ErrResponseTooLarge", err)
	}
	if len(conn.replies) != 1 {
		t.Errorf("%d fragments left unread, want 1", len(conn.replies))
	}
	if NewClient(conn).maxResponse != MaxResponseSize {
		t.Error("default response cap not applied")
	}
}

func TestClientRejectsWrongCallID(t *testing.T) {
	c := NewClient(&scriptConn{replies: [][]byte{
		bindAckPDU(1, 0),
		responsePDU(7, PacketFlagFirstFrag|PacketFlagLastFrag, nil),
	}})
	c.Bind(EPMSyntax)
	if _, err := c.Call(0, nil); !errors.Is(err, ErrUnexpectedPDU) {
		t.Errorf("Call: got %v, want ErrUnexpectedPDU", err)
	}
}

func TestTCPConnFraming(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tc := NewTCPConn(client, time.Second)
	defer tc.Close()

	want := responsePDU(1, PacketFlagFirstFrag|PacketFlagLastFrag, []byte("stub"))
	go func() {
		// Split the PDU across writes to exercise ReadFull
		server.Write(want[:5])
		server.Write(want[5:])
	}()

	got, err := tc.ReadPDU()
	if err != nil {
		t.Fatalf("ReadPDU: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadPDU = %x, want %x", got, want)
	}

	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		server.Write(buf[:n])
	}()
	if err := tc.WritePDU(want); err != nil {
		t.Fatalf("WritePDU: %v", err)
	}
	echo, err := tc.ReadPDU()
	if err != nil || !bytes.Equal(echo, want) {
		t.Errorf("echo = %x, %v", echo, err)
	}

	tc.Close()
	if _, err := tc.ReadPDU(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadPDU after Close: got %v, want ErrClosed", err)
	}
}
