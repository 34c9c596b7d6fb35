package dcerpc

import (
	"fmt"
	"sync"

	"github.com/ineffectivecoder/NLGooser/pkg/debug"
)

// Conn carries whole PDUs between client and server
type Conn interface {
	WritePDU(pdu []byte) error
	ReadPDU() ([]byte, error)
	Close() error
}

// MaxResponseSize caps the reassembled stub of a single call
const MaxResponseSize = 4 << 20

// Client represents a DCE/RPC client bound to a single interface
type Client struct {
	mu          sync.Mutex
	conn        Conn
	callID      uint32
	contextID   uint16
	bound       SyntaxID
	maxXmitFrag uint16
	maxRecvFrag uint16
	maxResponse int
	isBound     bool
}

// NewClient creates a new RPC client over conn
func NewClient(conn Conn) *Client {
	return &Client{
		conn:        conn,
		callID:      1,
		maxXmitFrag: DefaultMaxFrag,
		maxRecvFrag: DefaultMaxFrag,
		maxResponse: MaxResponseSize,
	}
}

// Bind binds to an RPC interface
func (c *Client) Bind(iface SyntaxID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}

	req := NewBindRequest(iface, c.contextID, c.nextCallID())
	if err := c.conn.WritePDU(req.Marshal()); err != nil {
		return fmt.Errorf("bind send failed: %w", err)
	}

	response, err := c.conn.ReadPDU()
	if err != nil {
		return fmt.Errorf("bind receive failed: %w", err)
	}

	var header CommonHeader
	if err := header.Unmarshal(response); err != nil {
		return fmt.Errorf("failed to parse response header: %w", err)
	}

	switch header.PacketType {
	case PacketTypeBindAck:
	case PacketTypeBindNak:
		return ErrBindFailed
	default:
		return fmt.Errorf("%w: type %d in reply to bind", ErrUnexpectedPDU, header.PacketType)
	}

	var bindAck BindAck
	if err := bindAck.Unmarshal(response); err != nil {
		return fmt.Errorf("failed to parse bind ack: %w", err)
	}
	if !bindAck.IsAccepted() {
		if len(bindAck.Results) == 0 {
			return fmt.Errorf("%w: no context results", ErrBindFailed)
		}
		return fmt.Errorf("%w: context rejected (reason %d)", ErrBindFailed, bindAck.Results[0].Reason)
	}

	c.bound = iface
	c.maxXmitFrag = bindAck.MaxXmitFrag
	c.maxRecvFrag = bindAck.MaxRecvFrag
	c.isBound = true

	debug.Printf("bound %s v%d.%d (xmit %d, recv %d)\n",
		iface.UUID, iface.Major(), iface.Minor(), c.maxXmitFrag, c.maxRecvFrag)
	return nil
}

// Call makes an RPC call and returns the reassembled response stub
func (c *Client) Call(opnum uint16, stubData []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isBound {
		return nil, ErrNotBound
	}

	callID := c.nextCallID()
	for _, pdu := range buildRequests(opnum, c.contextID, stubData, callID, int(c.maxXmitFrag)) {
		if err := c.conn.WritePDU(pdu); err != nil {
			return nil, fmt.Errorf("call send failed: %w", err)
		}
	}

	var allStubData []byte
	for {
		fragment, err := c.conn.ReadPDU()
		if err != nil {
			return nil, fmt.Errorf("call receive failed: %w", err)
		}

		var header CommonHeader
		if err := header.Unmarshal(fragment); err != nil {
			return nil, fmt.Errorf("failed to parse response header: %w", err)
		}
		if header.CallID != callID {
			return nil, fmt.Errorf("%w: call id %d, expected %d", ErrUnexpectedPDU, header.CallID, callID)
		}

		switch header.PacketType {
		case PacketTypeResponse:
		case PacketTypeFault:
			var fault Fault
			if err := fault.Unmarshal(fragment); err != nil {
				return nil, fmt.Errorf("RPC fault (parse error: %w)", err)
			}
			return nil, &FaultError{Status: fault.Status}
		default:
			return nil, fmt.Errorf("%w: type %d in reply to request", ErrUnexpectedPDU, header.PacketType)
		}

		var resp Response
		if err := resp.Unmarshal(fragment); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if len(allStubData)+len(resp.StubData) > c.maxResponse {
			return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrResponseTooLarge, c.maxResponse)
		}
		allStubData = append(allStubData, resp.StubData...)

		if header.IsLast() {
			return allStubData, nil
		}
	}
}

// nextCallID returns the next call ID
func (c *Client) nextCallID() uint32 {
	id := c.callID
	c.callID++
	return id
}

// IsBound returns true if bound to an interface
func (c *Client) IsBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isBound
}

// BoundInterface returns the bound interface syntax
func (c *Client) BoundInterface() SyntaxID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Close closes the RPC client and its connection. Calling Close twice is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isBound = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
