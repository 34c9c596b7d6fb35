package epm

import (
	"context"
	"fmt"

	"github.com/ineffectivecoder/NLGooser/pkg/dcerpc"
	"github.com/ineffectivecoder/NLGooser/pkg/debug"
)

// Caller issues RPC calls on a bound endpoint mapper association
type Caller interface {
	Call(opnum uint16, stub []byte) ([]byte, error)
}

// Client represents an endpoint mapper client
type Client struct {
	rpc Caller
}

// NewClient wraps an RPC client already bound to the endpoint mapper
func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc}
}

// Map asks the endpoint mapper for the TCP port serving iface
func (c *Client) Map(iface dcerpc.SyntaxID) (uint16, error) {
	resp, err := c.rpc.Call(OpEptMap, encodeMap(iface))
	if err != nil {
		return 0, fmt.Errorf("ept_map failed: %w", err)
	}

	towers, err := decodeMap(resp)
	if err != nil {
		return 0, fmt.Errorf("ept_map failed: %w", err)
	}

	for _, t := range towers {
		if t.Interface.UUID == iface.UUID && t.Port != 0 {
			return t.Port, nil
		}
	}
	return 0, ErrNotRegistered
}

// ResolvePort connects to the endpoint mapper on host and returns the
// dynamic TCP port of iface.
func ResolvePort(ctx context.Context, host string, iface dcerpc.SyntaxID, config dcerpc.TransportConfig) (int, error) {
	conn, err := dcerpc.Dial(ctx, host, dcerpc.EndpointMapperPort, config)
	if err != nil {
		return 0, err
	}

	rpc := dcerpc.NewClient(conn)
	defer rpc.Close()

	if err := rpc.Bind(dcerpc.EPMSyntax); err != nil {
		return 0, fmt.Errorf("failed to bind to endpoint mapper: %w", err)
	}

	port, err := NewClient(rpc).Map(iface)
	if err != nil {
		return 0, err
	}

	debug.Event().Str("host", host).Str("interface", iface.UUID.String()).Uint16("port", port).Msg("endpoint resolved")
	return int(port), nil
}
