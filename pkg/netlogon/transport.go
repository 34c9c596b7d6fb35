package netlogon

import (
	"context"
	"fmt"

	"github.com/ineffectivecoder/NLGooser/pkg/dcerpc"
	"github.com/ineffectivecoder/NLGooser/pkg/debug"
	"github.com/ineffectivecoder/NLGooser/pkg/epm"
)

// Binder opens an RPC association bound to the Netlogon interface
type Binder interface {
	Bind(ctx context.Context, host string) (Caller, error)
}

// RPCBinder binds over ncacn_ip_tcp. A zero Port is resolved through the
// endpoint mapper on the target.
type RPCBinder struct {
	Port      int
	Transport dcerpc.TransportConfig
}

// NewRPCBinder creates a binder from the transport fields of cfg
func NewRPCBinder(cfg *Config) *RPCBinder {
	tc := dcerpc.DefaultTransportConfig()
	if cfg.Timeout > 0 {
		tc.Timeout = cfg.Timeout
	}
	tc.Socks5URL = cfg.Socks5URL
	return &RPCBinder{Port: cfg.Port, Transport: tc}
}

// Bind connects to host and binds the Netlogon interface
func (b *RPCBinder) Bind(ctx context.Context, host string) (Caller, error) {
	port := b.Port
	if port == 0 {
		var err error
		port, err = epm.ResolvePort(ctx, host, NetlogonSyntax, b.Transport)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve netlogon endpoint: %w", err)
		}
	}

	conn, err := dcerpc.Dial(ctx, host, port, b.Transport)
	if err != nil {
		return nil, err
	}

	rpc := dcerpc.NewClient(conn)
	if err := rpc.Bind(NetlogonSyntax); err != nil {
		rpc.Close()
		return nil, fmt.Errorf("failed to bind to netlogon: %w", err)
	}

	debug.Event().Str("host", host).Int("port", port).Msg("netlogon bound")
	return rpc, nil
}
