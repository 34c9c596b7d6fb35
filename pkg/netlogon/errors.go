package netlogon

import (
	"errors"
	"fmt"

	"github.com/ineffectivecoder/NLGooser/pkg/ndr"
)

// Error kinds. Every error returned by a Session wraps exactly one of these.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrTransport      = errors.New("transport error")
	ErrProtocol       = errors.New("protocol error")
	ErrAuthentication = errors.New("authentication failed")
	ErrRPCStatus      = errors.New("unmapped RPC status")
	ErrMalformed      = ndr.ErrMalformed
	ErrSessionState   = errors.New("invalid session state")
)

// Stage names the step of the exchange that failed
type Stage string

const (
	StageConfig       Stage = "config"
	StageBind         Stage = "bind"
	StageChallenge    Stage = "challenge"
	StageAuthenticate Stage = "authenticate"
	StageLogon        Stage = "logon"
)

// Error is a typed failure carrying the target host and stage. Messages
// never contain key material or challenge bytes.
type Error struct {
	Kind  error
	Host  string
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("netlogon %s", e.Stage)
	if e.Host != "" {
		msg += " on " + e.Host
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, host string, stage Stage, err error) *Error {
	return &Error{Kind: kind, Host: host, Stage: stage, Err: err}
}

// classify picks the kind for a failed RPC exchange
func classify(err error) error {
	switch {
	case errors.Is(err, ErrMalformed):
		return ErrMalformed
	default:
		return ErrTransport
	}
}
