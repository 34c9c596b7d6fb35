package netlogon

import (
	"fmt"

	"github.com/ineffectivecoder/NLGooser/pkg/ndr"
)

// ServerReqChallengeRequest is the NetrServerReqChallenge (opnum 4) input
//
//	NTSTATUS NetrServerReqChallenge(
//	  [in, unique, string] LOGONSRV_HANDLE PrimaryName,
//	  [in, string] wchar_t* ComputerName,
//	  [in] PNETLOGON_CREDENTIAL ClientChallenge,
//	  [out] PNETLOGON_CREDENTIAL ServerChallenge);
type ServerReqChallengeRequest struct {
	PrimaryName     string
	ComputerName    string
	ClientChallenge Challenge
}

// MarshalNDR encodes the request stub
func (q *ServerReqChallengeRequest) MarshalNDR(w *ndr.Writer) {
	writeOptionalName(w, q.PrimaryName)
	w.WriteVaryingString(q.ComputerName, true)
	w.WriteFixed(q.ClientChallenge[:])
}

// ServerReqChallengeResponse is the NetrServerReqChallenge output
type ServerReqChallengeResponse struct {
	ServerChallenge Challenge
	Status          uint32
}

// UnmarshalNDR decodes the response stub
func (p *ServerReqChallengeResponse) UnmarshalNDR(r *ndr.Reader) error {
	if err := r.ReadFixedInto(p.ServerChallenge[:]); err != nil {
		return err
	}
	status, err := r.ReadUint32()
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

// ServerAuthenticate2Request is the NetrServerAuthenticate2 (opnum 15) input
//
//	NTSTATUS NetrServerAuthenticate2(
//	  [in, unique, string] LOGONSRV_HANDLE PrimaryName,
//	  [in, string] wchar_t* AccountName,
//	  [in] NETLOGON_SECURE_CHANNEL_TYPE SecureChannelType,
//	  [in, string] wchar_t* ComputerName,
//	  [in] PNETLOGON_CREDENTIAL ClientCredential,
//	  [out] PNETLOGON_CREDENTIAL ServerCredential,
//	  [in, out] ULONG* NegotiateFlags);
type ServerAuthenticate2Request struct {
	PrimaryName       string
	AccountName       string
	SecureChannelType SecureChannelType
	ComputerName      string
	ClientCredential  Credential
	NegotiateFlags    uint32
}

// MarshalNDR encodes the request stub
func (q *ServerAuthenticate2Request) MarshalNDR(w *ndr.Writer) {
	writeOptionalName(w, q.PrimaryName)
	w.WriteVaryingString(q.AccountName, true)
	w.WriteUint16(uint16(q.SecureChannelType))
	w.WriteVaryingString(q.ComputerName, true)
	w.WriteFixed(q.ClientCredential[:])
	w.WriteUint32(q.NegotiateFlags)
}

// ServerAuthenticate2Response is the NetrServerAuthenticate2 output
type ServerAuthenticate2Response struct {
	ServerCredential Credential
	NegotiateFlags   uint32
	Status           uint32
}

// UnmarshalNDR decodes the response stub
func (p *ServerAuthenticate2Response) UnmarshalNDR(r *ndr.Reader) error {
	if err := r.ReadFixedInto(p.ServerCredential[:]); err != nil {
		return err
	}
	var err error
	if p.NegotiateFlags, err = r.ReadUint32(); err != nil {
		return err
	}
	if p.Status, err = r.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// SamLogonRequest is the NetrLogonSamLogon (opnum 2) input
//
//	NTSTATUS NetrLogonSamLogon(
//	  [in, unique, string] LOGONSRV_HANDLE LogonServer,
//	  [in, string, unique] wchar_t* ComputerName,
//	  [in, unique] PNETLOGON_AUTHENTICATOR Authenticator,
//	  [in, out, unique] PNETLOGON_AUTHENTICATOR ReturnAuthenticator,
//	  [in] NETLOGON_LOGON_INFO_CLASS LogonLevel,
//	  [in, switch_is(LogonLevel)] PNETLOGON_LEVEL LogonInformation,
//	  [in] NETLOGON_VALIDATION_INFO_CLASS ValidationLevel,
//	  [out, switch_is(ValidationLevel)] PNETLOGON_VALIDATION ValidationInformation,
//	  [out] UCHAR* Authoritative);
type SamLogonRequest struct {
	LogonServer         string
	ComputerName        string
	Authenticator       Authenticator
	ReturnAuthenticator Authenticator
	LogonLevel          uint16
	LogonInformation    *NetworkLogonInfo
	ValidationLevel     uint16
}

// MarshalNDR encodes the request stub
func (q *SamLogonRequest) MarshalNDR(w *ndr.Writer) {
	writeOptionalName(w, q.LogonServer)
	writeOptionalName(w, q.ComputerName)

	w.WriteReferent(true)
	q.Authenticator.MarshalNDR(w)
	w.WriteReferent(true)
	q.ReturnAuthenticator.MarshalNDR(w)

	w.WriteUint16(q.LogonLevel)
	// NETLOGON_LEVEL union tag
	w.WriteUint16(q.LogonLevel)
	if w.WriteReferent(q.LogonInformation != nil) {
		q.LogonInformation.MarshalNDR(w)
		w.Flush()
	}

	w.WriteUint16(q.ValidationLevel)
}

// SamLogonResponse is the NetrLogonSamLogon output
type SamLogonResponse struct {
	ReturnAuthenticator *Authenticator
	ValidationLevel     uint16
	Validation          *ValidationRecord
	Authoritative       uint8
	Status              uint32
}

// UnmarshalNDR decodes the response stub
func (p *SamLogonResponse) UnmarshalNDR(r *ndr.Reader) error {
	present, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if present {
		p.ReturnAuthenticator = &Authenticator{}
		if err := p.ReturnAuthenticator.UnmarshalNDR(r); err != nil {
			return err
		}
	}

	// NETLOGON_VALIDATION union tag and arm
	if p.ValidationLevel, err = r.ReadUint16(); err != nil {
		return err
	}
	if present, err = r.ReadReferent(); err != nil {
		return err
	}
	if present {
		v := &ValidationRecord{}
		switch p.ValidationLevel {
		case ValidationLevelSamInfo:
			err = v.unmarshal(r, false)
		case ValidationLevelSamInfo2:
			err = v.unmarshal(r, true)
		default:
			return fmt.Errorf("%w: unsupported validation level %d", ErrMalformed, p.ValidationLevel)
		}
		if err != nil {
			return err
		}
		if err := r.Resolve(); err != nil {
			return err
		}
		p.Validation = v
	}

	if p.Authoritative, err = r.ReadUint8(); err != nil {
		return err
	}
	if p.Status, err = r.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// Caller issues one RPC call on a bound Netlogon association
type Caller interface {
	Call(opnum uint16, stub []byte) ([]byte, error)
	Close() error
}

// invoke marshals in, performs the call and unmarshals into out
func invoke(c Caller, opnum uint16, in ndr.Marshaler, out ndr.Unmarshaler) error {
	w := ndr.NewWriter()
	in.MarshalNDR(w)
	w.Flush()
	if err := w.Err(); err != nil {
		return err
	}

	resp, err := c.Call(opnum, w.Bytes())
	if err != nil {
		return err
	}
	r := ndr.NewReader(resp)
	if err := out.UnmarshalNDR(r); err != nil {
		return err
	}
	return r.Resolve()
}
