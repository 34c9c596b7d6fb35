// Package netlogon implements the client side of the Netlogon Remote
// Protocol (MS-NRPC) secure channel and uses it to validate NTLM network
// logons against a domain controller.
package netlogon

import (
	"github.com/ineffectivecoder/NLGooser/pkg/dcerpc"
	"github.com/jcmturner/rpc/v2/mstypes"
)

// NetlogonSyntax is the logon interface: 12345678-1234-ABCD-EF00-01234567CFFB v1.0
var NetlogonSyntax = dcerpc.SyntaxID{
	UUID:    dcerpc.MustParseUUID("12345678-1234-abcd-ef00-01234567cffb"),
	Version: 1,
}

// Netlogon opnums
const (
	OpNetrLogonSamLogon       = 2
	OpNetrServerReqChallenge  = 4
	OpNetrServerAuthenticate2 = 15
)

// Logon and validation information levels
const (
	LogonLevelNetwork       uint16 = 2
	ValidationLevelSamInfo  uint16 = 2
	ValidationLevelSamInfo2 uint16 = 3
)

// SecureChannelType identifies the kind of account the channel is built for
type SecureChannelType uint16

const (
	WorkstationSecureChannel SecureChannelType = 2
	ServerSecureChannel      SecureChannelType = 6
)

// Negotiate flags
const (
	NegotiateAccountLockout  uint32 = 0x00000001
	NegotiatePersistentSam   uint32 = 0x00000002
	NegotiateArcfour         uint32 = 0x00000004
	NegotiatePromotionCount  uint32 = 0x00000008
	NegotiateChangelogBDC    uint32 = 0x00000010
	NegotiateFullSyncRepl    uint32 = 0x00000020
	NegotiateMultipleSIDs    uint32 = 0x00000040
	NegotiateRedo            uint32 = 0x00000080
	NegotiatePasswordChange  uint32 = 0x00000100
	NegotiateSendPasswordBDC uint32 = 0x00000200
	NegotiateGenericPassthru uint32 = 0x00000400
	NegotiateConcurrentRPC   uint32 = 0x00000800
	NegotiateAvoidAccountDB  uint32 = 0x00001000
	NegotiateAvoidLSADB      uint32 = 0x00002000
	NegotiateStrongKeys      uint32 = 0x00004000
	NegotiateTransitive      uint32 = 0x00008000
	NegotiateDNSDomainTrusts uint32 = 0x00010000
	NegotiatePasswordSet2    uint32 = 0x00020000
	NegotiateGetDomainInfo   uint32 = 0x00040000
	NegotiateCrossForest     uint32 = 0x00080000
	NegotiateAES             uint32 = 0x01000000
	NegotiateSecureRPC       uint32 = 0x40000000
)

// DefaultNegotiateFlags requests strong (MD5) keys with RC4 and no AES
const DefaultNegotiateFlags uint32 = 0x000FFFFF

// Logon parameter control bits for network logons
const (
	AllowServerTrustAccount      uint32 = 0x00000020
	AllowWorkstationTrustAccount uint32 = 0x00000800
)

// Challenge is an 8-byte client or server challenge
type Challenge [8]byte

// Credential is an 8-byte Netlogon credential
type Credential [8]byte

// SessionKey is the 16-byte secure channel key
type SessionKey [16]byte

// Authenticator is a credential plus the timestamp folded into it
type Authenticator struct {
	Credential Credential
	Timestamp  uint32
}

// LmOwfPassword is a 16-byte one-way function of an LM password
type LmOwfPassword [16]byte

// UserSessionKey is the 16-byte per-logon key echoed in validation data
type UserSessionKey [16]byte

// ChallengeResponse carries an NT or LM challenge-response blob (STRING)
type ChallengeResponse struct {
	Data []byte
}

// LogonIdentity is NETLOGON_LOGON_IDENTITY_INFO
type LogonIdentity struct {
	DomainName       string
	ParameterControl uint32
	LogonID          uint64
	UserName         string
	Workstation      string
}

// NetworkLogonInfo is NETLOGON_NETWORK_INFO
type NetworkLogonInfo struct {
	Identity    LogonIdentity
	LmChallenge Challenge
	NtResponse  ChallengeResponse
	LmResponse  ChallengeResponse
}

// ValidationRecord is NETLOGON_VALIDATION_SAM_INFO2. Strings whose buffer
// pointer was null on the wire are nil.
type ValidationRecord struct {
	LogonTime          mstypes.FileTime
	LogoffTime         mstypes.FileTime
	KickOffTime        mstypes.FileTime
	PasswordLastSet    mstypes.FileTime
	PasswordCanChange  mstypes.FileTime
	PasswordMustChange mstypes.FileTime
	EffectiveName      *string
	FullName           *string
	LogonScript        *string
	ProfilePath        *string
	HomeDirectory      *string
	HomeDirectoryDrive *string
	LogonCount         uint16
	BadPasswordCount   uint16
	UserID             uint32
	PrimaryGroupID     uint32
	GroupIDs           []mstypes.GroupMembership
	UserFlags          uint32
	UserSessionKey     UserSessionKey
	LogonServer        *string
	LogonDomainName    *string
	LogonDomainID      *mstypes.RPCSID
	ExtraSIDs          []mstypes.KerbSidAndAttributes
}

// LogonRequest is the caller-supplied NTLM exchange to validate
type LogonRequest struct {
	Domain           string
	User             string
	Workstation      string
	Challenge        Challenge // the challenge originally sent to the client
	NtResponse       []byte
	LmResponse       []byte
	ParameterControl uint32
	LogonID          uint64
}
