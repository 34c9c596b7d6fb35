package netlogon

import "fmt"

// NTSTATUS values returned by the logon calls
const (
	StatusSuccess           uint32 = 0x00000000
	StatusAccessDenied      uint32 = 0xC0000022
	StatusNoSuchUser        uint32 = 0xC0000064
	StatusWrongPassword     uint32 = 0xC000006A
	StatusLogonFailure      uint32 = 0xC000006D
	StatusAccountRestrict   uint32 = 0xC000006E
	StatusInvalidLogonHours uint32 = 0xC000006F
	StatusInvalidWorkstn    uint32 = 0xC0000070
	StatusPasswordExpired   uint32 = 0xC0000071
	StatusAccountDisabled   uint32 = 0xC0000072
	StatusNoSuchDomain      uint32 = 0xC00000DF
	StatusInvalidInfoClass  uint32 = 0xC0000003
	StatusNoLogonServers    uint32 = 0xC000005E
	StatusNoTrustSAMAccount uint32 = 0xC000018B
	StatusAccountExpired    uint32 = 0xC0000193
	StatusAccountLockedOut  uint32 = 0xC0000234
	StatusDowngradeDetected uint32 = 0xC0000388
)

// Outcome classifies a SamLogon status
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAccountNotFound
	OutcomeInvalidCredentials
	OutcomeUnmappedRPCError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeAccountNotFound:
		return "AccountNotFound"
	case OutcomeInvalidCredentials:
		return "InvalidCredentials"
	default:
		return "UnmappedRpcError"
	}
}

// MapStatus translates a SamLogon status. Account-state failures (hours,
// workstation, expiry, disabled, lockout) collapse into InvalidCredentials;
// StatusError keeps the raw code for callers that need to tell them apart.
func MapStatus(status uint32) Outcome {
	switch status {
	case StatusSuccess:
		return OutcomeSuccess
	case StatusNoSuchUser:
		return OutcomeAccountNotFound
	case StatusWrongPassword,
		StatusLogonFailure,
		StatusInvalidLogonHours,
		StatusInvalidWorkstn,
		StatusPasswordExpired,
		StatusAccountDisabled,
		StatusAccountExpired,
		StatusAccountLockedOut:
		return OutcomeInvalidCredentials
	default:
		return OutcomeUnmappedRPCError
	}
}

// StatusName returns a human-readable name for the status
func StatusName(status uint32) string {
	switch status {
	case StatusSuccess:
		return "STATUS_SUCCESS"
	case StatusAccessDenied:
		return "STATUS_ACCESS_DENIED"
	case StatusNoSuchUser:
		return "STATUS_NO_SUCH_USER"
	case StatusWrongPassword:
		return "STATUS_WRONG_PASSWORD"
	case StatusLogonFailure:
		return "STATUS_LOGON_FAILURE"
	case StatusAccountRestrict:
		return "STATUS_ACCOUNT_RESTRICTION"
	case StatusInvalidLogonHours:
		return "STATUS_INVALID_LOGON_HOURS"
	case StatusInvalidWorkstn:
		return "STATUS_INVALID_WORKSTATION"
	case StatusPasswordExpired:
		return "STATUS_PASSWORD_EXPIRED"
	case StatusAccountDisabled:
		return "STATUS_ACCOUNT_DISABLED"
	case StatusNoSuchDomain:
		return "STATUS_NO_SUCH_DOMAIN"
	case StatusInvalidInfoClass:
		return "STATUS_INVALID_INFO_CLASS"
	case StatusNoLogonServers:
		return "STATUS_NO_LOGON_SERVERS"
	case StatusNoTrustSAMAccount:
		return "STATUS_NO_TRUST_SAM_ACCOUNT"
	case StatusAccountExpired:
		return "STATUS_ACCOUNT_EXPIRED"
	case StatusAccountLockedOut:
		return "STATUS_ACCOUNT_LOCKED_OUT"
	case StatusDowngradeDetected:
		return "STATUS_DOWNGRADE_DETECTED"
	default:
		return "UNKNOWN"
	}
}

// StatusError wraps a non-success NTSTATUS returned by the server
type StatusError struct {
	Status  uint32
	Outcome Outcome
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("NT status error: 0x%08X (%s)", e.Status, StatusName(e.Status))
}

// NewStatusError creates a StatusError with its mapped outcome
func NewStatusError(status uint32) *StatusError {
	return &StatusError{Status: status, Outcome: MapStatus(status)}
}
