package netlogon

import (
	"fmt"
	"time"

	"github.com/jcmturner/rpc/v2/mstypes"
)

// User flags returned in validation data
const (
	UserFlagGuest           uint32 = 0x00000001
	UserFlagNoEncryption    uint32 = 0x00000002
	UserFlagUsedLMPassword  uint32 = 0x00000008
	UserFlagExtraSIDs       uint32 = 0x00000020
	UserFlagSubauthSession  uint32 = 0x00000040
	UserFlagServerTrustAcct uint32 = 0x00000080
	UserFlagNTLMv2Enabled   uint32 = 0x00000100
	UserFlagResourceGroups  uint32 = 0x00000200
	UserFlagProfilePathSet  uint32 = 0x00000400
	UserFlagNTv2            uint32 = 0x00000800
	UserFlagLMv2            uint32 = 0x00001000
	UserFlagNTLMv2          uint32 = 0x00002000
)

// AccountAttributes is the normalized identity of a validated user. Pointer
// fields are nil when the server sent no buffer for them.
type AccountAttributes struct {
	AccountName      *string
	FullName         *string
	LogonScript      *string
	ProfilePath      *string
	HomeDirectory    *string
	HomeDrive        *string
	LogonServer      *string
	LogonDomain      *string
	DomainSID        string
	UserSID          string
	PrimaryGroupSID  string
	GroupSIDs        []string
	UserFlags        uint32
	LogonCount       uint16
	BadPasswordCount uint16
	LogonTime        time.Time
	PasswordLastSet  time.Time
	SessionKey       []byte
}

// fileTime converts a FILETIME, mapping the unset value to the zero time
func fileTime(ft mstypes.FileTime) time.Time {
	if ft.LowDateTime == 0 && ft.HighDateTime == 0 {
		return time.Time{}
	}
	return ft.Time()
}

// withRID returns a copy of domain extended by one sub-authority
func withRID(domain *mstypes.RPCSID, rid uint32) string {
	sid := mstypes.RPCSID{
		Revision:            domain.Revision,
		SubAuthorityCount:   domain.SubAuthorityCount + 1,
		IdentifierAuthority: domain.IdentifierAuthority,
		SubAuthority:        append(append([]uint32(nil), domain.SubAuthority...), rid),
	}
	return sid.String()
}

// Project maps a validation record into account attributes. Group SIDs are
// the domain SID combined with each group RID followed by the extra SIDs.
func Project(v *ValidationRecord) (*AccountAttributes, error) {
	if v.LogonDomainID == nil {
		return nil, fmt.Errorf("%w: validation record has no logon domain SID", ErrMalformed)
	}
	if int(v.LogonDomainID.SubAuthorityCount) >= maxSubAuthorities {
		return nil, fmt.Errorf("%w: logon domain SID cannot take a RID", ErrMalformed)
	}

	attrs := &AccountAttributes{
		AccountName:      v.EffectiveName,
		FullName:         v.FullName,
		LogonScript:      v.LogonScript,
		ProfilePath:      v.ProfilePath,
		HomeDirectory:    v.HomeDirectory,
		HomeDrive:        v.HomeDirectoryDrive,
		LogonServer:      v.LogonServer,
		LogonDomain:      v.LogonDomainName,
		DomainSID:        v.LogonDomainID.String(),
		UserSID:          withRID(v.LogonDomainID, v.UserID),
		PrimaryGroupSID:  withRID(v.LogonDomainID, v.PrimaryGroupID),
		UserFlags:        v.UserFlags,
		LogonCount:       v.LogonCount,
		BadPasswordCount: v.BadPasswordCount,
		LogonTime:        fileTime(v.LogonTime),
		PasswordLastSet:  fileTime(v.PasswordLastSet),
		SessionKey:       append([]byte(nil), v.UserSessionKey[:]...),
	}

	for _, g := range v.GroupIDs {
		attrs.GroupSIDs = append(attrs.GroupSIDs, withRID(v.LogonDomainID, g.RelativeID))
	}
	for i := range v.ExtraSIDs {
		sid := &v.ExtraSIDs[i].SID
		if sid.Revision == 0 && len(sid.SubAuthority) == 0 {
			continue // null SID pointer
		}
		attrs.GroupSIDs = append(attrs.GroupSIDs, sid.String())
	}
	return attrs, nil
}

// optional returns the value of an optional field, or "<absent>"
func optional(s *string) string {
	if s == nil {
		return "<absent>"
	}
	return *s
}

// Summary renders the attributes for display
func (a *AccountAttributes) Summary() string {
	return fmt.Sprintf("%s\\%s (%s) sid=%s primary=%s groups=%d flags=0x%08X",
		optional(a.LogonDomain), optional(a.AccountName), optional(a.FullName),
		a.UserSID, a.PrimaryGroupSID, len(a.GroupSIDs), a.UserFlags)
}
