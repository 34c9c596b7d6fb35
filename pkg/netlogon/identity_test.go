package netlogon

import (
	"errors"
	"strings"
	"testing"

	"github.com/jcmturner/rpc/v2/mstypes"
)

func domainSID(subs ...uint32) *mstypes.RPCSID {
	return &mstypes.RPCSID{
		Revision:            1,
		SubAuthorityCount:   uint8(len(subs)),
		IdentifierAuthority: [6]byte{0, 0, 0, 0, 0, 5},
		SubAuthority:        subs,
	}
}

func strPtr(s string) *string { return &s }

func TestProject(t *testing.T) {
	v := &ValidationRecord{
		EffectiveName:      strPtr("alice"),
		FullName:           strPtr(""),
		HomeDirectoryDrive: strPtr("H:"),
		LogonDomainName:    strPtr("CORP"),
		UserID:             1105,
		PrimaryGroupID:     513,
		GroupIDs: []mstypes.GroupMembership{
			{RelativeID: 513, Attributes: 7},
			{RelativeID: 1120, Attributes: 7},
		},
		UserFlags:      UserFlagExtraSIDs,
		UserSessionKey: UserSessionKey{1, 2, 3},
		LogonDomainID:  domainSID(21, 1000, 2000, 3000),
		ExtraSIDs: []mstypes.KerbSidAndAttributes{
			{SID: *domainSID(21, 9, 9, 9, 1000), Attributes: 7},
			{Attributes: 7},
		},
	}

	attrs, err := Project(v)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	if attrs.UserSID != "S-1-5-21-1000-2000-3000-1105" {
		t.Errorf("user SID = %s", attrs.UserSID)
	}
	if attrs.PrimaryGroupSID != "S-1-5-21-1000-2000-3000-513" {
		t.Errorf("primary group SID = %s", attrs.PrimaryGroupSID)
	}
	wantGroups := []string{
		"S-1-5-21-1000-2000-3000-513",
		"S-1-5-21-1000-2000-3000-1120",
		"S-1-5-21-9-9-9-1000",
	}
	if strings.Join(attrs.GroupSIDs, ",") != strings.Join(wantGroups, ",") {
		t.Errorf("group SIDs = %v", attrs.GroupSIDs)
	}

	// Absent and empty stay distinguishable
	if attrs.FullName == nil || *attrs.FullName != "" {
		t.Errorf("full name = %v, want present and empty", attrs.FullName)
	}
	if attrs.HomeDirectory != nil {
		t.Errorf("home directory = %q, want absent", *attrs.HomeDirectory)
	}
	if attrs.LogonScript != nil {
		t.Error("logon script should be absent")
	}

	if !attrs.LogonTime.IsZero() {
		t.Errorf("unset logon time = %v, want zero", attrs.LogonTime)
	}

	if attrs.SessionKey[0] != 1 || len(attrs.SessionKey) != 16 {
		t.Errorf("session key = %x", attrs.SessionKey)
	}
	if v.LogonDomainID.SubAuthorityCount != 4 || len(v.LogonDomainID.SubAuthority) != 4 {
		t.Error("projection modified the domain SID")
	}

	sum := attrs.Summary()
	if !strings.Contains(sum, `CORP\alice`) || !strings.Contains(sum, "groups=3") {
		t.Errorf("summary = %q", sum)
	}
}

func TestProjectRejectsMissingDomain(t *testing.T) {
	if _, err := Project(&ValidationRecord{UserID: 500}); !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}

	full := domainSID(make([]uint32, maxSubAuthorities)...)
	if _, err := Project(&ValidationRecord{LogonDomainID: full}); !errors.Is(err, ErrMalformed) {
		t.Errorf("full domain SID: got %v, want ErrMalformed", err)
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status uint32
		want   Outcome
	}{
		{StatusSuccess, OutcomeSuccess},
		{StatusNoSuchUser, OutcomeAccountNotFound},
		{StatusWrongPassword, OutcomeInvalidCredentials},
		{StatusLogonFailure, OutcomeInvalidCredentials},
		{StatusInvalidLogonHours, OutcomeInvalidCredentials},
		{StatusInvalidWorkstn, OutcomeInvalidCredentials},
		{StatusPasswordExpired, OutcomeInvalidCredentials},
		{StatusAccountDisabled, OutcomeInvalidCredentials},
		{StatusAccountExpired, OutcomeInvalidCredentials},
		{StatusAccountLockedOut, OutcomeInvalidCredentials},
		{StatusAccessDenied, OutcomeUnmappedRPCError},
		{StatusNoSuchDomain, OutcomeUnmappedRPCError},
		{0xDEADBEEF, OutcomeUnmappedRPCError},
	}
	for _, tt := range tests {
		if got := MapStatus(tt.status); got != tt.want {
			t.Errorf("MapStatus(%#x) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusError(t *testing.T) {
	err := NewStatusError(StatusAccountLockedOut)
	if err.Outcome != OutcomeInvalidCredentials {
		t.Errorf("outcome = %v", err.Outcome)
	}
	if !strings.Contains(err.Error(), "0xC0000234") || !strings.Contains(err.Error(), "LOCKED_OUT") {
		t.Errorf("message = %q", err.Error())
	}
}
