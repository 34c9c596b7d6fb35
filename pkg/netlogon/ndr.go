package netlogon

import (
	"fmt"

	"github.com/ineffectivecoder/NLGooser/internal/encoding"
	"github.com/ineffectivecoder/NLGooser/pkg/ndr"
	"github.com/jcmturner/rpc/v2/mstypes"
)

// maxSubAuthorities is the largest sub-authority count a SID may carry
const maxSubAuthorities = 15

// MarshalNDR encodes the authenticator
func (a *Authenticator) MarshalNDR(w *ndr.Writer) {
	w.Align(4)
	w.WriteFixed(a.Credential[:])
	w.WriteUint32(a.Timestamp)
}

// UnmarshalNDR decodes the authenticator
func (a *Authenticator) UnmarshalNDR(r *ndr.Reader) error {
	if err := r.Align(4); err != nil {
		return err
	}
	if err := r.ReadFixedInto(a.Credential[:]); err != nil {
		return err
	}
	ts, err := r.ReadUint32()
	if err != nil {
		return err
	}
	a.Timestamp = ts
	return nil
}

// MarshalNDR encodes the 16-byte block
func (p *LmOwfPassword) MarshalNDR(w *ndr.Writer) {
	w.WriteFixed(p[:])
}

// UnmarshalNDR decodes the 16-byte block
func (p *LmOwfPassword) UnmarshalNDR(r *ndr.Reader) error {
	return r.ReadFixedInto(p[:])
}

// MarshalNDR encodes the 16-byte block
func (k *UserSessionKey) MarshalNDR(w *ndr.Writer) {
	w.WriteFixed(k[:])
}

// UnmarshalNDR decodes the 16-byte block
func (k *UserSessionKey) UnmarshalNDR(r *ndr.Reader) error {
	return r.ReadFixedInto(k[:])
}

// IsZero reports whether the key is all zero bytes
func (k *UserSessionKey) IsZero() bool {
	return *k == UserSessionKey{}
}

// MarshalNDR encodes the STRING header and queues the bytes. Data longer
// than 65535 bytes fails the writer and is sent as an empty STRING.
func (c *ChallengeResponse) MarshalNDR(w *ndr.Writer) {
	if len(c.Data) > 0xFFFF {
		w.Fail(fmt.Errorf("%w: STRING of %d bytes exceeds 65535", ErrMalformed, len(c.Data)))
		(&ChallengeResponse{}).MarshalNDR(w)
		return
	}
	n := uint16(len(c.Data))
	w.WriteUint16(n) // Length
	w.WriteUint16(n) // MaximumLength
	if w.WriteReferent(len(c.Data) > 0) {
		data := c.Data
		w.Defer(func(w *ndr.Writer) {
			w.WriteVaryingBytes(data, uint32(len(data)))
		})
	}
}

// UnmarshalNDR decodes the STRING header and queues the bytes
func (c *ChallengeResponse) UnmarshalNDR(r *ndr.Reader) error {
	length, err := r.ReadUint16()
	if err != nil {
		return err
	}
	maxLength, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if length > maxLength {
		return fmt.Errorf("%w: STRING length %d exceeds maximum %d", ErrMalformed, length, maxLength)
	}
	present, err := r.ReadReferent()
	if err != nil {
		return err
	}

	c.Data = nil
	if present {
		r.Defer(func(r *ndr.Reader) error {
			data, err := r.ReadVaryingBytes()
			if err != nil {
				return err
			}
			if len(data) != int(length) {
				return fmt.Errorf("%w: STRING carries %d bytes, header says %d", ErrMalformed, len(data), length)
			}
			c.Data = data
			return nil
		})
	}
	return nil
}

// writeUnicodeString encodes an RPC_UNICODE_STRING. An empty string is
// sent with a null buffer pointer, as is one too long for the header.
func writeUnicodeString(w *ndr.Writer, s string) {
	units := encoding.ToUTF16(s)
	if len(units)*2 > 0xFFFF {
		w.Fail(fmt.Errorf("%w: unicode string of %d units exceeds 65535 bytes", ErrMalformed, len(units)))
		units = nil
	}
	n := uint16(len(units) * 2)
	w.WriteUint16(n)
	w.WriteUint16(n)
	if w.WriteReferent(len(units) > 0) {
		w.Defer(func(w *ndr.Writer) {
			w.WriteVaryingUnits(units, uint32(len(units)))
		})
	}
}

// unicodeStringFits reports whether s fits the 16-bit byte length of an
// RPC_UNICODE_STRING
func unicodeStringFits(s string) bool {
	return len(encoding.ToUTF16(s))*2 <= 0xFFFF
}

// readUnicodeString decodes an RPC_UNICODE_STRING. dst stays nil when the
// buffer pointer is null.
func readUnicodeString(r *ndr.Reader, dst **string) error {
	length, err := r.ReadUint16()
	if err != nil {
		return err
	}
	maxLength, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if length > maxLength || length%2 != 0 {
		return fmt.Errorf("%w: unicode string length %d/%d", ErrMalformed, length, maxLength)
	}
	present, err := r.ReadReferent()
	if err != nil {
		return err
	}

	*dst = nil
	if present {
		r.Defer(func(r *ndr.Reader) error {
			units, err := r.ReadVaryingUnits()
			if err != nil {
				return err
			}
			if len(units)*2 != int(length) {
				return fmt.Errorf("%w: unicode string carries %d units, header says %d bytes", ErrMalformed, len(units), length)
			}
			s := encoding.FromUTF16(units)
			*dst = &s
			return nil
		})
	}
	return nil
}

// writeOptionalName encodes a [unique, string] wchar_t* parameter
func writeOptionalName(w *ndr.Writer, s string) {
	if w.WriteReferent(s != "") {
		w.WriteVaryingString(s, true)
	}
}

// MarshalNDR encodes NETLOGON_LOGON_IDENTITY_INFO
func (id *LogonIdentity) MarshalNDR(w *ndr.Writer) {
	w.Align(4)
	writeUnicodeString(w, id.DomainName)
	w.WriteUint32(id.ParameterControl)
	// OLD_LARGE_INTEGER: LowPart, HighPart
	w.WriteUint32(uint32(id.LogonID))
	w.WriteUint32(uint32(id.LogonID >> 32))
	writeUnicodeString(w, id.UserName)
	writeUnicodeString(w, id.Workstation)
}

// MarshalNDR encodes NETLOGON_NETWORK_INFO
func (n *NetworkLogonInfo) MarshalNDR(w *ndr.Writer) {
	n.Identity.MarshalNDR(w)
	w.WriteFixed(n.LmChallenge[:])
	n.NtResponse.MarshalNDR(w)
	n.LmResponse.MarshalNDR(w)
}

func readFileTime(r *ndr.Reader, ft *mstypes.FileTime) error {
	low, err := r.ReadUint32()
	if err != nil {
		return err
	}
	high, err := r.ReadUint32()
	if err != nil {
		return err
	}
	ft.LowDateTime = low
	ft.HighDateTime = high
	return nil
}

// readSID decodes a conformant RPC_SID
func readSID(r *ndr.Reader) (*mstypes.RPCSID, error) {
	count, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	revision, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	subCount, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if uint32(subCount) != count || subCount > maxSubAuthorities {
		return nil, fmt.Errorf("%w: SID sub-authority count %d (conformance %d)", ErrMalformed, subCount, count)
	}

	sid := &mstypes.RPCSID{
		Revision:          revision,
		SubAuthorityCount: subCount,
		SubAuthority:      make([]uint32, subCount),
	}
	if err := r.ReadFixedInto(sid.IdentifierAuthority[:]); err != nil {
		return nil, err
	}
	for i := range sid.SubAuthority {
		if sid.SubAuthority[i], err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}
	return sid, nil
}

// UnmarshalNDR decodes NETLOGON_VALIDATION_SAM_INFO2. Pointees are queued
// on r; the caller resolves them.
func (v *ValidationRecord) UnmarshalNDR(r *ndr.Reader) error {
	return v.unmarshal(r, true)
}

// unmarshal decodes SAM_INFO, or SAM_INFO2 when extra is set
func (v *ValidationRecord) unmarshal(r *ndr.Reader, extra bool) error {
	if err := r.Align(4); err != nil {
		return err
	}

	for _, ft := range []*mstypes.FileTime{
		&v.LogonTime, &v.LogoffTime, &v.KickOffTime,
		&v.PasswordLastSet, &v.PasswordCanChange, &v.PasswordMustChange,
	} {
		if err := readFileTime(r, ft); err != nil {
			return err
		}
	}

	for _, s := range []**string{
		&v.EffectiveName, &v.FullName, &v.LogonScript,
		&v.ProfilePath, &v.HomeDirectory, &v.HomeDirectoryDrive,
	} {
		if err := readUnicodeString(r, s); err != nil {
			return err
		}
	}

	var err error
	if v.LogonCount, err = r.ReadUint16(); err != nil {
		return err
	}
	if v.BadPasswordCount, err = r.ReadUint16(); err != nil {
		return err
	}
	if v.UserID, err = r.ReadUint32(); err != nil {
		return err
	}
	if v.PrimaryGroupID, err = r.ReadUint32(); err != nil {
		return err
	}

	groupCount, err := r.ReadUint32()
	if err != nil {
		return err
	}
	groupsPresent, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if groupsPresent {
		r.Defer(func(r *ndr.Reader) error {
			n, err := r.ReadCount()
			if err != nil {
				return err
			}
			if n != groupCount {
				return fmt.Errorf("%w: %d groups declared, array holds %d", ErrMalformed, groupCount, n)
			}
			v.GroupIDs = make([]mstypes.GroupMembership, n)
			for i := range v.GroupIDs {
				if v.GroupIDs[i].RelativeID, err = r.ReadUint32(); err != nil {
					return err
				}
				if v.GroupIDs[i].Attributes, err = r.ReadUint32(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if v.UserFlags, err = r.ReadUint32(); err != nil {
		return err
	}
	if err := v.UserSessionKey.UnmarshalNDR(r); err != nil {
		return err
	}
	if err := readUnicodeString(r, &v.LogonServer); err != nil {
		return err
	}
	if err := readUnicodeString(r, &v.LogonDomainName); err != nil {
		return err
	}

	domainPresent, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if domainPresent {
		r.Defer(func(r *ndr.Reader) error {
			sid, err := readSID(r)
			if err != nil {
				return err
			}
			v.LogonDomainID = sid
			return nil
		})
	}

	// ExpansionRoom[10]
	if err := r.Skip(40); err != nil {
		return err
	}

	if !extra {
		return nil
	}

	sidCount, err := r.ReadUint32()
	if err != nil {
		return err
	}
	extraPresent, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if extraPresent {
		r.Defer(func(r *ndr.Reader) error {
			n, err := r.ReadCount()
			if err != nil {
				return err
			}
			if n != sidCount {
				return fmt.Errorf("%w: %d extra SIDs declared, array holds %d", ErrMalformed, sidCount, n)
			}
			v.ExtraSIDs = make([]mstypes.KerbSidAndAttributes, n)
			for i := range v.ExtraSIDs {
				present, err := r.ReadReferent()
				if err != nil {
					return err
				}
				if v.ExtraSIDs[i].Attributes, err = r.ReadUint32(); err != nil {
					return err
				}
				if !present {
					continue
				}
				entry := &v.ExtraSIDs[i]
				r.Defer(func(r *ndr.Reader) error {
					sid, err := readSID(r)
					if err != nil {
						return err
					}
					entry.SID = *sid
					return nil
				})
			}
			return nil
		})
	}
	return nil
}
