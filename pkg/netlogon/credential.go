package netlogon

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/ineffectivecoder/NLGooser/internal/crypto"
)

// DeriveSessionKey computes the strong-key session key:
// HMAC-MD5(passwordHash, MD5(0x00000000 || client || server)).
func DeriveSessionKey(passwordHash []byte, client, server Challenge) (SessionKey, error) {
	var key SessionKey
	if len(passwordHash) != 16 {
		return key, fmt.Errorf("%w: password hash must be 16 bytes, got %d", ErrConfiguration, len(passwordHash))
	}
	digest := crypto.MD5Hash(make([]byte, 4), client[:], server[:])
	copy(key[:], crypto.HMACMD5(passwordHash, digest))
	return key, nil
}

// DeriveCredential encrypts input with DES under key[0:7] and the result
// under key[7:14].
func DeriveCredential(input [8]byte, key SessionKey) Credential {
	// Key and block sizes are fixed by the types, so neither call can fail
	first, _ := crypto.DESEncrypt(key[0:7], input[:])
	second, _ := crypto.DESEncrypt(key[7:14], first)

	var out Credential
	copy(out[:], second)
	return out
}

// add returns c with n added to its low 32 bits
func (c Credential) add(n uint32) Credential {
	binary.LittleEndian.PutUint32(c[:4], binary.LittleEndian.Uint32(c[:4])+n)
	return c
}

// Equal compares two credentials in constant time
func (c Credential) Equal(other Credential) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// NextAuthenticator folds timestamp into the stored credential and
// returns the outbound authenticator with the new stored credential.
func NextAuthenticator(stored Credential, key SessionKey, timestamp uint32) (Authenticator, Credential) {
	stored = stored.add(timestamp)
	return Authenticator{
		Credential: DeriveCredential(stored, key),
		Timestamp:  timestamp,
	}, stored
}

// ExpectedReturn returns the credential the server must send back for the
// call made with stored, and the stored credential to keep afterwards.
func ExpectedReturn(stored Credential, key SessionKey) (Credential, Credential) {
	stored = stored.add(1)
	return DeriveCredential(stored, key), stored
}

// DecryptUserSessionKey removes the RC4 layer the server applies to the
// user session key when RC4 was negotiated. Zero keys are left unchanged.
func DecryptUserSessionKey(key SessionKey, usk UserSessionKey, flags uint32) UserSessionKey {
	if flags&NegotiateArcfour == 0 || usk.IsZero() {
		return usk
	}
	plain, err := crypto.RC4(key[:], usk[:])
	if err != nil {
		return usk
	}
	var out UserSessionKey
	copy(out[:], plain)
	return out
}

// zero clears key material in place
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
