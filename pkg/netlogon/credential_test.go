package netlogon

import (
	"encoding/hex"
	"errors"
	"testing"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func challengeOf(t *testing.T, s string) Challenge {
	var c Challenge
	copy(c[:], hexBytes(t, s))
	return c
}

func credentialOf(t *testing.T, s string) Credential {
	var c Credential
	copy(c[:], hexBytes(t, s))
	return c
}

// Vectors for an all-zero password hash with challenges 0102..08/1112..18
const (
	katClient     = "0102030405060708"
	katServer     = "1112131415161718"
	katSessionKey = "8d8cc6aa4be0a2b78f4255c16cbe67f0"
)

func katKey(t *testing.T) SessionKey {
	key, err := DeriveSessionKey(make([]byte, 16), challengeOf(t, katClient), challengeOf(t, katServer))
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	return key
}

func TestDeriveSessionKey(t *testing.T) {
	key := katKey(t)
	if got := hex.EncodeToString(key[:]); got != katSessionKey {
		t.Errorf("session key = %s, want %s", got, katSessionKey)
	}

	again := katKey(t)
	if again != key {
		t.Error("derivation is not deterministic")
	}

	if _, err := DeriveSessionKey(make([]byte, 15), Challenge{}, Challenge{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("short hash: got %v, want ErrConfiguration", err)
	}
}

func TestDeriveCredential(t *testing.T) {
	key := katKey(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"client", katClient, "cd26353ab60e3cdb"},
		{"server", katServer, "6590e0766b93491c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveCredential(challengeOf(t, tt.input), key)
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("credential = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveCredentialHalfOrder(t *testing.T) {
	key := katKey(t)
	var swapped SessionKey
	copy(swapped[0:7], key[7:14])
	copy(swapped[7:14], key[0:7])
	copy(swapped[14:], key[14:])

	normal := DeriveCredential(challengeOf(t, katClient), key)
	reversed := DeriveCredential(challengeOf(t, katClient), swapped)
	if normal == reversed {
		t.Fatal("swapping the key halves must change the credential")
	}
	if hex.EncodeToString(reversed[:]) != "7f0dff85f5114287" {
		t.Errorf("swapped credential = %x", reversed)
	}
}

func TestDeriveCredentialZeroKey(t *testing.T) {
	// The all-zero key is a DES weak key, so the double encryption cancels
	input := [8]byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	got := DeriveCredential(input, SessionKey{})
	if hex.EncodeToString(got[:]) != "aaaaaaaaaaaaaaaa" {
		t.Errorf("credential = %x, want aaaaaaaaaaaaaaaa", got)
	}
}

func TestAuthenticatorChain(t *testing.T) {
	key := katKey(t)
	stored := credentialOf(t, "cd26353ab60e3cdb")

	auth, stored := NextAuthenticator(stored, key, 1000)
	if auth.Timestamp != 1000 {
		t.Errorf("timestamp = %d", auth.Timestamp)
	}
	if hex.EncodeToString(stored[:]) != "b52a353ab60e3cdb" {
		t.Errorf("stored after advance = %x", stored)
	}
	if hex.EncodeToString(auth.Credential[:]) != "f34a17ea1c723675" {
		t.Errorf("authenticator = %x", auth.Credential)
	}

	expected, stored := ExpectedReturn(stored, key)
	if hex.EncodeToString(stored[:]) != "b62a353ab60e3cdb" {
		t.Errorf("stored after return = %x", stored)
	}
	if hex.EncodeToString(expected[:]) != "b69eda2645609cff" {
		t.Errorf("return credential = %x", expected)
	}

	auth, stored = NextAuthenticator(stored, key, 1005)
	if hex.EncodeToString(auth.Credential[:]) != "f9ea8bd3c0c80596" {
		t.Errorf("second authenticator = %x", auth.Credential)
	}
	expected, _ = ExpectedReturn(stored, key)
	if hex.EncodeToString(expected[:]) != "a2b71af2eb1c0cca" {
		t.Errorf("second return credential = %x", expected)
	}
}

func TestCredentialEqual(t *testing.T) {
	a := credentialOf(t, "0102030405060708")
	b := a
	if !a.Equal(b) {
		t.Error("identical credentials compare unequal")
	}
	b[7] ^= 1
	if a.Equal(b) {
		t.Error("different credentials compare equal")
	}
}

func TestDecryptUserSessionKey(t *testing.T) {
	key := katKey(t)
	var plain, cipher UserSessionKey
	for i := range plain {
		plain[i] = byte(i)
	}
	copy(cipher[:], hexBytes(t, "e7b655488e79155952526f0f729af5b3"))

	tests := []struct {
		name  string
		in    UserSessionKey
		flags uint32
		want  UserSessionKey
	}{
		{"rc4", cipher, NegotiateArcfour | NegotiateStrongKeys, plain},
		{"no rc4", cipher, NegotiateStrongKeys, cipher},
		{"zero key", UserSessionKey{}, NegotiateArcfour, UserSessionKey{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecryptUserSessionKey(key, tt.in, tt.flags); got != tt.want {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}
