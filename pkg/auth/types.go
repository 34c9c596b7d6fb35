// Package auth provides the credential material for a Netlogon secure
// channel (service account NT hash sources) and the NTLMv2 responses a
// client computes for a network logon.
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredentialSource is returned when no source yields a hash
var ErrNoCredentialSource = errors.New("no credential source succeeded")

// HashSource is one strategy for obtaining the service account's NT hash
type HashSource interface {
	Name() string
	NTHash() ([]byte, error)
}

// PasswordCredentials derives the NT hash from a cleartext password
type PasswordCredentials struct {
	username string
	password string
}

// NewPasswordCredentials creates password-based credentials
func NewPasswordCredentials(username, password string) *PasswordCredentials {
	return &PasswordCredentials{
		username: username,
		password: password,
	}
}

// Name identifies the strategy
func (c *PasswordCredentials) Name() string {
	return "password"
}

// Username returns the username
func (c *PasswordCredentials) Username() string {
	return c.username
}

// NTHash returns MD4(UTF-16LE(password))
func (c *PasswordCredentials) NTHash() ([]byte, error) {
	if c.password == "" {
		return nil, errors.New("empty password")
	}
	return NTHash(c.password), nil
}

// HashCredentials for pass-the-hash authentication
type HashCredentials struct {
	username string
	ntHash   []byte // 16-byte NT hash
}

// NewHashCredentials creates hash-based credentials
func NewHashCredentials(username string, ntHash []byte) *HashCredentials {
	h := make([]byte, len(ntHash))
	copy(h, ntHash)
	return &HashCredentials{
		username: username,
		ntHash:   h,
	}
}

// Name identifies the strategy
func (c *HashCredentials) Name() string {
	return "hash"
}

// Username returns the username
func (c *HashCredentials) Username() string {
	return c.username
}

// NTHash returns a copy of the NT hash
func (c *HashCredentials) NTHash() ([]byte, error) {
	if len(c.ntHash) != 16 {
		return nil, fmt.Errorf("NT hash must be 16 bytes, got %d", len(c.ntHash))
	}
	h := make([]byte, 16)
	copy(h, c.ntHash)
	return h, nil
}

// ParseHash decodes an NT hash given as 32 hex characters or as LM:NT
func ParseHash(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) != 32 {
		return nil, fmt.Errorf("invalid hash length (expected 32 hex chars, got %d)", len(s))
	}
	return hex.DecodeString(s)
}

// Attempt records why a source did not produce a hash
type Attempt struct {
	Source string
	Err    error
}

// AcquireError lists every failed attempt
type AcquireError struct {
	Attempts []Attempt
}

func (e *AcquireError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrNoCredentialSource.Error() + ": none configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return ErrNoCredentialSource.Error() + " (" + strings.Join(parts, "; ") + ")"
}

// Unwrap allows errors.Is(err, ErrNoCredentialSource)
func (e *AcquireError) Unwrap() error {
	return ErrNoCredentialSource
}

// Acquire tries each source in order and returns the first hash together
// with the name of the source that produced it.
func Acquire(sources ...HashSource) ([]byte, string, error) {
	failed := &AcquireError{}
	for _, src := range sources {
		hash, err := src.NTHash()
		if err == nil {
			return hash, src.Name(), nil
		}
		failed.Attempts = append(failed.Attempts, Attempt{Source: src.Name(), Err: err})
	}
	return nil, "", failed
}
