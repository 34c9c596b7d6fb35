package auth

import (
	"fmt"

	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/types"
)

// KeytabCredentials reads the service account's RC4-HMAC key from a
// keytab. That key is the account's NT hash.
type KeytabCredentials struct {
	principal  string
	realm      string
	keytabPath string
	kt         *keytab.Keytab
}

// NewKeytabCredentials loads a keytab file
func NewKeytabCredentials(keytabPath, principal, realm string) (*KeytabCredentials, error) {
	kt, err := keytab.Load(keytabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keytab: %w", err)
	}
	return &KeytabCredentials{
		principal:  principal,
		realm:      realm,
		keytabPath: keytabPath,
		kt:         kt,
	}, nil
}

// NewKeytabCredentialsFromKeytab wraps an already parsed keytab
func NewKeytabCredentialsFromKeytab(kt *keytab.Keytab, principal, realm string) *KeytabCredentials {
	return &KeytabCredentials{principal: principal, realm: realm, kt: kt}
}

// Name identifies the strategy
func (k *KeytabCredentials) Name() string {
	return "keytab"
}

// NTHash returns the newest RC4-HMAC key for the principal
func (k *KeytabCredentials) NTHash() ([]byte, error) {
	if k.kt == nil {
		return nil, fmt.Errorf("no keytab loaded")
	}
	pn := types.NewPrincipalName(nametype.KRB_NT_PRINCIPAL, k.principal)
	key, _, err := k.kt.GetEncryptionKey(pn, k.realm, 0, etypeID.RC4_HMAC)
	if err != nil {
		return nil, fmt.Errorf("no RC4-HMAC key for %s@%s: %w", k.principal, k.realm, err)
	}
	if len(key.KeyValue) != 16 {
		return nil, fmt.Errorf("RC4-HMAC key has %d bytes", len(key.KeyValue))
	}
	return key.KeyValue, nil
}
