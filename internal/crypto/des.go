package crypto

import (
	"crypto/des"
	"crypto/rc4"
	"errors"
)

// ErrKeySize is returned when a cipher key has the wrong length
var ErrKeySize = errors.New("invalid key size")

// ExpandDESKey spreads a 7-byte key over 8 bytes, seven key bits per byte.
// The low bit of each output byte is left clear.
func ExpandDESKey(key []byte) []byte {
	out := make([]byte, 8)
	out[0] = key[0] >> 1
	out[1] = (key[0]&0x01)<<6 | key[1]>>2
	out[2] = (key[1]&0x03)<<5 | key[2]>>3
	out[3] = (key[2]&0x07)<<4 | key[3]>>4
	out[4] = (key[3]&0x0f)<<3 | key[4]>>5
	out[5] = (key[4]&0x1f)<<2 | key[5]>>6
	out[6] = (key[5]&0x3f)<<1 | key[6]>>7
	out[7] = key[6] & 0x7f
	for i := range out {
		out[i] = (out[i] << 1) & 0xfe
	}
	return out
}

// DESEncrypt encrypts one 8-byte block with a 7-byte key
func DESEncrypt(key7, block []byte) ([]byte, error) {
	if len(key7) != 7 {
		return nil, ErrKeySize
	}
	if len(block) != des.BlockSize {
		return nil, errors.New("DES block must be 8 bytes")
	}
	c, err := des.NewCipher(ExpandDESKey(key7))
	if err != nil {
		return nil, err
	}
	out := make([]byte, des.BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

// RC4 applies the RC4 keystream for key to data
func RC4(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}
