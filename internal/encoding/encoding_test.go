package encoding

import (
	"bytes"
	"testing"
)

func TestToUTF16LE(t *testing.T) {
	got := ToUTF16LE("DC1")
	want := []byte{'D', 0, 'C', 0, '1', 0}
	if !bytes.Equal(got, want) {
		t.Errorf("ToUTF16LE = %x, want %x", got, want)
	}
}

func TestFromUTF16LEStripsTerminator(t *testing.T) {
	got := FromUTF16LE([]byte{'a', 0, 'b', 0, 0, 0})
	if got != "ab" {
		t.Errorf("FromUTF16LE = %q, want %q", got, "ab")
	}
}

func TestUTF16Surrogates(t *testing.T) {
	s := "user\U0001F600"
	if got := FromUTF16(ToUTF16(s)); got != s {
		t.Errorf("round trip = %q, want %q", got, s)
	}
}

func TestBigEndianPort(t *testing.T) {
	b := AppendUint16BE(nil, 49667)
	if b[0] != 0xc2 || b[1] != 0x03 {
		t.Fatalf("AppendUint16BE = %x", b)
	}
	if Uint16BE(b) != 49667 {
		t.Errorf("Uint16BE = %d", Uint16BE(b))
	}
}
