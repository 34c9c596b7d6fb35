package dcerpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// UUID represents a DCE UUID (16 bytes) in wire order
type UUID [16]byte

// String formats the UUID as a string
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		encoding.Uint32LE(u[0:4]),
		encoding.Uint16LE(u[4:6]),
		encoding.Uint16LE(u[6:8]),
		u[8:10],
		u[10:16])
}

// ParseUUID parses a UUID string (with or without dashes)
func ParseUUID(s string) (UUID, error) {
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 32 {
		return UUID{}, fmt.Errorf("invalid UUID length: %d", len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return UUID{}, err
	}

	// First three groups are little-endian on the wire
	var uuid UUID
	uuid[0], uuid[1], uuid[2], uuid[3] = raw[3], raw[2], raw[1], raw[0]
	uuid[4], uuid[5] = raw[5], raw[4]
	uuid[6], uuid[7] = raw[7], raw[6]
	copy(uuid[8:16], raw[8:16])

	return uuid, nil
}

// MustParseUUID parses a UUID and panics on error
func MustParseUUID(s string) UUID {
	uuid, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return uuid
}

// SyntaxID represents an interface or transfer syntax identifier
type SyntaxID struct {
	UUID    UUID
	Version uint32 // major in the low 16 bits, minor in the high 16 bits
}

// Append serializes the syntax ID onto buf
func (s *SyntaxID) Append(buf []byte) []byte {
	buf = append(buf, s.UUID[:]...)
	return encoding.AppendUint32LE(buf, s.Version)
}

// Unmarshal deserializes a syntax ID
func (s *SyntaxID) Unmarshal(buf []byte) error {
	if len(buf) < 20 {
		return ErrBufferTooSmall
	}
	copy(s.UUID[:], buf[0:16])
	s.Version = encoding.Uint32LE(buf[16:20])
	return nil
}

// Major returns the major interface version
func (s SyntaxID) Major() uint16 { return uint16(s.Version) }

// Minor returns the minor interface version
func (s SyntaxID) Minor() uint16 { return uint16(s.Version >> 16) }

// Well-known syntaxes
var (
	// NDR Transfer Syntax
	NDRSyntax = SyntaxID{
		UUID:    MustParseUUID("8a885d04-1ceb-11c9-9fe8-08002b104860"),
		Version: 2,
	}

	// Endpoint Mapper
	EPMSyntax = SyntaxID{
		UUID:    MustParseUUID("e1af8308-5d1f-11c9-91a4-08002b14a0fa"),
		Version: 3,
	}
)
