package auth

import (
	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// AvPair represents an AV_PAIR structure in TargetInfo
type AvPair struct {
	AvID  uint16
	Value []byte
}

// AV_PAIR IDs
const (
	MsvAvEOL             uint16 = 0x0000 // End of list
	MsvAvNbComputerName  uint16 = 0x0001 // NetBIOS computer name
	MsvAvNbDomainName    uint16 = 0x0002 // NetBIOS domain name
	MsvAvDnsComputerName uint16 = 0x0003 // DNS computer name
	MsvAvDnsDomainName   uint16 = 0x0004 // DNS domain name
	MsvAvDnsTreeName     uint16 = 0x0005 // DNS tree name
	MsvAvFlags           uint16 = 0x0006 // Flags
	MsvAvTimestamp       uint16 = 0x0007 // Timestamp
	MsvAvSingleHost      uint16 = 0x0008 // Single Host Data
	MsvAvTargetName      uint16 = 0x0009 // Target name (SPN)
	MsvAvChannelBindings uint16 = 0x000A // Channel Bindings
)

// MarshalAvPairs serializes AV_PAIR list, terminated by MsvAvEOL
func MarshalAvPairs(pairs []AvPair) []byte {
	var buf []byte
	for _, p := range pairs {
		buf = encoding.AppendUint16LE(buf, p.AvID)
		buf = encoding.AppendUint16LE(buf, uint16(len(p.Value)))
		buf = append(buf, p.Value...)
	}
	return append(buf, 0, 0, 0, 0)
}
