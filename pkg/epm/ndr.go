package epm

import (
	"fmt"

	"github.com/ineffectivecoder/NLGooser/internal/encoding"
	"github.com/ineffectivecoder/NLGooser/pkg/dcerpc"
	"github.com/ineffectivecoder/NLGooser/pkg/ndr"
)

// appendFloor appends one tower floor: lhs_len, lhs, rhs_len, rhs
func appendFloor(b, lhs, rhs []byte) []byte {
	b = encoding.AppendUint16LE(b, uint16(len(lhs)))
	b = append(b, lhs...)
	b = encoding.AppendUint16LE(b, uint16(len(rhs)))
	return append(b, rhs...)
}

func syntaxFloor(b []byte, s dcerpc.SyntaxID) []byte {
	lhs := append([]byte{ProtocolUUID}, s.UUID[:]...)
	lhs = encoding.AppendUint16LE(lhs, s.Major())
	return appendFloor(b, lhs, encoding.AppendUint16LE(nil, s.Minor()))
}

// BuildTCPTower builds the five-floor tower for iface over ncacn_ip_tcp
func BuildTCPTower(iface dcerpc.SyntaxID) []byte {
	b := encoding.AppendUint16LE(nil, 5)
	b = syntaxFloor(b, iface)
	b = syntaxFloor(b, dcerpc.NDRSyntax)
	b = appendFloor(b, []byte{ProtocolRPCCO}, []byte{0, 0})
	b = appendFloor(b, []byte{ProtocolTCP}, []byte{0, 0})
	return appendFloor(b, []byte{ProtocolIP}, []byte{0, 0, 0, 0})
}

// ParseTower decodes a protocol tower, keeping the fields a TCP binding needs
func ParseTower(b []byte) (*Tower, error) {
	if len(b) < 2 {
		return nil, ErrBadTower
	}
	count := int(encoding.Uint16LE(b))
	if count > maxFloors {
		return nil, fmt.Errorf("%w: %d floors", ErrBadTower, count)
	}
	b = b[2:]

	t := &Tower{}
	syntaxes := 0
	for i := 0; i < count; i++ {
		if len(b) < 2 {
			return nil, ErrBadTower
		}
		lhsLen := int(encoding.Uint16LE(b))
		if lhsLen < 1 || len(b) < 2+lhsLen+2 {
			return nil, ErrBadTower
		}
		lhs := b[2 : 2+lhsLen]
		rhsLen := int(encoding.Uint16LE(b[2+lhsLen:]))
		rest := b[2+lhsLen+2:]
		if len(rest) < rhsLen {
			return nil, ErrBadTower
		}
		rhs := rest[:rhsLen]
		b = rest[rhsLen:]

		switch lhs[0] {
		case ProtocolUUID:
			if len(lhs) != 19 || len(rhs) != 2 {
				return nil, fmt.Errorf("%w: uuid floor", ErrBadTower)
			}
			var s dcerpc.SyntaxID
			copy(s.UUID[:], lhs[1:17])
			s.Version = uint32(encoding.Uint16LE(lhs[17:])) | uint32(encoding.Uint16LE(rhs))<<16
			if syntaxes == 0 {
				t.Interface = s
			} else {
				t.Transfer = s
			}
			syntaxes++
		case ProtocolTCP:
			if len(rhs) != 2 {
				return nil, fmt.Errorf("%w: tcp floor", ErrBadTower)
			}
			t.Port = encoding.Uint16BE(rhs)
		case ProtocolIP:
			if len(rhs) == 4 {
				t.IP = append([]byte(nil), rhs...)
			}
		}
	}
	return t, nil
}

// encodeMap encodes ept_map (opnum 3) for iface
//
//	void ept_map(
//	  [in] handle_t hEpMapper,
//	  [in, ptr] UUID* obj,
//	  [in, ptr] twr_p_t map_tower,
//	  [in, out] ept_lookup_handle_t* entry_handle,
//	  [in, range(0,500)] unsigned long max_towers,
//	  [out] unsigned long* num_towers,
//	  [out, ptr, size_is(max_towers), length_is(*num_towers)] twr_p_t* towers,
//	  [out] error_status* status);
func encodeMap(iface dcerpc.SyntaxID) []byte {
	w := ndr.NewWriter()

	// obj: nil UUID
	w.WriteReferent(true)
	w.WriteFixed(make([]byte, 16))

	// map_tower: twr_t is a conformant structure, the size leads
	tower := BuildTCPTower(iface)
	w.WriteReferent(true)
	w.WriteUint32(uint32(len(tower)))
	w.WriteUint32(uint32(len(tower)))
	w.WriteFixed(tower)

	// entry_handle
	w.Align(4)
	w.WriteFixed(make([]byte, 20))

	w.WriteUint32(maxTowersAsked)
	return w.Bytes()
}

// decodeMap decodes the ept_map response into towers
func decodeMap(stub []byte) ([]*Tower, error) {
	r := ndr.NewReader(stub)

	if err := r.Skip(20); err != nil { // entry_handle
		return nil, err
	}
	numTowers, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	actual, err := r.ReadVaryingHeader()
	if err != nil {
		return nil, err
	}
	if numTowers > actual {
		return nil, fmt.Errorf("%w: %d towers reported, %d sent", ndr.ErrMalformed, numTowers, actual)
	}

	present := make([]bool, actual)
	for i := range present {
		if present[i], err = r.ReadReferent(); err != nil {
			return nil, err
		}
	}

	var towers []*Tower
	for _, ok := range present {
		if !ok {
			continue
		}
		if _, err := r.ReadCount(); err != nil {
			return nil, err
		}
		length, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		octets, err := r.ReadFixed(int(length))
		if err != nil {
			return nil, err
		}
		t, err := ParseTower(octets)
		if err != nil {
			return nil, err
		}
		towers = append(towers, t)
	}

	status, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusOK:
	case StatusNotRegistered:
		return nil, ErrNotRegistered
	default:
		return nil, &StatusError{Status: status}
	}
	return towers, nil
}
