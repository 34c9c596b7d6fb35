package auth

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/ineffectivecoder/NLGooser/internal/crypto"
	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// windowsEpochOffset is the number of 100ns intervals between 1601 and 1970
const windowsEpochOffset = 116444736000000000

// NTHash computes the NT hash from a password
// NT Hash = MD4(UTF-16LE(password))
func NTHash(password string) []byte {
	return crypto.MD4Hash(encoding.ToUTF16LE(password))
}

// NTLMv2Hash computes the NTLMv2 hash
// NTLMv2 Hash = HMAC-MD5(NT Hash, UPPERCASE(username) + domain)
func NTLMv2Hash(ntHash []byte, username, domain string) []byte {
	userDomain := encoding.ToUTF16LE(strings.ToUpper(username) + domain)
	return crypto.HMACMD5(ntHash, userDomain)
}

// FileTime converts t to a Windows FILETIME in little-endian bytes
func FileTime(t time.Time) []byte {
	b := make([]byte, 8)
	encoding.PutUint64LE(b, uint64(t.UnixNano()/100+windowsEpochOffset))
	return b
}

// NTLMv2Response computes the NTLMv2 response and session base key
func NTLMv2Response(ntlmv2Hash, serverChallenge, clientChallenge []byte,
	timestamp []byte, targetInfo []byte) (response []byte, sessionBaseKey []byte) {

	blob := buildNTLMv2Blob(clientChallenge, timestamp, targetInfo)

	// NTProofStr = HMAC-MD5(NTLMv2 Hash, ServerChallenge + Blob)
	data := make([]byte, 0, len(serverChallenge)+len(blob))
	data = append(append(data, serverChallenge...), blob...)
	ntProofStr := crypto.HMACMD5(ntlmv2Hash, data)

	response = append(append([]byte(nil), ntProofStr...), blob...)

	// Session Base Key = HMAC-MD5(NTLMv2 Hash, NTProofStr)
	sessionBaseKey = crypto.HMACMD5(ntlmv2Hash, ntProofStr)

	return response, sessionBaseKey
}

// buildNTLMv2Blob builds the NTLMv2 client blob/temp structure
func buildNTLMv2Blob(clientChallenge, timestamp, targetInfo []byte) []byte {
	if len(timestamp) != 8 {
		timestamp = FileTime(time.Now())
	}

	// RespType (1) + HiRespType (1) + Reserved1 (2) + Reserved2 (4) +
	// TimeStamp (8) + ClientChallenge (8) + Reserved3 (4) + TargetInfo + Reserved4 (4)
	blob := make([]byte, 28+len(targetInfo)+4)
	blob[0] = 0x01 // RespType
	blob[1] = 0x01 // HiRespType
	copy(blob[8:16], timestamp)
	copy(blob[16:24], clientChallenge)
	copy(blob[28:], targetInfo)
	return blob
}

// GenerateChallenge returns 8 random bytes
func GenerateChallenge() ([]byte, error) {
	challenge := make([]byte, 8)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// LMv2Response computes the LMv2 response
// LMv2 Response = HMAC-MD5(NTLMv2 Hash, ServerChallenge + ClientChallenge) + ClientChallenge
func LMv2Response(ntlmv2Hash, serverChallenge, clientChallenge []byte) []byte {
	data := make([]byte, 0, 16)
	data = append(append(data, serverChallenge...), clientChallenge...)
	resp := crypto.HMACMD5(ntlmv2Hash, data)
	return append(resp, clientChallenge...)
}

// NetworkResponse is the pair of responses a client returns to a challenge
type NetworkResponse struct {
	NtResponse     []byte
	LmResponse     []byte
	SessionBaseKey []byte
}

// ComputeNetworkResponse builds NTLMv2 and LMv2 responses for a user whose
// NT hash is ntHash, answering serverChallenge.
func ComputeNetworkResponse(ntHash []byte, username, domain, workstation string, serverChallenge []byte) (*NetworkResponse, error) {
	clientChallenge, err := GenerateChallenge()
	if err != nil {
		return nil, err
	}

	now := FileTime(time.Now())
	targetInfo := MarshalAvPairs([]AvPair{
		{AvID: MsvAvNbDomainName, Value: encoding.ToUTF16LE(strings.ToUpper(domain))},
		{AvID: MsvAvNbComputerName, Value: encoding.ToUTF16LE(strings.ToUpper(workstation))},
		{AvID: MsvAvTimestamp, Value: now},
	})

	v2 := NTLMv2Hash(ntHash, username, domain)
	nt, key := NTLMv2Response(v2, serverChallenge, clientChallenge, now, targetInfo)
	return &NetworkResponse{
		NtResponse:     nt,
		LmResponse:     LMv2Response(v2, serverChallenge, clientChallenge),
		SessionBaseKey: key,
	}, nil
}
