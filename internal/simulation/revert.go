package simulation

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"
)

// Solidity revert payload selectors: keccak("Error(string)")[:4] and
// keccak("Panic(uint256)")[:4].
const (
	errorSelector = "08c379a0"
	panicSelector = "4e487b71"

	// Defensive cap on decoded reason strings. Malformed payloads can claim
	// arbitrarily large lengths; never read past this.
	maxReasonBytes = 1024
)

// Panic codes defined by the Solidity ABI.
var panicCodes = map[uint64]string{
	0x00: "generic compiler panic",
	0x01: "assertion failed",
	0x11: "arithmetic overflow or underflow",
	0x12: "division or modulo by zero",
	0x21: "invalid enum value",
	0x22: "corrupted storage byte array",
	0x31: "pop on empty array",
	0x32: "array index out of bounds",
	0x41: "out of memory",
	0x51: "call to invalid function pointer",
}

// DecodeRevertData decodes an ABI-encoded revert payload into a readable
// reason. Unrecognized payloads return "" so callers can fall back to the
// transport-level message.
func DecodeRevertData(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch hex.EncodeToString(data[:4]) {
	case errorSelector:
		return decodeErrorString(data)
	case panicSelector:
		return decodePanic(data)
	}
	return ""
}

// decodeErrorString decodes Error(string): selector, a 32-byte offset word,
// a 32-byte length word, then the UTF-8 bytes.
func decodeErrorString(data []byte) string {
	// selector(4) + offset(32) + length(32)
	if len(data) < 68 {
		return ""
	}

	length := new(big.Int).SetBytes(data[36:68])
	if !length.IsUint64() {
		return ""
	}
	n := length.Uint64()
	if n > maxReasonBytes {
		n = maxReasonBytes
	}
	if uint64(len(data)-68) < n {
		n = uint64(len(data) - 68)
	}

	reason := data[68 : 68+n]
	if !utf8.Valid(reason) {
		return ""
	}
	return string(reason)
}

// decodePanic decodes Panic(uint256) into a labelled panic reason.
func decodePanic(data []byte) string {
	if len(data) < 36 {
		return ""
	}
	code := new(big.Int).SetBytes(data[4:36])
	if code.IsUint64() {
		if label, ok := panicCodes[code.Uint64()]; ok {
			return fmt.Sprintf("panic: %s (0x%02x)", label, code.Uint64())
		}
	}
	return fmt.Sprintf("Panic(0x%s)", code.Text(16))
}

// DecodeRevertMessage passes an RPC error message through the revert
// decoder. If the message embeds a hex revert payload, the decoded reason
// replaces it; otherwise the message is returned unchanged.
func DecodeRevertMessage(msg string) string {
	for _, sel := range []string{errorSelector, panicSelector} {
		idx := strings.Index(msg, "0x"+sel)
		if idx < 0 {
			continue
		}
		blob := hexRun(msg[idx+2:])
		data, err := hex.DecodeString(blob)
		if err != nil {
			continue
		}
		if reason := DecodeRevertData(data); reason != "" {
			return reason
		}
	}
	return msg
}

// hexRun returns the leading run of hex characters in s, truncated to an
// even length so it decodes cleanly.
func hexRun(s string) string {
	end := 0
	for end < len(s) && isHexChar(s[end]) {
		end++
	}
	if end%2 != 0 {
		end--
	}
	return s[:end]
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
