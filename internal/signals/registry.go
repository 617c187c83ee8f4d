// Package signals statically classifies transaction intent from raw calldata.
//
// Classification works without a full contract interface description: the
// first four bytes of calldata identify the invoked function, and a fixed
// registry maps known selectors to their signatures. Approval and transfer
// arguments are decoded at fixed byte offsets; everything else is flagged by
// selector-set membership only.
package signals

import "encoding/hex"

// knownSelectors maps lower-case hex selectors to function signatures.
// Initialized once at startup and never mutated, so concurrent reads need
// no synchronization.
var knownSelectors = map[string]string{
	// ERC-20
	"095ea7b3": "approve(address,uint256)",
	"a9059cbb": "transfer(address,uint256)",
	"23b872dd": "transferFrom(address,address,uint256)",
	"39509351": "increaseAllowance(address,uint256)",
	"a457c2d7": "decreaseAllowance(address,uint256)",

	// Signature-based approvals
	"d505accf": "permit(address,address,uint256,uint256,uint8,bytes32,bytes32)",
	"8fcbaf0c": "permit(address,address,uint256,uint256,bool,uint8,bytes32,bytes32)",

	// Blanket operator approvals (ERC-721/1155)
	"a22cb465": "setApprovalForAll(address,bool)",

	// Multicall / batch execution
	"ac9650d8": "multicall(bytes[])",
	"5ae401dc": "multicall(uint256,bytes[])",
	"1f0464d1": "multicall(bytes32,bytes[])",
	"252dba42": "aggregate((address,bytes)[])",
	"82ad56cb": "aggregate3((address,bool,bytes)[])",
	"3593564c": "execute(bytes,bytes[],uint256)",
	"24856bc3": "execute(bytes,bytes[])",
	"1cff79cd": "execute(address,bytes)",
}

// Calldata-decoded selectors.
const (
	selApprove      = "095ea7b3"
	selTransfer     = "a9059cbb"
	selTransferFrom = "23b872dd"
)

// permitSelectors is the permit-family membership set.
var permitSelectors = map[string]bool{
	"d505accf": true,
	"8fcbaf0c": true,
}

// multicallSelectors is the multicall/batch-execute membership set.
var multicallSelectors = map[string]bool{
	"ac9650d8": true,
	"5ae401dc": true,
	"1f0464d1": true,
	"252dba42": true,
	"82ad56cb": true,
	"3593564c": true,
	"24856bc3": true,
	"1cff79cd": true,
}

// Selector returns the lower-case hex selector of calldata, or "" when the
// payload is too short to carry one.
func Selector(calldata []byte) string {
	if len(calldata) < 4 {
		return ""
	}
	return hex.EncodeToString(calldata[:4])
}

// LookupSelector returns the human-readable signature for a selector.
func LookupSelector(selector string) (string, bool) {
	sig, ok := knownSelectors[selector]
	return sig, ok
}
