package signals

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/taker007/crypto-guardian/internal/ethunit"
)

// TriState models a fact that can be affirmatively true, affirmatively
// false, or not determinable. It must never silently collapse to a boolean:
// "could not check" is a different answer than "checked and no".
type TriState int

const (
	TriUnknown TriState = iota
	TriFalse
	TriTrue
)

func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON renders TriTrue/TriFalse as booleans and TriUnknown as null.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return json.Marshal(true)
	case TriFalse:
		return json.Marshal(false)
	default:
		return json.Marshal(nil)
	}
}

// Approval is a decoded ERC-20 approve call. Amount is a decimal string so
// 256-bit values round-trip exactly through JSON.
type Approval struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Transfer is a decoded ERC-20 transfer or transferFrom call.
type Transfer struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Set is everything the extractor learned about one transaction.
type Set struct {
	KnownMethod             string     `json:"knownMethod,omitempty"`
	Approvals               []Approval `json:"approvals"`
	Transfers               []Transfer `json:"transfers"`
	UnlimitedApproval       bool       `json:"unlimitedApproval"`
	SpenderIsContract       TriState   `json:"spenderIsContract"`
	IsPermit                bool       `json:"isPermit"`
	IsMulticall             bool       `json:"isMulticall"`
	HighValueNativeTransfer bool       `json:"highValueNativeTransfer"`
}

// Near-max approval threshold. Anything at or above 2^255 is functionally
// unlimited even when it is not the literal uint256 maximum.
var (
	unlimitedThreshold = new(big.Int).Lsh(big.NewInt(1), 255)
	maxUint256         = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// IsUnlimited reports whether an approval amount is functionally unlimited.
func IsUnlimited(amount *big.Int) bool {
	if amount == nil {
		return false
	}
	return amount.Cmp(unlimitedThreshold) >= 0 || amount.Cmp(maxUint256) == 0
}

// CodeProber checks whether an address carries contract code.
// Implemented by simulation.Client.
type CodeProber interface {
	GetCode(ctx context.Context, chainID, address string) ([]byte, error)
}

// Extractor decodes calldata into a signal set.
type Extractor struct {
	prober       CodeProber
	highValueWei *big.Int
	logger       *slog.Logger
}

// ExtractorOption configures the extractor
type ExtractorOption func(*Extractor)

// WithHighValueThreshold sets the native-value threshold in whole ETH,
// converted to wei by exact integer scaling.
func WithHighValueThreshold(eth string) ExtractorOption {
	return func(e *Extractor) {
		if wei, ok := ethunit.ParseEther(eth); ok && wei.Sign() > 0 {
			e.highValueWei = wei
		}
	}
}

// WithExtractorLogger sets a custom logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor. The prober may be nil, in which case
// spender classification always stays unknown.
func NewExtractor(prober CodeProber, opts ...ExtractorOption) *Extractor {
	defaultThreshold, _ := ethunit.ParseEther("1.0")
	e := &Extractor{
		prober:       prober,
		highValueWei: defaultThreshold,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract decodes the transaction into a signal set. Decode failures for
// one category never abort the others; the result is simply sparser.
func (e *Extractor) Extract(ctx context.Context, chainID, from, to string, calldata []byte, value *big.Int) *Set {
	set := &Set{
		Approvals:         []Approval{},
		Transfers:         []Transfer{},
		SpenderIsContract: TriUnknown,
	}

	selector := Selector(calldata)
	if sig, ok := LookupSelector(selector); ok {
		set.KnownMethod = sig
	}

	set.IsPermit = permitSelectors[selector]
	set.IsMulticall = multicallSelectors[selector]
	set.HighValueNativeTransfer = e.isHighValue(value)

	switch selector {
	case selApprove:
		e.decodeApproval(ctx, chainID, from, to, calldata, set)
	case selTransfer:
		e.decodeTransfer(from, to, calldata, set)
	case selTransferFrom:
		e.decodeTransferFrom(to, calldata, set)
	}

	return set
}

// decodeApproval decodes approve(address,uint256): spender is the
// right-aligned 20 bytes of the first argument word, amount the full second
// word. Requires a complete two-word payload.
func (e *Extractor) decodeApproval(ctx context.Context, chainID, from, to string, calldata []byte, set *Set) {
	if len(calldata) < 68 {
		return
	}

	spender := common.BytesToAddress(calldata[16:36]).Hex()
	amount := new(big.Int).SetBytes(calldata[36:68])

	set.Approvals = append(set.Approvals, Approval{
		Token:   to,
		Owner:   from,
		Spender: spender,
		Amount:  amount.String(),
	})
	set.UnlimitedApproval = IsUnlimited(amount)
	set.SpenderIsContract = e.probeContract(ctx, chainID, spender)
}

// decodeTransfer decodes transfer(address,uint256).
func (e *Extractor) decodeTransfer(from, to string, calldata []byte, set *Set) {
	if len(calldata) < 68 {
		return
	}

	recipient := common.BytesToAddress(calldata[16:36]).Hex()
	amount := new(big.Int).SetBytes(calldata[36:68])

	set.Transfers = append(set.Transfers, Transfer{
		Token:  to,
		From:   from,
		To:     recipient,
		Amount: amount.String(),
	})
}

// decodeTransferFrom decodes transferFrom(address,address,uint256). The
// extra address argument shifts the amount word one slot later than in
// transfer.
func (e *Extractor) decodeTransferFrom(to string, calldata []byte, set *Set) {
	if len(calldata) < 100 {
		return
	}

	sender := common.BytesToAddress(calldata[16:36]).Hex()
	recipient := common.BytesToAddress(calldata[48:68]).Hex()
	amount := new(big.Int).SetBytes(calldata[68:100])

	set.Transfers = append(set.Transfers, Transfer{
		Token:  to,
		From:   sender,
		To:     recipient,
		Amount: amount.String(),
	})
}

// probeContract classifies an address as contract or externally-owned
// account. Probe failure leaves the answer unknown rather than defaulting
// either way.
func (e *Extractor) probeContract(ctx context.Context, chainID, address string) TriState {
	if e.prober == nil {
		return TriUnknown
	}

	code, err := e.prober.GetCode(ctx, chainID, address)
	if err != nil {
		e.logger.Debug("spender code probe failed", "chain_id", chainID, "address", address, "error", err)
		return TriUnknown
	}
	if len(code) > 0 {
		return TriTrue
	}
	return TriFalse
}

// isHighValue compares the native value against the threshold in exact
// integer arithmetic.
func (e *Extractor) isHighValue(value *big.Int) bool {
	if value == nil || e.highValueWei == nil {
		return false
	}
	return value.Cmp(e.highValueWei) >= 0
}
