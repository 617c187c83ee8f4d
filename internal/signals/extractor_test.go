package signals

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenAddr   = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	ownerAddr   = "0x1111111111111111111111111111111111111111"
	spenderAddr = "0x2222222222222222222222222222222222222222"
	thirdAddr   = "0x3333333333333333333333333333333333333333"
)

// fakeProber returns canned code lookups.
type fakeProber struct {
	code []byte
	err  error
}

func (p *fakeProber) GetCode(ctx context.Context, chainID, address string) ([]byte, error) {
	return p.code, p.err
}

// calldata builds selector + 32-byte ABI words.
func calldata(t *testing.T, selector string, words ...string) []byte {
	t.Helper()
	out, err := hex.DecodeString(selector)
	require.NoError(t, err)
	for _, w := range words {
		word, err := hex.DecodeString(w)
		require.NoError(t, err)
		require.Len(t, word, 32)
		out = append(out, word...)
	}
	return out
}

func addressWord(addr string) string {
	return "000000000000000000000000" + addr[2:]
}

func amountWord(amount *big.Int) string {
	w := make([]byte, 32)
	amount.FillBytes(w)
	return hex.EncodeToString(w)
}

func maxUint256Val() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}

func TestExtract_ApprovalLimited(t *testing.T) {
	amount := big.NewInt(1_000_000)
	data := calldata(t, selApprove, addressWord(spenderAddr), amountWord(amount))

	e := NewExtractor(&fakeProber{code: []byte{0x60}})
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr, data, nil)

	require.Len(t, set.Approvals, 1)
	assert.Equal(t, tokenAddr, set.Approvals[0].Token)
	assert.Equal(t, ownerAddr, set.Approvals[0].Owner)
	assert.Equal(t, spenderAddr, set.Approvals[0].Spender)
	assert.Equal(t, "1000000", set.Approvals[0].Amount)
	assert.False(t, set.UnlimitedApproval)
	assert.Equal(t, TriTrue, set.SpenderIsContract)
	assert.Equal(t, "approve(address,uint256)", set.KnownMethod)
}

func TestExtract_ApprovalUnlimited(t *testing.T) {
	data := calldata(t, selApprove, addressWord(spenderAddr), amountWord(maxUint256Val()))

	e := NewExtractor(&fakeProber{code: []byte{}})
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr, data, nil)

	assert.True(t, set.UnlimitedApproval)
	assert.Equal(t, TriFalse, set.SpenderIsContract)
}

func TestExtract_ApprovalProbeFailureLeavesUnknown(t *testing.T) {
	data := calldata(t, selApprove, addressWord(spenderAddr), amountWord(maxUint256Val()))

	e := NewExtractor(&fakeProber{err: errors.New("timeout")})
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr, data, nil)

	assert.True(t, set.UnlimitedApproval)
	assert.Equal(t, TriUnknown, set.SpenderIsContract)
}

func TestExtract_ApprovalShortCalldataSkipped(t *testing.T) {
	data := calldata(t, selApprove, addressWord(spenderAddr)) // one word short

	e := NewExtractor(nil)
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr, data, nil)

	assert.Empty(t, set.Approvals)
	assert.False(t, set.UnlimitedApproval)
	// Still classified: the selector itself is recognized.
	assert.Equal(t, "approve(address,uint256)", set.KnownMethod)
}

func TestIsUnlimited_ThresholdBoundary(t *testing.T) {
	halfMax := new(big.Int).Lsh(big.NewInt(1), 255)
	justBelow := new(big.Int).Sub(halfMax, big.NewInt(1))

	assert.True(t, IsUnlimited(maxUint256Val()), "2^256-1")
	assert.True(t, IsUnlimited(halfMax), "2^255")
	assert.True(t, IsUnlimited(new(big.Int).Add(halfMax, big.NewInt(12345))), "above 2^255")
	assert.False(t, IsUnlimited(justBelow), "2^255-1")
	assert.False(t, IsUnlimited(big.NewInt(0)), "zero")
	assert.False(t, IsUnlimited(nil), "nil")
}

func TestExtract_Transfer(t *testing.T) {
	amount := big.NewInt(42)
	data := calldata(t, selTransfer, addressWord(thirdAddr), amountWord(amount))

	e := NewExtractor(nil)
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr, data, nil)

	require.Len(t, set.Transfers, 1)
	assert.Equal(t, ownerAddr, set.Transfers[0].From)
	assert.Equal(t, thirdAddr, set.Transfers[0].To)
	assert.Equal(t, "42", set.Transfers[0].Amount)
}

func TestExtract_TransferFrom(t *testing.T) {
	// transferFrom has one more address argument, shifting the amount word.
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	data := calldata(t, selTransferFrom,
		addressWord(ownerAddr), addressWord(thirdAddr), amountWord(amount))

	e := NewExtractor(nil)
	set := e.Extract(context.Background(), "1", spenderAddr, tokenAddr, data, nil)

	require.Len(t, set.Transfers, 1)
	assert.Equal(t, ownerAddr, set.Transfers[0].From)
	assert.Equal(t, thirdAddr, set.Transfers[0].To)
	assert.Equal(t, "123456789012345678901234567890", set.Transfers[0].Amount)
}

func TestExtract_TransferFromShortCalldataSkipped(t *testing.T) {
	data := calldata(t, selTransferFrom, addressWord(ownerAddr), addressWord(thirdAddr))

	e := NewExtractor(nil)
	set := e.Extract(context.Background(), "1", spenderAddr, tokenAddr, data, nil)

	assert.Empty(t, set.Transfers)
}

func TestExtract_PermitAndMulticallFlags(t *testing.T) {
	e := NewExtractor(nil)

	permit := e.Extract(context.Background(), "1", ownerAddr, tokenAddr,
		calldata(t, "d505accf"), nil)
	assert.True(t, permit.IsPermit)
	assert.False(t, permit.IsMulticall)

	multicall := e.Extract(context.Background(), "1", ownerAddr, tokenAddr,
		calldata(t, "ac9650d8"), nil)
	assert.True(t, multicall.IsMulticall)
	assert.False(t, multicall.IsPermit)
}

func TestExtract_UnknownSelector(t *testing.T) {
	e := NewExtractor(nil)
	set := e.Extract(context.Background(), "1", ownerAddr, tokenAddr,
		[]byte{0xde, 0xad, 0xbe, 0xef}, nil)

	assert.Empty(t, set.KnownMethod)
	assert.Empty(t, set.Approvals)
	assert.Empty(t, set.Transfers)
}

func TestExtract_HighValueThreshold(t *testing.T) {
	e := NewExtractor(nil, WithHighValueThreshold("1.0"))

	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	justBelow := new(big.Int).Sub(oneEth, big.NewInt(1))
	pointZeroFive, _ := new(big.Int).SetString("50000000000000000", 10)

	assert.True(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, oneEth).HighValueNativeTransfer)
	assert.False(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, justBelow).HighValueNativeTransfer)
	assert.False(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, pointZeroFive).HighValueNativeTransfer)
	assert.False(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, nil).HighValueNativeTransfer)
}

// Comparison must stay exact at magnitudes where float64 loses precision.
func TestExtract_HighValueExactAtLargeMagnitude(t *testing.T) {
	e := NewExtractor(nil, WithHighValueThreshold("10000000000"))

	threshold, _ := new(big.Int).SetString("10000000000000000000000000000", 10) // 1e28 wei
	below := new(big.Int).Sub(threshold, big.NewInt(1))

	assert.True(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, threshold).HighValueNativeTransfer)
	assert.False(t, e.Extract(context.Background(), "1", ownerAddr, thirdAddr, nil, below).HighValueNativeTransfer)
}
