package scan

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taker007/crypto-guardian/internal/denylist"
	"github.com/taker007/crypto-guardian/internal/risk"
	"github.com/taker007/crypto-guardian/internal/signals"
	"github.com/taker007/crypto-guardian/internal/simulation"
)

const (
	fromAddr    = "0x1111111111111111111111111111111111111111"
	toAddr      = "0x2222222222222222222222222222222222222222"
	spenderAddr = "0x3333333333333333333333333333333333333333"
)

type fakeSimulator struct {
	result       simulation.Result
	code         []byte
	codeErr      error
	getCodeCalls int
	sawDeadline  bool
}

func (f *fakeSimulator) Simulate(ctx context.Context, chainID string, req simulation.Request) simulation.Result {
	_, f.sawDeadline = ctx.Deadline()
	return f.result
}

func (f *fakeSimulator) GetCode(ctx context.Context, chainID, address string) ([]byte, error) {
	f.getCodeCalls++
	return f.code, f.codeErr
}

type fakeExtractor struct {
	set *signals.Set
}

func (f *fakeExtractor) Extract(ctx context.Context, chainID, from, to string, calldata []byte, value *big.Int) *signals.Set {
	return f.set
}

func emptySet() *signals.Set {
	return &signals.Set{SpenderIsContract: signals.TriUnknown}
}

func TestScan_PlainTransferIsSafe(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: true}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()})

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "8453",
		From:    fromAddr,
		To:      toAddr,
		Value:   "0xb1a2bc2ec50000", // 0.05 ETH
	})
	require.NoError(t, err)

	assert.Equal(t, risk.VerdictSafe, resp.Verdict)
	assert.Equal(t, 70, resp.Confidence)
	assert.Equal(t, "SAFE", resp.RiskLevel)
	assert.Equal(t, 70, resp.RiskScore)
	assert.Equal(t, "INFO", string(resp.Message.Severity))
	assert.Nil(t, resp.Signals.KnownMethod)

	// No calldata means the recipient is never classified.
	assert.Equal(t, 0, sim.getCodeCalls)
}

func TestScan_UnlimitedApprovalDanger(t *testing.T) {
	set := emptySet()
	set.KnownMethod = "approve(address,uint256)"
	set.UnlimitedApproval = true
	set.SpenderIsContract = signals.TriTrue
	set.Approvals = []signals.Approval{{
		Token:   toAddr,
		Owner:   fromAddr,
		Spender: spenderAddr,
		Amount:  "115792089237316195423570985008687907853269984665640564039457584007913129639935",
	}}

	sim := &fakeSimulator{result: simulation.Result{Success: true}, code: []byte{0x60}}
	svc := NewService(sim, &fakeExtractor{set: set})

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "8453",
		From:    fromAddr,
		To:      toAddr,
		Data:    "0x095ea7b3" + pad64(spenderAddr[2:]) + "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	})
	require.NoError(t, err)

	assert.Equal(t, risk.VerdictDanger, resp.Verdict)
	assert.Equal(t, 90, resp.Confidence)
	assert.Equal(t, "HIGH", string(resp.Message.Severity))
	assert.Equal(t, "Unlimited approval request", resp.Message.Title)
	require.NotNil(t, resp.Signals.KnownMethod)
	assert.Equal(t, "approve(address,uint256)", *resp.Signals.KnownMethod)
	assert.True(t, resp.Signals.UnlimitedApproval)
}

func TestScan_RecipientProbeOnlyWithCalldata(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: true}, code: []byte{}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()})

	_, err := svc.Scan(context.Background(), Request{
		ChainID: "1",
		From:    fromAddr,
		To:      toAddr,
		Data:    "0xdeadbeef",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sim.getCodeCalls)
}

func TestScan_UnknownMethodToContract(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: true}, code: []byte{0x60}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()})

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "1",
		From:    fromAddr,
		To:      toAddr,
		Data:    "0xdeadbeef",
	})
	require.NoError(t, err)

	assert.Equal(t, risk.VerdictWarning, resp.Verdict)
	assert.Equal(t, 40, resp.Confidence)
	assert.Equal(t, "Unrecognized contract call", resp.Message.Title)
}

func TestScan_DenylistHitShapesMessage(t *testing.T) {
	deny := denylist.NewMemoryStore()
	require.NoError(t, deny.Add(context.Background(), &denylist.Entry{
		Address: toAddr,
		Tag:     denylist.TagKnownBadContract,
		Source:  "chainabuse",
	}))

	sim := &fakeSimulator{result: simulation.Result{Success: true}, code: []byte{0x60}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()}, WithDenylist(deny))

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "1",
		From:    fromAddr,
		To:      toAddr,
		Data:    "0xdeadbeef",
	})
	require.NoError(t, err)

	assert.Equal(t, "Flagged contract", resp.Message.Title)
	assert.Equal(t, "HIGH", string(resp.Message.Severity))
	found := false
	for _, d := range resp.Message.Details {
		if d == "Reported by: chainabuse" {
			found = true
		}
	}
	assert.True(t, found, "expected source attribution in details: %v", resp.Message.Details)
}

func TestScan_DenylistChecksApprovalSpender(t *testing.T) {
	deny := denylist.NewMemoryStore()
	require.NoError(t, deny.Add(context.Background(), &denylist.Entry{
		Address: spenderAddr,
		Tag:     denylist.TagKnownBadAddress,
		Source:  "scamsniffer",
	}))

	set := emptySet()
	set.KnownMethod = "approve(address,uint256)"
	set.Approvals = []signals.Approval{{Spender: spenderAddr, Amount: "1000"}}

	sim := &fakeSimulator{result: simulation.Result{Success: true}, code: []byte{0x60}}
	svc := NewService(sim, &fakeExtractor{set: set}, WithDenylist(deny))

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "1",
		From:    fromAddr,
		To:      toAddr,
		Data:    "0x095ea7b3",
	})
	require.NoError(t, err)
	assert.Equal(t, "Flagged address", resp.Message.Title)
}

func TestScan_SimulationFailureSurfacesInReasons(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: false, RevertReason: "insufficient allowance"}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()})

	resp, err := svc.Scan(context.Background(), Request{
		ChainID: "1",
		From:    fromAddr,
		To:      toAddr,
	})
	require.NoError(t, err)

	assert.Equal(t, risk.VerdictDanger, resp.Verdict)
	assert.Equal(t, 85, resp.Confidence)
	require.NotEmpty(t, resp.Reasons)
	assert.Contains(t, resp.Reasons[0], "insufficient allowance")
	assert.Equal(t, resp.Reasons, resp.Findings)
}

func TestScan_BudgetAppliedToChainCalls(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: true}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()}, WithBudget(50*time.Millisecond))

	_, err := svc.Scan(context.Background(), Request{ChainID: "1", From: fromAddr, To: toAddr})
	require.NoError(t, err)
	assert.True(t, sim.sawDeadline)
}

func TestScan_MalformedHexRejected(t *testing.T) {
	sim := &fakeSimulator{result: simulation.Result{Success: true}}
	svc := NewService(sim, &fakeExtractor{set: emptySet()})

	_, err := svc.Scan(context.Background(), Request{ChainID: "1", From: fromAddr, To: toAddr, Data: "0xzz"})
	assert.Error(t, err)

	_, err = svc.Scan(context.Background(), Request{ChainID: "1", From: fromAddr, To: toAddr, Value: "0xnope"})
	assert.Error(t, err)
}

func pad64(hexAddr string) string {
	out := hexAddr
	for len(out) < 64 {
		out = "0" + out
	}
	return out
}
