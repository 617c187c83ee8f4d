package risk

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taker007/crypto-guardian/internal/signals"
	"github.com/taker007/crypto-guardian/internal/simulation"
)

func okSim() simulation.Result {
	return simulation.Result{Success: true}
}

func emptySignals() *signals.Set {
	return &signals.Set{SpenderIsContract: signals.TriUnknown}
}

func TestAssess_NoFindingsIsSafe(t *testing.T) {
	e := NewEngine()

	got := e.Assess(Input{Sim: okSim(), Signals: emptySignals()})

	assert.Equal(t, VerdictSafe, got.Verdict)
	assert.Equal(t, 70, got.Confidence)
	assert.NotEmpty(t, got.Summary)
	assert.NotEmpty(t, got.Reasons)
}

// Plain native transfer below the high-value threshold, no calldata: the
// pipeline does not classify the recipient, so nothing fires.
func TestAssess_PlainLowValueTransferIsSafe(t *testing.T) {
	e := NewEngine()
	value, _ := new(big.Int).SetString("50000000000000000", 10) // 0.05 ETH

	got := e.Assess(Input{
		Sim:     okSim(),
		Signals: emptySignals(),
		Value:   value,
	})

	assert.Equal(t, VerdictSafe, got.Verdict)
	assert.Equal(t, 70, got.Confidence)
}

func TestAssess_UnlimitedApprovalTiers(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name    string
		spender signals.TriState
		want    int
	}{
		{"spender is an account", signals.TriFalse, 95},
		{"spender is a contract", signals.TriTrue, 90},
		{"spender unknown", signals.TriUnknown, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := emptySignals()
			sig.UnlimitedApproval = true
			sig.SpenderIsContract = tt.spender
			sig.Approvals = []signals.Approval{{Amount: "115792089237316195423570985008687907853269984665640564039457584007913129639935"}}

			got := e.Assess(Input{Sim: okSim(), Signals: sig})
			assert.Equal(t, VerdictDanger, got.Verdict)
			assert.Equal(t, tt.want, got.Confidence)
		})
	}
}

func TestAssess_CodeProbeTimeoutStillFiresUnlimitedRule(t *testing.T) {
	// A failed classification must not suppress or escalate the rule; it
	// lands in the unknown-spender tier.
	e := NewEngine()
	sig := emptySignals()
	sig.UnlimitedApproval = true
	sig.SpenderIsContract = signals.TriUnknown

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictDanger, got.Verdict)
	assert.Equal(t, 85, got.Confidence)
}

func TestAssess_LimitedApproval(t *testing.T) {
	e := NewEngine()
	sig := emptySignals()
	sig.Approvals = []signals.Approval{{Amount: "1000000"}}

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 50, got.Confidence)
}

func TestAssess_RevertDangerousReason(t *testing.T) {
	e := NewEngine()

	got := e.Assess(Input{
		Sim:     simulation.Result{Success: false, RevertReason: "insufficient allowance"},
		Signals: emptySignals(),
	})

	assert.Equal(t, VerdictDanger, got.Verdict)
	assert.Equal(t, 85, got.Confidence)
}

func TestAssess_RevertTransportFailureIsWarning(t *testing.T) {
	// Timeouts and transport errors mean "could not verify", never SAFE
	// and never DANGER on their own.
	e := NewEngine()

	got := e.Assess(Input{
		Sim:     simulation.Result{Success: false, RevertReason: "context deadline exceeded"},
		Signals: emptySignals(),
	})

	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 70, got.Confidence)
}

func TestAssess_Permit(t *testing.T) {
	e := NewEngine()
	sig := emptySignals()
	sig.IsPermit = true

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 75, got.Confidence)
}

func TestAssess_UnknownMethodToContract(t *testing.T) {
	e := NewEngine()

	got := e.Assess(Input{
		Sim:      okSim(),
		Signals:  emptySignals(),
		Calldata: []byte{0xde, 0xad, 0xbe, 0xef},
	})

	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 40, got.Confidence)
}

func TestAssess_UnknownMethodToAccountDoesNotFire(t *testing.T) {
	e := NewEngine()

	got := e.Assess(Input{
		Sim:                okSim(),
		Signals:            emptySignals(),
		Calldata:           []byte{0xde, 0xad, 0xbe, 0xef},
		RecipientIsAccount: true,
	})

	// Only the unknown-method rule is suppressed; nothing else fires
	// because value is zero.
	assert.Equal(t, VerdictSafe, got.Verdict)
}

func TestAssess_DirectAccountTransfer(t *testing.T) {
	e := NewEngine()

	got := e.Assess(Input{
		Sim:                okSim(),
		Signals:            emptySignals(),
		RecipientIsAccount: true,
		Value:              big.NewInt(1),
	})

	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 30, got.Confidence)
}

func TestAssess_Multicall(t *testing.T) {
	e := NewEngine()
	sig := emptySignals()
	sig.IsMulticall = true

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 55, got.Confidence)
}

// Confidence comes from the winning severity only: a lower-severity finding
// with higher confidence must not leak into the aggregate confidence.
func TestAssess_ConfidenceScopedToWinningSeverity(t *testing.T) {
	e := NewEngine()
	sig := emptySignals()
	sig.UnlimitedApproval = true // DANGER 85 (unknown spender)
	sig.IsPermit = true          // WARNING 75
	sig.Approvals = []signals.Approval{{Amount: "1"}}

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictDanger, got.Verdict)
	assert.Equal(t, 85, got.Confidence)
	assert.Contains(t, got.Summary, "unlimited")
}

// The reasons list preserves every fired rule in evaluation order, even for
// findings that did not determine the verdict.
func TestAssess_ReasonsPreserveEvaluationOrder(t *testing.T) {
	e := NewEngine()
	sig := emptySignals()
	sig.IsPermit = true
	sig.IsMulticall = true
	sig.HighValueNativeTransfer = true

	got := e.Assess(Input{
		Sim:     simulation.Result{Success: false, RevertReason: "execution reverted"},
		Signals: sig,
	})

	require.Len(t, got.Reasons, 4)
	assert.Contains(t, got.Reasons[0], "would fail")   // revert first
	assert.Contains(t, got.Reasons[1], "permit")       // then permit
	assert.Contains(t, got.Reasons[2], "high value")   // then high value
	assert.Contains(t, got.Reasons[3], "Batches")      // then multicall
}

// Adding a fired rule can only raise or keep the verdict, never lower it.
func TestAssess_VerdictMonotonic(t *testing.T) {
	e := NewEngine()

	base := emptySignals()
	base.IsPermit = true
	before := e.Assess(Input{Sim: okSim(), Signals: base})

	withMore := emptySignals()
	withMore.IsPermit = true
	withMore.UnlimitedApproval = true
	withMore.Approvals = []signals.Approval{{Amount: "1"}}
	after := e.Assess(Input{Sim: okSim(), Signals: withMore})

	assert.GreaterOrEqual(t, int(after.Verdict), int(before.Verdict))

	// And piling on low-confidence warnings does not lower it either.
	withEvenMore := withMore
	withEvenMore.IsMulticall = true
	final := e.Assess(Input{Sim: okSim(), Signals: withEvenMore})
	assert.GreaterOrEqual(t, int(final.Verdict), int(after.Verdict))
}

// At the winning severity the summary comes from the highest-confidence
// finding, with earlier rules winning strict ties.
func TestAssess_TieBreakByRuleOrder(t *testing.T) {
	e := NewEngine()

	sig := emptySignals()
	sig.IsPermit = true
	sig.IsMulticall = true

	got := e.Assess(Input{Sim: okSim(), Signals: sig})
	assert.Equal(t, VerdictWarning, got.Verdict)
	assert.Equal(t, 75, got.Confidence)
	assert.Contains(t, got.Summary, "permit")
}

func TestVerdictOrdering(t *testing.T) {
	assert.True(t, VerdictSafe < VerdictWarning)
	assert.True(t, VerdictWarning < VerdictDanger)
	assert.Equal(t, "SAFE", VerdictSafe.String())
	assert.Equal(t, "WARNING", VerdictWarning.String())
	assert.Equal(t, "DANGER", VerdictDanger.String())
}
