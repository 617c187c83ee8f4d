package risk

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/taker007/crypto-guardian/internal/signals"
	"github.com/taker007/crypto-guardian/internal/simulation"
)

// Input carries everything a rule may examine. All fields are request-local;
// the engine never reaches out to the network.
type Input struct {
	Sim                simulation.Result
	Signals            *signals.Set
	RecipientIsAccount bool
	Calldata           []byte
	Value              *big.Int
}

// rule evaluates one disjoint concern and returns at most one finding.
type rule func(in Input) *Finding

// Confidence tiers per rule. The unlimited-approval rule grades by what is
// known about the spender: an externally-owned spender is the worst case,
// an unclassifiable one sits between the two definite answers.
const (
	confRevertDanger      = 85
	confRevertWarning     = 70
	confUnlimitedToEOA    = 95
	confUnlimitedContract = 90
	confUnlimitedUnknown  = 85
	confLimitedApproval   = 50
	confPermit            = 75
	confHighValue         = 60
	confUnknownMethod     = 40
	confDirectTransfer    = 30
	confMulticall         = 55
	confNoFindings        = 70
)

// Revert reasons that indicate the transaction is set up to fail against
// current chain state, rather than merely unverifiable.
var dangerousRevertPatterns = []string{
	"insufficient balance",
	"insufficient allowance",
	"insufficient funds",
	"exceeds balance",
	"exceeds allowance",
	"execution reverted",
	"reverted",
}

// Engine aggregates rule findings into one assessment. The rule order is
// fixed at construction and doubles as the tie-break order.
type Engine struct {
	rules []rule
}

// NewEngine creates a scoring engine with the standard rule set.
func NewEngine() *Engine {
	return &Engine{
		rules: []rule{
			revertRule,
			unlimitedApprovalRule,
			limitedApprovalRule,
			permitRule,
			highValueRule,
			unknownMethodRule,
			directTransferRule,
			multicallRule,
		},
	}
}

// Assess runs every rule over the input and aggregates the findings.
//
// The verdict is the maximum severity among fired rules; the confidence is
// the maximum confidence among rules at that severity; the summary comes
// from the highest-confidence rule at the winning severity, ties broken by
// rule order. Every fired rule's reason appears in Reasons in rule order,
// even when it did not determine the verdict, so the trail stays auditable.
func (e *Engine) Assess(in Input) *Assessment {
	var findings []*Finding
	for _, r := range e.rules {
		if f := r(in); f != nil {
			findings = append(findings, f)
		}
	}

	if len(findings) == 0 {
		return &Assessment{
			Verdict:    VerdictSafe,
			Confidence: confNoFindings,
			Summary:    "No elevated risk indicators detected",
			Reasons: []string{
				"No known risk patterns matched",
				"Simulation completed without findings",
			},
		}
	}

	verdict := VerdictSafe
	for _, f := range findings {
		if f.Verdict > verdict {
			verdict = f.Verdict
		}
	}

	// Highest confidence at the winning severity; first in rule order wins
	// ties. The strict > keeps the tie-break deterministic.
	var top *Finding
	for _, f := range findings {
		if f.Verdict != verdict {
			continue
		}
		if top == nil || f.Confidence > top.Confidence {
			top = f
		}
	}

	reasons := make([]string, len(findings))
	for i, f := range findings {
		reasons[i] = f.Reason
	}

	return &Assessment{
		Verdict:    verdict,
		Confidence: top.Confidence,
		Summary:    top.Reason,
		Reasons:    reasons,
	}
}

// revertRule fires when simulation failed. Known-dangerous reasons are
// DANGER; anything else (including transport trouble) is a could-not-verify
// WARNING, never silently SAFE.
func revertRule(in Input) *Finding {
	if in.Sim.Success {
		return nil
	}

	reason := in.Sim.RevertReason
	if reason == "" {
		reason = "no reason available"
	}

	lower := strings.ToLower(reason)
	for _, pattern := range dangerousRevertPatterns {
		if strings.Contains(lower, pattern) {
			return &Finding{
				Verdict:    VerdictDanger,
				Confidence: confRevertDanger,
				Reason:     fmt.Sprintf("Simulation indicates the transaction would fail: %s", reason),
			}
		}
	}

	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confRevertWarning,
		Reason:     fmt.Sprintf("Simulation could not verify the transaction: %s", reason),
	}
}

func unlimitedApprovalRule(in Input) *Finding {
	if in.Signals == nil || !in.Signals.UnlimitedApproval {
		return nil
	}

	confidence := confUnlimitedUnknown
	detail := "a spender that could not be classified"
	switch in.Signals.SpenderIsContract {
	case signals.TriFalse:
		confidence = confUnlimitedToEOA
		detail = "an externally-owned account"
	case signals.TriTrue:
		confidence = confUnlimitedContract
		detail = "a contract"
	}

	return &Finding{
		Verdict:    VerdictDanger,
		Confidence: confidence,
		Reason:     fmt.Sprintf("Requests unlimited token approval for %s", detail),
	}
}

func limitedApprovalRule(in Input) *Finding {
	if in.Signals == nil || len(in.Signals.Approvals) == 0 || in.Signals.UnlimitedApproval {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confLimitedApproval,
		Reason:     "Requests a limited token spending approval",
	}
}

func permitRule(in Input) *Finding {
	if in.Signals == nil || !in.Signals.IsPermit {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confPermit,
		Reason:     "Contains a signature-based token permit",
	}
}

func highValueRule(in Input) *Finding {
	if in.Signals == nil || !in.Signals.HighValueNativeTransfer {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confHighValue,
		Reason:     "Transfers a high value of native currency",
	}
}

// unknownMethodRule fires for calldata whose selector the registry does not
// recognize, sent to something that is not a plain account.
func unknownMethodRule(in Input) *Finding {
	if in.Signals == nil || in.Signals.KnownMethod != "" {
		return nil
	}
	if len(in.Calldata) == 0 || in.RecipientIsAccount {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confUnknownMethod,
		Reason:     "Calls an unrecognized contract method",
	}
}

func directTransferRule(in Input) *Finding {
	if !in.RecipientIsAccount || in.Value == nil || in.Value.Sign() <= 0 {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confDirectTransfer,
		Reason:     "Sends value directly to an externally-owned account",
	}
}

func multicallRule(in Input) *Finding {
	if in.Signals == nil || !in.Signals.IsMulticall {
		return nil
	}
	return &Finding{
		Verdict:    VerdictWarning,
		Confidence: confMulticall,
		Reason:     "Batches multiple operations in a single transaction",
	}
}
