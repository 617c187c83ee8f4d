package compliance

import "github.com/taker007/crypto-guardian/internal/risk"

// template is one hand-authored message shape. Every template fixes its own
// severity, and recommendations are phrased to preserve user agency
// ("consider", "verify") rather than command.
type template struct {
	severity       Severity
	title          string
	summary        string
	details        []string
	recommendation string
}

var (
	tplKnownBadAddress = template{
		severity: SeverityHigh,
		title:    "Flagged address",
		summary:  "The destination address appears on one or more threat intelligence lists.",
		details: []string{
			"The address has been reported for harmful activity",
			"Interacting with it could put your assets at risk",
		},
		recommendation: "Consider rejecting this transaction and verify the address through an independent source.",
	}

	tplKnownBadContract = template{
		severity: SeverityHigh,
		title:    "Flagged contract",
		summary:  "The contract being called appears on one or more threat intelligence lists.",
		details: []string{
			"The contract has been reported for harmful activity",
			"Interacting with it could put your assets at risk",
		},
		recommendation: "Consider rejecting this transaction and verify the contract through an independent source.",
	}

	tplUnlimitedApproval = template{
		severity: SeverityHigh,
		title:    "Unlimited approval request",
		summary:  "This transaction asks for permission to spend an unlimited amount of your tokens.",
		details: []string{
			"The spender could move your full token balance at any time",
			"The approval does not expire on its own",
		},
		recommendation: "Consider approving only the amount you intend to spend, and verify the spender address.",
	}

	tplPermit = template{
		severity: SeverityMedium,
		title:    "Token permit signature",
		summary:  "This transaction carries a signature-based token permit, which can authorize spending without a separate approval transaction.",
		details: []string{
			"Permits grant spending rights through a signature",
			"The signed amount and deadline may not be visible here",
		},
		recommendation: "Verify the permit's spender, amount, and deadline before proceeding.",
	}

	tplSimulationRevert = template{
		severity: SeverityMedium,
		title:    "Transaction likely to fail",
		summary:  "A simulation of this transaction did not complete successfully.",
		details: []string{
			"The transaction could revert and consume gas without taking effect",
			"Failure reasons include insufficient balances or missing approvals",
		},
		recommendation: "Verify the transaction parameters and account balances before proceeding.",
	}

	tplHighValue = template{
		severity: SeverityMedium,
		title:    "High-value transfer",
		summary:  "This transaction moves a significant amount of native currency.",
		details: []string{
			"Transfers are final once confirmed on chain",
		},
		recommendation: "Verify the recipient address and amount carefully before proceeding.",
	}

	tplMulticall = template{
		severity: SeverityMedium,
		title:    "Batched transaction",
		summary:  "This transaction batches several operations into a single call, which can obscure its full effect.",
		details: []string{
			"Individual operations inside the batch are not itemized here",
		},
		recommendation: "Consider reviewing each batched operation through the originating application.",
	}

	tplUnknownMethod = template{
		severity: SeverityMedium,
		title:    "Unrecognized contract call",
		summary:  "The contract method being called is not recognized, so its effect could not be classified.",
		details: []string{
			"Unrecognized methods are not necessarily harmful",
		},
		recommendation: "Consider verifying what this contract call does through the originating application.",
	}

	tplLimitedApproval = template{
		severity: SeverityLow,
		title:    "Token approval request",
		summary:  "This transaction grants a limited allowance for a spender to move your tokens.",
		details: []string{
			"The spender can move tokens up to the approved amount",
		},
		recommendation: "Verify the spender address and the approved amount match your intent.",
	}

	tplDirectTransfer = template{
		severity: SeverityLow,
		title:    "Direct transfer",
		summary:  "This transaction sends value directly to an externally-owned account.",
		details: []string{
			"Transfers are final once confirmed on chain",
		},
		recommendation: "Verify the recipient address before proceeding.",
	}

	tplNoElevatedRisk = template{
		severity:       SeverityInfo,
		title:          "No elevated risk detected",
		summary:        "No elevated risk indicators were found for this transaction.",
		recommendation: "Consider reviewing the transaction details as usual before confirming.",
	}
)

// selectTemplate picks exactly one template by fixed priority. The direct
// transfer fallback applies only when the verdict is WARNING and nothing
// higher matched.
func selectTemplate(in Input, tags map[EvidenceTag]bool) template {
	switch {
	case tags[TagKnownBadContract]:
		return tplKnownBadContract
	case tags[TagKnownBadAddress]:
		return tplKnownBadAddress
	case tags[TagUnlimitedApproval]:
		return tplUnlimitedApproval
	case tags[TagPermit]:
		return tplPermit
	case tags[TagSimulationRevert]:
		return tplSimulationRevert
	case tags[TagHighValue]:
		return tplHighValue
	case tags[TagMulticall]:
		return tplMulticall
	case tags[TagUnknownMethod]:
		return tplUnknownMethod
	case tags[TagLimitedApproval]:
		return tplLimitedApproval
	case in.Verdict == risk.VerdictWarning:
		return tplDirectTransfer
	default:
		return tplNoElevatedRisk
	}
}
