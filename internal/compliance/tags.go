package compliance

// EvidenceTag is a qualitative fact about the transaction, derived from the
// signal set or supplied by an external intelligence source.
type EvidenceTag string

const (
	TagKnownBadAddress   EvidenceTag = "known_bad_address"
	TagKnownBadContract  EvidenceTag = "known_bad_contract"
	TagUnlimitedApproval EvidenceTag = "unlimited_approval"
	TagLimitedApproval   EvidenceTag = "limited_approval"
	TagPermit            EvidenceTag = "permit"
	TagSimulationRevert  EvidenceTag = "simulation_revert"
	TagHighValue         EvidenceTag = "high_value_transfer"
	TagMulticall         EvidenceTag = "multicall"
	TagUnknownMethod     EvidenceTag = "unknown_method"
	TagEOATransfer       EvidenceTag = "eoa_transfer"
)

// Evidence is externally supplied intelligence about an address, e.g. a
// denylist lookup result.
type Evidence struct {
	Tags    []EvidenceTag `json:"tags"`
	Sources []string      `json:"sources"`
}

func deriveTags(in Input) map[EvidenceTag]bool {
	tags := make(map[EvidenceTag]bool)
	if in.Evidence != nil {
		for _, t := range in.Evidence.Tags {
			tags[t] = true
		}
	}
	if in.SimFailed {
		tags[TagSimulationRevert] = true
	}
	sig := in.Signals
	if sig == nil {
		return tags
	}
	if sig.UnlimitedApproval {
		tags[TagUnlimitedApproval] = true
	} else if len(sig.Approvals) > 0 {
		tags[TagLimitedApproval] = true
	}
	if sig.IsPermit {
		tags[TagPermit] = true
	}
	if sig.IsMulticall {
		tags[TagMulticall] = true
	}
	if sig.HighValueNativeTransfer {
		tags[TagHighValue] = true
	}
	if sig.KnownMethod == "" && in.HasCalldata {
		tags[TagUnknownMethod] = true
	}
	if in.RecipientIsAccount {
		tags[TagEOATransfer] = true
	}
	return tags
}
