// Package compliance builds the user-facing explanation of a risk
// assessment.
//
// The builder is pure: it maps a verdict plus the extracted signal set (and
// any externally supplied evidence, such as a denylist hit) onto exactly one
// hand-authored template, then bounds and sanitizes every text field. The
// output never uses absolute language - warnings say what could happen, not
// what will.
package compliance

import (
	"strings"

	"github.com/taker007/crypto-guardian/internal/risk"
	"github.com/taker007/crypto-guardian/internal/signals"
)

// Severity grades a message for display purposes
type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Message is the bounded, compliant explanation shown to the user
type Message struct {
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`   // max 40 chars
	Summary        string   `json:"summary"` // max 200 chars
	Details        []string `json:"details"` // max 4 entries
	Recommendation string   `json:"recommendation"`
	Confidence     int      `json:"confidence"` // 0-100
}

// Input carries everything the builder needs. Build performs no I/O; all
// network-derived facts arrive pre-resolved.
type Input struct {
	Verdict            risk.Verdict
	Confidence         int
	Signals            *signals.Set
	SimFailed          bool
	HasCalldata        bool
	RecipientIsAccount bool
	Evidence           *Evidence
}

const (
	maxTitleLen   = 40
	maxSummaryLen = 200
	maxDetails    = 4
)

// Build selects the single highest-priority template for the input and
// returns it bounded and sanitized.
func Build(in Input) Message {
	tags := deriveTags(in)
	tpl := selectTemplate(in, tags)

	details := make([]string, 0, maxDetails)
	details = append(details, tpl.details...)
	if in.Evidence != nil && len(in.Evidence.Sources) > 0 &&
		(tags[TagKnownBadAddress] || tags[TagKnownBadContract]) {
		details = append(details, "Reported by: "+strings.Join(in.Evidence.Sources, ", "))
	}
	if spender := approvalSpender(in.Signals); spender != "" && tags[TagUnlimitedApproval] {
		details = append(details, "Spender: "+spender)
	}
	if len(details) > maxDetails {
		details = details[:maxDetails]
	}

	msg := Message{
		Severity:       tpl.severity,
		Title:          Sanitize(truncate(tpl.title, maxTitleLen)),
		Summary:        Sanitize(truncate(tpl.summary, maxSummaryLen)),
		Details:        make([]string, len(details)),
		Recommendation: Sanitize(tpl.recommendation),
		Confidence:     clampConfidence(in.Confidence),
	}
	for i, d := range details {
		msg.Details[i] = Sanitize(d)
	}
	return msg
}

func approvalSpender(sig *signals.Set) string {
	if sig == nil || len(sig.Approvals) == 0 {
		return ""
	}
	return sig.Approvals[0].Spender
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
