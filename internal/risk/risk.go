// Package risk implements explainable, rule-based risk scoring for pending
// transactions.
//
// Each transaction is evaluated against an ordered set of independent rule
// evaluators; every rule examines one concern (revert outcome, approval
// shape, transfer value, method recognizability) and contributes at most one
// finding. Findings aggregate into a single deterministic verdict with a
// confidence score and a full reasoning trail. There is no learned model
// and no shared state: the same inputs always produce the same assessment.
package risk

import "encoding/json"

// Verdict is the aggregate severity of a transaction,
// totally ordered SAFE < WARNING < DANGER.
type Verdict int

const (
	VerdictSafe Verdict = iota
	VerdictWarning
	VerdictDanger
)

func (v Verdict) String() string {
	switch v {
	case VerdictDanger:
		return "DANGER"
	case VerdictWarning:
		return "WARNING"
	default:
		return "SAFE"
	}
}

// MarshalJSON renders the verdict as its string form.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// Assessment is the result of evaluating a single transaction.
type Assessment struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence int      `json:"confidence"` // 0-100
	Summary    string   `json:"summary"`
	Reasons    []string `json:"reasons"`
}

// Finding is one rule's contribution to an assessment.
type Finding struct {
	Verdict    Verdict
	Confidence int
	Reason     string
}
