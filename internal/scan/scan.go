// Package scan orchestrates the transaction analysis pipeline.
//
// One scan is one stateless unit of work: simulate the call, extract
// calldata signals, score the findings, and build the compliant message.
// Sub-operation failures degrade the inputs to the next stage; they never
// abort the scan.
package scan

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/taker007/crypto-guardian/internal/compliance"
	"github.com/taker007/crypto-guardian/internal/denylist"
	"github.com/taker007/crypto-guardian/internal/logging"
	"github.com/taker007/crypto-guardian/internal/metrics"
	"github.com/taker007/crypto-guardian/internal/risk"
	"github.com/taker007/crypto-guardian/internal/signals"
	"github.com/taker007/crypto-guardian/internal/simulation"
	"github.com/taker007/crypto-guardian/internal/traces"
)

// Request identifies a pending transaction to analyze
type Request struct {
	ChainID string `json:"chainId" binding:"required"`
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Data    string `json:"data"`
	Value   string `json:"value,omitempty"`
	Gas     string `json:"gas,omitempty"`
}

// Signals is the signal summary exposed in scan responses
type Signals struct {
	KnownMethod             *string            `json:"knownMethod"` // null when unrecognized
	Approvals               []signals.Approval `json:"approvals"`
	Transfers               []signals.Transfer `json:"transfers"`
	UnlimitedApproval       bool               `json:"unlimitedApproval"`
	SpenderIsContract       signals.TriState   `json:"spenderIsContract"`
	HighValueNativeTransfer bool               `json:"highValueNativeTransfer"`
	IsPermit                bool               `json:"isPermit"`
	IsMulticall             bool               `json:"isMulticall"`
}

// Response is the full scan result
type Response struct {
	Verdict    risk.Verdict       `json:"verdict"`
	Confidence int                `json:"confidence"`
	Summary    string             `json:"summary"`
	Reasons    []string           `json:"reasons"`
	Signals    Signals            `json:"signals"`
	Message    compliance.Message `json:"message"`

	// Aliases kept for older extension clients.
	RiskLevel string   `json:"riskLevel"`
	RiskScore int      `json:"riskScore"`
	Findings  []string `json:"findings"`
}

// Simulator is the chain access the pipeline needs
type Simulator interface {
	Simulate(ctx context.Context, chainID string, req simulation.Request) simulation.Result
	GetCode(ctx context.Context, chainID, address string) ([]byte, error)
}

// Extractor classifies calldata into signals
type Extractor interface {
	Extract(ctx context.Context, chainID, from, to string, calldata []byte, value *big.Int) *signals.Set
}

// Service runs the scan pipeline
type Service struct {
	sim     Simulator
	extract Extractor
	engine  *risk.Engine
	deny    denylist.Store
	budget  time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithDenylist attaches an address intelligence store
func WithDenylist(store denylist.Store) Option {
	return func(s *Service) { s.deny = store }
}

// WithBudget caps the end-to-end time for one scan
func WithBudget(d time.Duration) Option {
	return func(s *Service) { s.budget = d }
}

// NewService creates a scan service
func NewService(sim Simulator, extract Extractor, opts ...Option) *Service {
	s := &Service{
		sim:     sim,
		extract: extract,
		engine:  risk.NewEngine(),
		budget:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan analyzes one pending transaction. It always returns a well-formed
// response; degraded chain access surfaces as WARNING-level findings, not
// errors.
func (s *Service) Scan(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	ctx = logging.WithChainID(ctx, req.ChainID)
	ctx, span := traces.StartSpan(ctx, "scan.pipeline",
		traces.ChainID(req.ChainID),
		traces.ToAddr(strings.ToLower(req.To)),
	)
	defer span.End()

	start := time.Now()

	calldata, err := decodeHex(req.Data)
	if err != nil {
		return nil, err
	}
	value, err := decodeQuantity(req.Value)
	if err != nil {
		return nil, err
	}

	sim := s.sim.Simulate(ctx, req.ChainID, simulation.Request{
		From:  req.From,
		To:    req.To,
		Data:  req.Data,
		Value: req.Value,
		Gas:   req.Gas,
	})

	sig := s.extract.Extract(ctx, req.ChainID, req.From, req.To, calldata, value)

	// The recipient is only classified when there is calldata to interpret;
	// a plain value transfer stays neutral.
	recipientIsAccount := false
	if len(calldata) > 0 {
		code, err := s.sim.GetCode(ctx, req.ChainID, req.To)
		if err == nil && len(code) == 0 {
			recipientIsAccount = true
		}
	}

	assessment := s.engine.Assess(risk.Input{
		Sim:                sim,
		Signals:            sig,
		RecipientIsAccount: recipientIsAccount,
		Calldata:           calldata,
		Value:              value,
	})

	evidence := s.gatherEvidence(ctx, req.To, sig)

	msg := compliance.Build(compliance.Input{
		Verdict:            assessment.Verdict,
		Confidence:         assessment.Confidence,
		Signals:            sig,
		SimFailed:          !sim.Success,
		HasCalldata:        len(calldata) > 0,
		RecipientIsAccount: recipientIsAccount,
		Evidence:           evidence,
	})

	span.SetAttributes(traces.Verdict(assessment.Verdict.String()))
	if sel := signals.Selector(calldata); sel != "" {
		span.SetAttributes(traces.Selector(sel))
	}

	metrics.ScansTotal.WithLabelValues(assessment.Verdict.String()).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	logging.L(ctx).Info("scan complete",
		"to", strings.ToLower(req.To),
		"verdict", assessment.Verdict.String(),
		"confidence", assessment.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Response{
		Verdict:    assessment.Verdict,
		Confidence: assessment.Confidence,
		Summary:    assessment.Summary,
		Reasons:    assessment.Reasons,
		Signals:    summarizeSignals(sig),
		Message:    msg,
		RiskLevel:  assessment.Verdict.String(),
		RiskScore:  assessment.Confidence,
		Findings:   assessment.Reasons,
	}, nil
}

// gatherEvidence checks the recipient and any approval spenders against the
// denylist. Lookup failures are ignored; missing intelligence must not block
// a scan.
func (s *Service) gatherEvidence(ctx context.Context, to string, sig *signals.Set) *compliance.Evidence {
	if s.deny == nil {
		return nil
	}

	addresses := []string{to}
	if sig != nil {
		for _, a := range sig.Approvals {
			addresses = append(addresses, a.Spender)
		}
	}

	seen := make(map[string]bool)
	var evidence *compliance.Evidence
	for _, addr := range addresses {
		norm := denylist.Normalize(addr)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true

		entries, err := s.deny.Lookup(ctx, norm)
		if err != nil {
			if !errors.Is(err, denylist.ErrNotFound) {
				logging.L(ctx).Warn("denylist lookup failed", "address", norm, "error", err)
			}
			continue
		}
		if evidence == nil {
			evidence = &compliance.Evidence{}
			metrics.DenylistHitsTotal.Inc()
		}
		for _, e := range entries {
			evidence.Tags = appendUniqueTag(evidence.Tags, compliance.EvidenceTag(e.Tag))
			evidence.Sources = appendUnique(evidence.Sources, e.Source)
		}
	}
	return evidence
}

func summarizeSignals(sig *signals.Set) Signals {
	out := Signals{
		Approvals:         []signals.Approval{},
		Transfers:         []signals.Transfer{},
		SpenderIsContract: signals.TriUnknown,
	}
	if sig == nil {
		return out
	}
	if sig.KnownMethod != "" {
		name := sig.KnownMethod
		out.KnownMethod = &name
	}
	if sig.Approvals != nil {
		out.Approvals = sig.Approvals
	}
	if sig.Transfers != nil {
		out.Transfers = sig.Transfers
	}
	out.UnlimitedApproval = sig.UnlimitedApproval
	out.SpenderIsContract = sig.SpenderIsContract
	out.HighValueNativeTransfer = sig.HighValueNativeTransfer
	out.IsPermit = sig.IsPermit
	out.IsMulticall = sig.IsMulticall
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func appendUniqueTag(list []compliance.EvidenceTag, v compliance.EvidenceTag) []compliance.EvidenceTag {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodeQuantity(s string) (*big.Int, error) {
	if s == "" || s == "0x" || s == "0x0" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return nil, errors.New("malformed hex quantity")
	}
	return v, nil
}
