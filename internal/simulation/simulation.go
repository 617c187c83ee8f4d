// Package simulation performs read-only chain calls for pending transactions.
//
// A simulation never mutates chain state and never signs anything: it runs
// the transaction through eth_call against the target chain, decodes any
// revert payload into a human-readable reason, and reports the outcome as a
// plain value. Transport failures and timeouts are folded into the result
// rather than raised, so downstream scoring always receives a well-formed
// (if degraded) input.
package simulation

import (
	"errors"
)

// Typed errors for programmatic handling
var (
	ErrNoEndpoint  = errors.New("simulation: no endpoint configured for chain")
	ErrTransport   = errors.New("simulation: transport failure")
	ErrCircuitOpen = errors.New("simulation: endpoint circuit open")
)

// Request describes the transaction to simulate. All byte-string fields are
// 0x-prefixed hex; Value and Gas may be empty when zero/absent.
type Request struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
	Gas   string `json:"gas,omitempty"`
}

// Result is the outcome of one simulation. A failed simulation always
// carries a RevertReason unless the backend itself errored with an
// unparsable message.
type Result struct {
	Success      bool   `json:"success"`
	ReturnData   []byte `json:"-"`
	RevertReason string `json:"revertReason,omitempty"`
}

// TraceOutcome is the best-effort result of a call trace. Supported=false
// means the backend does not offer tracing; callers must not treat that as
// a simulation failure.
type TraceOutcome struct {
	Supported bool
	Frames    []byte // raw tracer JSON, opaque to this package
}
