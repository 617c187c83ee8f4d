package simulation

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/taker007/crypto-guardian/internal/circuitbreaker"
	"github.com/taker007/crypto-guardian/internal/metrics"
	"github.com/taker007/crypto-guardian/internal/retry"
)

// DefaultTimeout bounds every chain call. Simulation is advisory; a slow
// endpoint degrades to "could not verify" instead of stalling the caller.
const DefaultTimeout = 2500 * time.Millisecond

// Transport failures get one retry with a short backoff. Errors the node
// itself answered with (reverts, unknown methods) are never retried.
const (
	retryAttempts  = 2
	retryBaseDelay = 100 * time.Millisecond
)

// The per-chain circuit trips after this many consecutive transport
// failures and probes again after the open duration.
const (
	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second
)

// EndpointResolver maps a chain ID to its RPC endpoint URL.
type EndpointResolver interface {
	Endpoint(chainID string) (string, bool)
}

// Client issues read-only JSON-RPC calls against per-chain endpoints.
// Connections are dialed lazily and cached per chain.
type Client struct {
	resolver EndpointResolver
	timeout  time.Duration
	logger   *slog.Logger
	breaker  *circuitbreaker.Breaker

	mu    sync.Mutex
	conns map[string]*rpc.Client
}

// Option configures the client
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a simulation client backed by the given resolver.
func NewClient(resolver EndpointResolver, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		breaker:  circuitbreaker.New(breakerThreshold, breakerOpenFor),
		conns:    make(map[string]*rpc.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker.OnTransition(func(chainID string, from, to circuitbreaker.State) {
		c.logger.Warn("endpoint circuit state changed",
			"chain_id", chainID,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return c
}

// conn returns the cached RPC connection for a chain, dialing on first use.
func (c *Client) conn(ctx context.Context, chainID string) (*rpc.Client, error) {
	endpoint, ok := c.resolver.Endpoint(chainID)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoEndpoint, chainID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[chainID]; ok {
		return conn, nil
	}
	conn, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.conns[chainID] = conn
	return conn, nil
}

// call runs one JSON-RPC method with a per-attempt timeout, a single retry
// on transport failure, and the per-chain circuit breaker. Errors the node
// answered with pass through unretried; asking again gets the same answer.
func (c *Client) call(ctx context.Context, chainID, method string, result any, args ...any) error {
	if !c.breaker.Allow(chainID) {
		return fmt.Errorf("%w: chain %s", ErrCircuitOpen, chainID)
	}

	conn, err := c.conn(ctx, chainID)
	if err != nil {
		if !errors.Is(err, ErrNoEndpoint) {
			c.breaker.RecordFailure(chainID)
		}
		return err
	}

	err = retry.Do(ctx, retryAttempts, retryBaseDelay, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		callErr := conn.CallContext(callCtx, result, method, args...)
		if callErr != nil && isNodeError(callErr) {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	if err != nil && !isNodeError(err) {
		c.breaker.RecordFailure(chainID)
		return err
	}
	// The node is reachable, whatever it answered.
	c.breaker.RecordSuccess(chainID)
	return err
}

// isNodeError reports whether err came back from the node itself, as
// opposed to a failure to reach it.
func isNodeError(err error) bool {
	var re rpc.Error
	return errors.As(err, &re)
}

// isInfraError reports whether err means the chain could not be asked.
func isInfraError(err error) bool {
	return errors.Is(err, ErrNoEndpoint) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrCircuitOpen)
}

// Simulate runs the transaction through eth_call. Failures of any kind are
// encoded in the Result; Simulate itself never returns an error.
func (c *Client) Simulate(ctx context.Context, chainID string, req Request) Result {
	var out hexutil.Bytes
	if err := c.call(ctx, chainID, "eth_call", &out, callObject(req), "latest"); err != nil {
		if isInfraError(err) {
			metrics.RPCCallsTotal.WithLabelValues("eth_call", "error").Inc()
			return Result{Success: false, RevertReason: err.Error()}
		}
		metrics.RPCCallsTotal.WithLabelValues("eth_call", "revert").Inc()
		reason := decodeCallError(err)
		c.logger.Debug("simulation reverted", "chain_id", chainID, "reason", reason)
		return Result{Success: false, RevertReason: reason}
	}
	metrics.RPCCallsTotal.WithLabelValues("eth_call", "ok").Inc()

	// Some backends return a revert payload inside a successful envelope.
	if reason := DecodeRevertData(out); reason != "" {
		return Result{Success: false, ReturnData: out, RevertReason: reason}
	}

	return Result{Success: true, ReturnData: out}
}

// GetCode fetches the bytecode at an address. Empty code is a valid result
// distinct from failure; the error is non-nil only on transport problems.
func (c *Client) GetCode(ctx context.Context, chainID, address string) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.call(ctx, chainID, "eth_getCode", &code, address, "latest"); err != nil {
		metrics.RPCCallsTotal.WithLabelValues("eth_getCode", "error").Inc()
		if isInfraError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	metrics.RPCCallsTotal.WithLabelValues("eth_getCode", "ok").Inc()

	if code == nil {
		code = []byte{}
	}
	return code, nil
}

// TraceCall runs a best-effort debug_traceCall with the call tracer.
// Backends without tracing yield Supported=false and a nil error.
func (c *Client) TraceCall(ctx context.Context, chainID string, req Request) (TraceOutcome, error) {
	var raw json.RawMessage
	err := c.call(ctx, chainID, "debug_traceCall", &raw, callObject(req), "latest",
		map[string]any{"tracer": "callTracer"})
	if err != nil {
		if isMethodNotFound(err) {
			return TraceOutcome{Supported: false}, nil
		}
		metrics.RPCCallsTotal.WithLabelValues("debug_traceCall", "error").Inc()
		if isInfraError(err) {
			return TraceOutcome{}, err
		}
		return TraceOutcome{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	metrics.RPCCallsTotal.WithLabelValues("debug_traceCall", "ok").Inc()
	return TraceOutcome{Supported: true, Frames: raw}, nil
}

// Close closes all cached connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.conns {
		conn.Close()
		delete(c.conns, id)
	}
}

// callObject builds the minimal eth_call parameter object, omitting
// value/gas when zero or absent.
func callObject(req Request) map[string]any {
	call := map[string]any{"to": req.To}
	if req.From != "" {
		call["from"] = req.From
	}
	if req.Data != "" && req.Data != "0x" {
		call["data"] = req.Data
	}
	if req.Value != "" && !isZeroHex(req.Value) {
		call["value"] = req.Value
	}
	if req.Gas != "" && !isZeroHex(req.Gas) {
		call["gas"] = req.Gas
	}
	return call
}

func isZeroHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	for i := 0; i < len(s); i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}

// decodeCallError extracts the most specific revert reason available from
// an eth_call error: structured error data first, then the message text.
func decodeCallError(err error) string {
	if de, ok := err.(rpc.DataError); ok {
		if blob, ok := de.ErrorData().(string); ok {
			if data, decErr := hex.DecodeString(strings.TrimPrefix(blob, "0x")); decErr == nil {
				if reason := DecodeRevertData(data); reason != "" {
					return reason
				}
			}
		}
	}
	return DecodeRevertMessage(err.Error())
}

// isMethodNotFound reports whether an RPC error means the backend does not
// offer the requested method.
func isMethodNotFound(err error) bool {
	if re, ok := err.(rpc.Error); ok && re.ErrorCode() == -32601 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "does not exist")
}
