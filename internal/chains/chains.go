// Package chains resolves chain IDs to RPC endpoints and display names.
//
// The registry is built once at startup from configuration and never
// mutated afterwards, so it is safe for concurrent use without locking.
// A chain with no configured endpoint is a hard failure for callers;
// there is no fallback to another chain.
package chains

import (
	"sort"
)

// Info describes one configured chain.
type Info struct {
	ChainID  string `json:"chainId"`
	Name     string `json:"name"`
	Endpoint string `json:"-"` // never exposed over the API
}

// Display names for common EVM chains. Unlisted chains render as "Chain <id>".
var chainNames = map[string]string{
	"1":        "Ethereum",
	"10":       "OP Mainnet",
	"56":       "BNB Smart Chain",
	"137":      "Polygon",
	"8453":     "Base",
	"42161":    "Arbitrum One",
	"43114":    "Avalanche C-Chain",
	"11155111": "Sepolia",
	"84532":    "Base Sepolia",
}

// Registry maps chain IDs to endpoints. Immutable after construction.
type Registry struct {
	endpoints map[string]string
}

// NewRegistry creates a registry from a chainID → endpoint URL map.
// The input map is copied; later mutation of the argument has no effect.
func NewRegistry(endpoints map[string]string) *Registry {
	copied := make(map[string]string, len(endpoints))
	for id, url := range endpoints {
		copied[id] = url
	}
	return &Registry{endpoints: copied}
}

// Endpoint returns the RPC URL for a chain, or ok=false when the chain
// is not configured.
func (r *Registry) Endpoint(chainID string) (string, bool) {
	url, ok := r.endpoints[chainID]
	return url, ok
}

// Name returns a human-readable chain name.
func Name(chainID string) string {
	if name, ok := chainNames[chainID]; ok {
		return name
	}
	return "Chain " + chainID
}

// List returns all configured chains sorted by chain ID.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.endpoints))
	for id, url := range r.endpoints {
		out = append(out, Info{ChainID: id, Name: Name(id), Endpoint: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
