package denylist

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for testing and
// endpoint-less deployments
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]*Entry // address -> entries
}

// NewMemoryStore creates a new in-memory denylist store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]*Entry)}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// Add records an entry, replacing any prior report from the same source
func (m *MemoryStore) Add(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.entries[entry.Address]
	for i, e := range existing {
		if e.Source == entry.Source {
			existing[i] = entry
			return nil
		}
	}
	m.entries[entry.Address] = append(existing, entry)
	return nil
}

// Lookup returns all entries for an address
func (m *MemoryStore) Lookup(ctx context.Context, address string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.entries[Normalize(address)]
	if !ok || len(entries) == 0 {
		return nil, ErrNotFound
	}
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		copy := *e
		out[i] = &copy
	}
	return out, nil
}

// Remove deletes a single source's report for an address
func (m *MemoryStore) Remove(ctx context.Context, address, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := Normalize(address)
	entries := m.entries[addr]
	for i, e := range entries {
		if e.Source == source {
			m.entries[addr] = append(entries[:i], entries[i+1:]...)
			if len(m.entries[addr]) == 0 {
				delete(m.entries, addr)
			}
			return nil
		}
	}
	return ErrNotFound
}

// List returns entries ordered by address then source
func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Entry
	for _, entries := range m.entries {
		for _, e := range entries {
			copy := *e
			all = append(all, &copy)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Address != all[j].Address {
			return all[i].Address < all[j].Address
		}
		return all[i].Source < all[j].Source
	})

	if offset >= len(all) {
		return []*Entry{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
