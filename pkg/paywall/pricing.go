package paywall

import "sync"

// PricingEntry is one row of the pricing table: the decimal-string amount
// charged for a priced endpoint, an optional human description, and an
// optional token-symbol override (falling back to the middleware's
// default token when empty).
type PricingEntry struct {
	Amount        string
	Description   string
	TokenOverride string
}

// EndpointKey builds the pricing table's lookup key, "METHOD path",
// exact-match only — path parameters are never wildcarded (spec §4.3).
func EndpointKey(method, path string) string {
	return method + " " + path
}

// PricingTable is the shared, mostly-read pricing table. It is safe for
// concurrent use: Lookup takes a read lock, Set/Delete take an exclusive
// lock. Entries are treated as immutable once published — callers should
// not mutate a PricingEntry obtained from Lookup.
type PricingTable struct {
	mu      sync.RWMutex
	entries map[string]PricingEntry
}

// NewPricingTable builds a table from an initial endpoint->entry map.
func NewPricingTable(initial map[string]PricingEntry) *PricingTable {
	entries := make(map[string]PricingEntry, len(initial))
	for k, v := range initial {
		entries[k] = v
	}
	return &PricingTable{entries: entries}
}

// Lookup returns the pricing entry for "METHOD path", if any.
func (t *PricingTable) Lookup(method, path string) (PricingEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[EndpointKey(method, path)]
	return entry, ok
}

// Set publishes or replaces the pricing entry for "METHOD path". Intended
// to be called only during reconfiguration, never from a request-serving
// goroutine (spec §5, "Pricing table ... mutated only at reconfiguration
// under exclusive access").
func (t *PricingTable) Set(method, path string, entry PricingEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[EndpointKey(method, path)] = entry
}

// Delete removes the pricing entry for "METHOD path", making it UNPRICED.
func (t *PricingTable) Delete(method, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, EndpointKey(method, path))
}

// Snapshot returns a defensive copy of the full table, for discovery
// document rendering.
func (t *PricingTable) Snapshot() map[string]PricingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]PricingEntry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}
