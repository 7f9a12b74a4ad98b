package paywall

import (
	"net/http"
	"sort"
	"strings"

	"github.com/agentgate/paygate/pkg/protocol"
	goccyjson "github.com/goccy/go-json"
)

// DiscoveryPath is where the gateway's discovery document is served.
const DiscoveryPath = "/.well-known/x-agentgate.json"

// BuildDiscoveryDocument renders the middleware's current pricing table
// into the discovery document described in spec §6. Endpoints are sorted
// for deterministic output.
func (m *Middleware) BuildDiscoveryDocument(name string) protocol.DiscoveryDocument {
	snapshot := m.Pricing.Snapshot()

	endpoints := make([]protocol.DiscoveryEndpoint, 0, len(snapshot))
	for key, entry := range snapshot {
		method, path := splitEndpointKey(key)
		endpoints = append(endpoints, protocol.DiscoveryEndpoint{
			Method:      method,
			Path:        path,
			Price:       entry.Amount,
			Description: entry.Description,
		})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})

	return protocol.DiscoveryDocument{
		Name:    name,
		Version: protocol.Version,
		Chain:   protocol.DiscoveryChain{ID: m.ChainID, Name: m.ChainName},
		Token: protocol.TokenInfo{
			Symbol:   m.Token.Symbol,
			Address:  m.Token.Address,
			Decimals: m.Token.Decimals,
		},
		Recipient: m.Recipient,
		Endpoints: endpoints,
	}
}

// DiscoveryHandler serves the discovery document. The same JSON serves
// both human and machine readers; content negotiation is intentionally
// not implemented (spec §6).
func (m *Middleware) DiscoveryHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := m.BuildDiscoveryDocument(name)
		w.Header().Set("Content-Type", "application/json")
		if err := goccyjson.NewEncoder(w).Encode(doc); err != nil {
			m.logger().Error("failed to encode discovery document", "error", err)
		}
	}
}

func splitEndpointKey(key string) (method, path string) {
	idx := strings.IndexByte(key, ' ')
	if idx < 0 {
		return key, ""
	}
	return key[:idx], key[idx+1:]
}
