package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gitlab.com/nevasik7/alerting/logger"
)

// Declared contract set for one protocol
type Protocol struct {
	Contracts []string `json:"contracts"`
	Category  string   `json:"category,omitempty"`
}

// Registry maps protocol name -> contracts. Built once per run from the
// JSON config, immutable afterwards.
type Registry struct {
	log       logger.Logger
	protocols map[string]Protocol
}

// Load parses the protocol mapping. An absent file is a valid empty state
// (warn only) so the tool still runs with a pure wallet-to-wallet view;
// malformed JSON is an error. Contract addresses are lowercased on load.
func Load(log logger.Logger, path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Protocol registry %s not found, continuing with empty registry", path)
			return &Registry{log: log, protocols: map[string]Protocol{}}, nil
		}
		return nil, fmt.Errorf("failed read registry %s, error=%w", path, err)
	}

	var raw map[string]Protocol
	if err = json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed parse registry %s, error=%w", path, err)
	}

	for name, p := range raw {
		for i, addr := range p.Contracts {
			p.Contracts[i] = strings.ToLower(addr)
		}
		raw[name] = p
	}

	log.Infof("Loaded protocol registry: %d protocols from %s", len(raw), path)
	return &Registry{log: log, protocols: raw}, nil
}

func (r *Registry) Len() int {
	return len(r.protocols)
}

// ReverseIndex builds the address -> protocol lookup the aggregator
// classifies with. Protocols are walked in sorted name order so a duplicate
// address resolves the same way on every run: the later name wins, and the
// collision is logged because two protocols claiming one contract is almost
// certainly a registry mistake.
func (r *Registry) ReverseIndex() map[string]string {
	names := make([]string, 0, len(r.protocols))
	for name := range r.protocols {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := make(map[string]string)
	for _, name := range names {
		for _, addr := range r.protocols[name].Contracts {
			if prev, ok := idx[addr]; ok && prev != name {
				r.log.Warnf("Address %s declared by both %s and %s, keeping %s", addr, prev, name, name)
			}
			idx[addr] = name
		}
	}

	return idx
}
