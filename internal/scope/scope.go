// Package scope implements the access-control policy consulted by every
// Tool Surface operation before it reaches the Memory Store. It resolves an
// agent identity to the set of scope names that agent may read or write.
package scope

import (
	"sort"
)

// DefaultScopeName is the scope written when a caller supplies none and the
// scope an undeclared agent is restricted to.
const DefaultScopeName = "global"

// Config is the process-wide, read-mostly scope configuration. It mirrors
// the Scope Configuration of the data model: a default scope, the set of
// declared scope names, and a per-agent access map.
type Config struct {
	// Default is the scope name written when the caller supplies none.
	Default string `yaml:"default" json:"default"`

	// Definitions is the set of declared scope names. A scope not listed
	// here is still storable (scope is a free-form string on write) but
	// will never be granted to an agent beyond Default.
	Definitions []string `yaml:"definitions" json:"definitions"`

	// AgentAccess maps an agent identity to the subset of scopes it may
	// read/write. An agent absent from this map gets Default only.
	AgentAccess map[string][]string `yaml:"agent_access" json:"agent_access"`
}

// DefaultConfig returns a configuration with only the default scope
// declared and no per-agent grants, i.e. every agent is confined to
// "global".
func DefaultConfig() Config {
	return Config{
		Default:     DefaultScopeName,
		Definitions: []string{DefaultScopeName},
		AgentAccess: map[string][]string{},
	}
}

// Stats reports a snapshot of the policy's shape, returned by getStats.
type Stats struct {
	TotalScopes    int
	TotalAgents    int
	DeclaredScopes []string
	DefaultScope   string
}

// Manager is an immutable, in-memory policy engine built from a Config. It
// is safe for concurrent read access from multiple goroutines; it exposes
// no mutation methods after construction.
type Manager struct {
	defaultScope string
	declared     map[string]struct{}
	declaredList []string
	agentAccess  map[string]map[string]struct{}
}

// New builds a Manager from cfg. An empty cfg.Default falls back to
// DefaultScopeName. The default scope is always implicitly declared and
// always implicitly accessible to every agent, even one with an explicit
// AgentAccess entry that omits it, so every agent retains at least
// baseline access.
func New(cfg Config) *Manager {
	def := cfg.Default
	if def == "" {
		def = DefaultScopeName
	}

	declared := make(map[string]struct{}, len(cfg.Definitions)+1)
	declared[def] = struct{}{}
	for _, s := range cfg.Definitions {
		declared[s] = struct{}{}
	}
	declaredList := make([]string, 0, len(declared))
	for s := range declared {
		declaredList = append(declaredList, s)
	}
	sort.Strings(declaredList)

	agentAccess := make(map[string]map[string]struct{}, len(cfg.AgentAccess))
	for agent, scopes := range cfg.AgentAccess {
		set := make(map[string]struct{}, len(scopes)+1)
		set[def] = struct{}{}
		for _, s := range scopes {
			if _, ok := declared[s]; ok {
				set[s] = struct{}{}
			}
		}
		agentAccess[agent] = set
	}

	return &Manager{
		defaultScope: def,
		declared:     declared,
		declaredList: declaredList,
		agentAccess:  agentAccess,
	}
}

// GetAccessibleScopes returns the sorted set of scope names agentID may
// read or write. An agent with no AgentAccess entry gets only the default
// scope; denial is the default for undeclared agents.
func (m *Manager) GetAccessibleScopes(agentID string) []string {
	set, ok := m.agentAccess[agentID]
	if !ok {
		return []string{m.defaultScope}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IsAccessible reports whether agentID may read or write scope.
func (m *Manager) IsAccessible(scope, agentID string) bool {
	set, ok := m.agentAccess[agentID]
	if !ok {
		return scope == m.defaultScope
	}
	_, allowed := set[scope]
	return allowed
}

// GetDefaultScope returns the scope name written when agentID supplies
// none on a write. The default scope is process-wide today; the accessor
// takes agentID so a per-agent default can land without a breaking change.
func (m *Manager) GetDefaultScope(agentID string) string {
	return m.defaultScope
}

// GetStats returns a snapshot of the policy's shape.
func (m *Manager) GetStats() Stats {
	return Stats{
		TotalScopes:    len(m.declared),
		TotalAgents:    len(m.agentAccess),
		DeclaredScopes: append([]string(nil), m.declaredList...),
		DefaultScope:   m.defaultScope,
	}
}
