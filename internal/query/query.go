package query

import (
	"fmt"
	"strings"

	"SupplyRadar/internal/domain"
)

// Built-in strategy names.
const (
	ByName     = "name"
	BySupplier = "supplier"
	ByRegion   = "region"
)

// Strategy turns an at-risk entity into a signal-store query.
// An empty query means the strategy has nothing to ask for this entity.
type Strategy interface {
	Name() string
	Build(entity domain.InventoryEntity) string
}

// Func adapts a plain function to the Strategy interface.
type Func struct {
	ID string
	Fn func(domain.InventoryEntity) string
}

func (f Func) Name() string { return f.ID }

func (f Func) Build(entity domain.InventoryEntity) string { return f.Fn(entity) }

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// DefaultRegistry holds the name, supplier and region strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Func{ID: ByName, Fn: func(e domain.InventoryEntity) string { return e.Name }})
	r.Register(Func{ID: BySupplier, Fn: func(e domain.InventoryEntity) string { return e.Supplier }})
	r.Register(Func{ID: ByRegion, Fn: func(e domain.InventoryEntity) string { return e.Region }})
	return r
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("query strategy %s is not registered", name)
}

// Planner builds the de-duplicated query list for an entity from a fixed
// set of enabled strategies.
type Planner struct {
	strategies []Strategy
}

// NewPlanner resolves every enabled name up front so misconfiguration is
// reported before a run starts.
func NewPlanner(reg *Registry, enabled []string) (*Planner, error) {
	if reg == nil {
		return nil, fmt.Errorf("query registry is not configured")
	}
	if len(enabled) == 0 {
		enabled = []string{ByName, BySupplier, ByRegion}
	}

	p := &Planner{strategies: make([]Strategy, 0, len(enabled))}
	for _, name := range enabled {
		s, err := reg.Resolve(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		p.strategies = append(p.strategies, s)
	}
	return p, nil
}

// Queries returns non-empty queries in strategy order, dropping duplicates.
func (p *Planner) Queries(entity domain.InventoryEntity) []string {
	seen := make(map[string]bool, len(p.strategies))
	out := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		q := strings.Join(strings.Fields(s.Build(entity)), " ")
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
