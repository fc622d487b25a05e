// Package store provides RuleStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/brokerage-engine/pricing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	rules map[pricing.RuleID]pricing.CalculationRule
}

func NewMemory() *Memory {
	return &Memory{rules: make(map[pricing.RuleID]pricing.CalculationRule)}
}

// ActiveRules returns active rules matching the entity category in
// canonical (OrderIndex, ID) order.
func (m *Memory) ActiveRules(_ context.Context, appliesTo pricing.EntityType) ([]pricing.CalculationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []pricing.CalculationRule
	for _, r := range m.rules {
		if !r.IsActive {
			continue
		}
		if r.AppliesTo != appliesTo && r.AppliesTo != pricing.AppliesToAll {
			continue
		}
		out = append(out, r)
	}
	sortCanonical(out)
	return out, nil
}

func (m *Memory) ListRules(_ context.Context) ([]pricing.CalculationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]pricing.CalculationRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sortCanonical(out)
	return out, nil
}

func (m *Memory) GetRule(_ context.Context, id pricing.RuleID) (*pricing.CalculationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) SaveRule(_ context.Context, rule pricing.CalculationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) DeleteRule(_ context.Context, id pricing.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rules, id)
	return nil
}

func (m *Memory) CountRules(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rules), nil
}

func sortCanonical(rules []pricing.CalculationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].OrderIndex != rules[j].OrderIndex {
			return rules[i].OrderIndex < rules[j].OrderIndex
		}
		return rules[i].ID < rules[j].ID
	})
}
