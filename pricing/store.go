/*
store.go - Persistence interface for calculation rules

PURPOSE:
  Defines the interface between the engine's callers and wherever the
  rule set lives. The engine itself never touches storage: it receives an
  immutable snapshot of rules per evaluation. The RuleStore owns mutation
  and ordering.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - pricing/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Consumes the rule snapshot
  - sales/service.go: Fetches rules per preview/finalize
*/
package pricing

import "context"

// RuleStore supplies rule sets and owns rule administration.
type RuleStore interface {
	// ActiveRules returns the active rules for an entity category, in
	// canonical (OrderIndex, ID) order. Implementations may return rules
	// in any order; Evaluate re-sorts defensively.
	ActiveRules(ctx context.Context, appliesTo EntityType) ([]CalculationRule, error)

	// ListRules returns all rules (active and inactive) for admin views.
	ListRules(ctx context.Context) ([]CalculationRule, error)

	// GetRule returns a rule by ID, or nil if it does not exist.
	GetRule(ctx context.Context, id RuleID) (*CalculationRule, error)

	// SaveRule inserts or updates a rule.
	SaveRule(ctx context.Context, rule CalculationRule) error

	// DeleteRule removes a rule.
	DeleteRule(ctx context.Context, id RuleID) error

	// CountRules returns the number of stored rules. Used by default
	// seeding to stay idempotent.
	CountRules(ctx context.Context) (int, error)
}
