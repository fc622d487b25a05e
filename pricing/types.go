/*
Package pricing provides the core calculation engine.

PURPOSE:
  This package contains the types and the algorithm for the dynamic
  commission/tax/discount/fee calculation used across the back office.
  Given a sale price and an ordered set of configured rules, the engine
  produces a per-rule breakdown plus aggregated totals (commissions by
  role, taxes, fees, discounts, net company revenue).

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - CalculationRule: One configured commission/tax/discount/fee definition
  - CalculationContext: The input to a single evaluation
  - AppliedRule / Totals / Evaluation: The evaluation output

DESIGN PRINCIPLES:
  1. Purity: Evaluate is a function of its inputs; no state between calls
  2. Precision: decimal.Decimal everywhere, floats only at the JSON edge
  3. Determinism: canonical (OrderIndex, ID) ordering, fixed base amount
  4. Resilience: a malformed rule is skipped with a warning, never fatal

USAGE:
  rules, _ := ruleStore.ActiveRules(ctx, pricing.AppliesToSales)
  eval, err := pricing.Evaluate(pricing.CalculationContext{
      BaseAmount: decimal.NewFromInt(100000),
      EntityType: pricing.AppliesToSales,
      UnitType:   "apartment",
  }, rules)

SEE ALSO:
  - engine.go: The evaluation algorithm
  - errors.go: Error taxonomy
  - store.go: RuleStore interface
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount with 2-decimal canonical precision
// =============================================================================

// Money is a currency amount. The canonical internal precision is two
// decimal places; RoundCurrency applies the round-half-up convention used
// for every per-rule amount.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Add(b Money) Money     { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money     { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money            { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool      { return m.Value.IsNegative() }
func (m Money) IsZero() bool          { return m.Value.IsZero() }
func (m Money) Equal(b Money) bool    { return m.Value.Equal(b.Value) }
func (m Money) Float64() float64      { f, _ := m.Value.Float64(); return f }
func (m Money) String() string        { return m.Value.StringFixed(2) }

// RoundCurrency rounds to 2 decimal places, half up (not banker's rounding).
func (m Money) RoundCurrency() Money { return Money{Value: m.Value.Round(2)} }

// Money serializes as a bare decimal, not a struct.
func (m Money) MarshalJSON() ([]byte, error)  { return m.Value.MarshalJSON() }
func (m *Money) UnmarshalJSON(b []byte) error { return m.Value.UnmarshalJSON(b) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RuleID string
type UnitID string
type UserID string

// UnitType tags a unit (apartment, commercial, ...) for rule filtering.
type UnitType string

// EntityType is the category of record a rule applies to.
type EntityType string

const (
	AppliesToSales          EntityType = "sales"
	AppliesToRentals        EntityType = "rentals"
	AppliesToFinishingWorks EntityType = "finishing_works"
	AppliesToAll            EntityType = "all"
)

// =============================================================================
// LOCALIZED TEXT - Rule names and descriptions carry two locales
// =============================================================================

type LocalizedText struct {
	AR string `json:"ar"`
	EN string `json:"en"`
}

// In returns the text for a locale tag, falling back to English.
func (l LocalizedText) In(locale string) string {
	if locale == "ar" && l.AR != "" {
		return l.AR
	}
	return l.EN
}

// =============================================================================
// CALCULATION RULE - One configured charge or deduction
// =============================================================================

type RuleType string

const (
	RuleCommission RuleType = "commission"
	RuleTax        RuleType = "tax"
	RuleDiscount   RuleType = "discount"
	RuleFee        RuleType = "fee"
)

type CalculationType string

const (
	CalcPercentage  CalculationType = "percentage"
	CalcFixedAmount CalculationType = "fixed_amount"
)

// CommissionRole identifies which totals bucket a commission rule feeds.
// Rules without a role are attributed to the company bucket.
type CommissionRole string

const (
	RoleCompany      CommissionRole = "company"
	RoleSalesperson  CommissionRole = "salesperson"
	RoleSalesManager CommissionRole = "sales_manager"
)

// CalculationRule is a configured commission/tax/discount/fee definition.
// Rules are created and ordered by an administrator; the engine treats the
// set it receives as an immutable snapshot.
type CalculationRule struct {
	ID              RuleID
	Name            LocalizedText
	RuleType        RuleType
	CalculationType CalculationType

	// Value is a percentage of the base amount (0-100, may exceed 100 only
	// by explicit admin configuration) for CalcPercentage, or a currency
	// amount for CalcFixedAmount.
	Value decimal.Decimal

	// AppliesTo selects the entity category; rules are filtered by it
	// before evaluation.
	AppliesTo EntityType

	// UnitTypeFilter restricts the rule to these unit types. Empty means
	// the rule applies to all unit types.
	UnitTypeFilter []UnitType

	// Role is meaningful only for commission rules.
	Role CommissionRole

	// OrderIndex orders evaluation; ties break by ID ascending.
	OrderIndex int

	IsActive    bool
	Description LocalizedText
}

// AppliesToUnitType reports whether the rule's filter admits the unit type.
func (r CalculationRule) AppliesToUnitType(ut UnitType) bool {
	if len(r.UnitTypeFilter) == 0 {
		return true
	}
	for _, t := range r.UnitTypeFilter {
		if t == ut {
			return true
		}
	}
	return false
}

// Bucket returns the totals bucket a commission rule feeds.
func (r CalculationRule) Bucket() CommissionRole {
	switch r.Role {
	case RoleSalesperson, RoleSalesManager:
		return r.Role
	default:
		return RoleCompany
	}
}

// =============================================================================
// CALCULATION CONTEXT - Input to one evaluation
// =============================================================================

// CalculationContext carries everything a single evaluation depends on.
// SalespersonID and SalesManagerID are informational: the reference
// behavior applies all qualifying rules uniformly regardless of which
// role identities are present.
type CalculationContext struct {
	BaseAmount     decimal.Decimal
	EntityType     EntityType
	UnitType       UnitType
	SalespersonID  UserID
	SalesManagerID UserID
}

// =============================================================================
// EVALUATION OUTPUT
// =============================================================================

// AppliedRule is the computed contribution of one rule.
type AppliedRule struct {
	RuleID          RuleID          `json:"rule_id"`
	RuleName        LocalizedText   `json:"rule_name"`
	RuleType        RuleType        `json:"rule_type"`
	CalculationType CalculationType `json:"calculation_type"`
	Value           decimal.Decimal `json:"value"`

	// BaseAmount is the amount the rule was computed against. Always the
	// context's original base: rules do not cascade.
	BaseAmount       Money `json:"base_amount"`
	CalculatedAmount Money `json:"calculated_amount"`
}

// Totals aggregates applied rules into role/category buckets.
type Totals struct {
	CompanyCommission      Money `json:"company_commission"`
	SalespersonCommission  Money `json:"salesperson_commission"`
	SalesManagerCommission Money `json:"sales_manager_commission"`
	TotalTaxes             Money `json:"total_taxes"`
	TotalFees              Money `json:"total_fees"`
	TotalDiscounts         Money `json:"total_discounts"`

	// NetCompanyRevenue = base - company commission - taxes - fees + discounts.
	NetCompanyRevenue Money `json:"net_company_revenue"`
}

// Warning records a rule that was skipped during evaluation. A malformed
// configuration record must not block pricing for an entire sale.
type Warning struct {
	RuleID   RuleID        `json:"rule_id"`
	RuleName LocalizedText `json:"rule_name"`
	Code     string        `json:"code"` // "unknown_rule_type", "unknown_calculation_type", "negative_value"
	Message  string        `json:"message"`
}

// Evaluation is the result envelope for one call to Evaluate.
type Evaluation struct {
	BaseAmount   Money         `json:"base_amount"`
	UnitType     UnitType      `json:"unit_type"`
	AppliedRules []AppliedRule `json:"applied_rules"`
	Totals       Totals        `json:"totals"`
	Warnings     []Warning     `json:"warnings,omitempty"`
}
