/*
engine.go - The evaluation algorithm

PURPOSE:
  Transforms (baseAmount, unitType, ruleSet) into an ordered per-rule
  breakdown plus aggregated totals. This is the only place where rule
  arithmetic happens.

ALGORITHM:
  1. Filter rules: active, AppliesTo matches the context's entity type
     (the engine does this filtering itself; callers may pre-filter but
     do not have to), unit-type filter admits the context's unit type.
  2. Sort by (OrderIndex asc, ID asc). The canonical ordering is stable
     across calls and independent of input permutation.
  3. Compute each rule against the ORIGINAL base amount. Rules never
     cascade: evaluation order affects presentation only, so the totals
     are a commutative sum and the whole operation is idempotent.
  4. Round each amount to 2 decimals, half up.
  5. Aggregate into role/category buckets and derive net company revenue.

FAILURE POLICY:
  A negative base amount aborts with InvalidInput. A malformed rule
  (unknown type, disallowed negative value) is skipped and surfaced as a
  Warning on the envelope; one bad configuration record must not block
  pricing for an entire sale.

SEE ALSO:
  - types.go: Input/output types
  - errors.go: Error taxonomy
*/
package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Evaluate applies the rule set to the context and returns the breakdown.
//
// The engine holds no state between calls and performs no I/O; it is safe
// to evaluate many contexts concurrently against shared rule slices, which
// are never mutated.
func Evaluate(ctx CalculationContext, rules []CalculationRule) (*Evaluation, error) {
	if ctx.BaseAmount.IsNegative() {
		return nil, &NegativeBaseAmountError{BaseAmount: ctx.BaseAmount}
	}

	applicable := filterRules(ctx, rules)
	sortRules(applicable)

	base := Money{Value: ctx.BaseAmount}
	eval := &Evaluation{
		BaseAmount:   base,
		UnitType:     ctx.UnitType,
		AppliedRules: []AppliedRule{},
	}

	for _, rule := range applicable {
		if w := validateRule(rule); w != nil {
			eval.Warnings = append(eval.Warnings, *w)
			continue
		}

		amount := ruleAmount(rule, ctx.BaseAmount).RoundCurrency()

		eval.AppliedRules = append(eval.AppliedRules, AppliedRule{
			RuleID:           rule.ID,
			RuleName:         rule.Name,
			RuleType:         rule.RuleType,
			CalculationType:  rule.CalculationType,
			Value:            rule.Value,
			BaseAmount:       base,
			CalculatedAmount: amount,
		})

		accumulate(&eval.Totals, rule, amount)
	}

	// Discounts reduce company cost, so they add back into net revenue.
	eval.Totals.NetCompanyRevenue = base.
		Sub(eval.Totals.CompanyCommission).
		Sub(eval.Totals.TotalTaxes).
		Sub(eval.Totals.TotalFees).
		Add(eval.Totals.TotalDiscounts)

	return eval, nil
}

// filterRules keeps active rules whose AppliesTo and unit-type filter admit
// the context. AppliesToAll rules match every entity type.
func filterRules(ctx CalculationContext, rules []CalculationRule) []CalculationRule {
	out := make([]CalculationRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if r.AppliesTo != ctx.EntityType && r.AppliesTo != AppliesToAll {
			continue
		}
		if !r.AppliesToUnitType(ctx.UnitType) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortRules orders by OrderIndex ascending, ties by ID ascending.
func sortRules(rules []CalculationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].OrderIndex != rules[j].OrderIndex {
			return rules[i].OrderIndex < rules[j].OrderIndex
		}
		return rules[i].ID < rules[j].ID
	})
}

// validateRule returns a Warning if the stored rule cannot be evaluated.
func validateRule(rule CalculationRule) *Warning {
	switch rule.RuleType {
	case RuleCommission, RuleTax, RuleDiscount, RuleFee:
	default:
		return &Warning{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Code:     "unknown_rule_type",
			Message:  fmt.Sprintf("unrecognized rule type %q", rule.RuleType),
		}
	}

	switch rule.CalculationType {
	case CalcPercentage, CalcFixedAmount:
	default:
		return &Warning{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Code:     "unknown_calculation_type",
			Message:  fmt.Sprintf("unrecognized calculation type %q", rule.CalculationType),
		}
	}

	// A negative value on a non-discount rule would apply a sign-flipped
	// charge. Skip it instead of silently crediting the client.
	if rule.Value.IsNegative() && rule.RuleType != RuleDiscount {
		return &Warning{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Code:     "negative_value",
			Message:  fmt.Sprintf("negative value %s not allowed for %s rules", rule.Value, rule.RuleType),
		}
	}

	return nil
}

// ruleAmount computes the raw (unrounded) amount for one rule.
func ruleAmount(rule CalculationRule, base decimal.Decimal) Money {
	switch rule.CalculationType {
	case CalcPercentage:
		return Money{Value: base.Mul(rule.Value).Div(oneHundred)}
	case CalcFixedAmount:
		return Money{Value: rule.Value}
	}
	return ZeroMoney()
}

func accumulate(t *Totals, rule CalculationRule, amount Money) {
	switch rule.RuleType {
	case RuleCommission:
		switch rule.Bucket() {
		case RoleSalesperson:
			t.SalespersonCommission = t.SalespersonCommission.Add(amount)
		case RoleSalesManager:
			t.SalesManagerCommission = t.SalesManagerCommission.Add(amount)
		default:
			t.CompanyCommission = t.CompanyCommission.Add(amount)
		}
	case RuleTax:
		t.TotalTaxes = t.TotalTaxes.Add(amount)
	case RuleFee:
		t.TotalFees = t.TotalFees.Add(amount)
	case RuleDiscount:
		t.TotalDiscounts = t.TotalDiscounts.Add(amount)
	}
}

// ValidateRule checks a rule at administration time, returning the error
// form of the checks Evaluate performs (plus checks that evaluation cannot
// express, like an empty name). Used by the API before persisting.
func ValidateRule(rule CalculationRule) error {
	if w := validateRule(rule); w != nil {
		return &RuleConfigurationError{RuleID: rule.ID, Code: w.Code, Reason: w.Message}
	}
	if rule.Name.EN == "" && rule.Name.AR == "" {
		return &RuleConfigurationError{RuleID: rule.ID, Code: "missing_name", Reason: "rule name is required"}
	}
	if rule.AppliesTo == "" {
		return &RuleConfigurationError{RuleID: rule.ID, Code: "missing_applies_to", Reason: "applies_to is required"}
	}
	return nil
}
