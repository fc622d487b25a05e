/*
Package factory provides JSON to Go calculation-rule conversion.

PURPOSE:
  Converts JSON rule definitions into strict pricing.CalculationRule
  values. Rule configuration arrives from admin UIs and stored records
  where numerics are frequently strings ("3.5" instead of 3.5) and the
  unit-type filter is a free-form array. All of that looseness is
  resolved HERE, at the boundary - the engine only ever sees strict
  decimal values and typed enums.

JSON SCHEMA:
  {
    "id": "rule-company-commission",
    "name_ar": "عمولة الشركة",
    "name_en": "Company Commission",
    "rule_type": "commission",
    "calculation_type": "percentage",
    "value": 3.0,                  // number or numeric string
    "applies_to": "sales",
    "unit_type_filter": ["apartment"],
    "role": "company",
    "order_index": 1,
    "is_active": true,
    "description_ar": "...",
    "description_en": "..."
  }

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(jsonString)

SEE ALSO:
  - pricing/types.go: CalculationRule definition
  - store/sqlite: Stores rules in this JSON-compatible shape
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerage-engine/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the boundary representation of a calculation rule.
type RuleJSON struct {
	ID              string          `json:"id"`
	NameAR          string          `json:"name_ar"`
	NameEN          string          `json:"name_en"`
	RuleType        string          `json:"rule_type"`
	CalculationType string          `json:"calculation_type"`
	Value           json.RawMessage `json:"value"`
	AppliesTo       string          `json:"applies_to"`
	UnitTypeFilter  []string        `json:"unit_type_filter,omitempty"`
	Role            string          `json:"role,omitempty"`
	OrderIndex      int             `json:"order_index"`
	IsActive        *bool           `json:"is_active,omitempty"`
	DescriptionAR   string          `json:"description_ar,omitempty"`
	DescriptionEN   string          `json:"description_en,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule converts a JSON string into a validated CalculationRule.
func (f *RuleFactory) ParseRule(jsonStr string) (*pricing.CalculationRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("invalid rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts the boundary shape into a strict rule and validates it.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*pricing.CalculationRule, error) {
	if rj.ID == "" {
		return nil, &pricing.InvalidInputError{Field: "id", Reason: "is required"}
	}

	value, err := ParseDecimal("value", rj.Value)
	if err != nil {
		return nil, err
	}

	// Default active, matching how admin UIs omit the flag on create.
	isActive := true
	if rj.IsActive != nil {
		isActive = *rj.IsActive
	}

	filter := make([]pricing.UnitType, 0, len(rj.UnitTypeFilter))
	for _, ut := range rj.UnitTypeFilter {
		if ut == "" {
			continue
		}
		filter = append(filter, pricing.UnitType(ut))
	}

	rule := pricing.CalculationRule{
		ID:              pricing.RuleID(rj.ID),
		Name:            pricing.LocalizedText{AR: rj.NameAR, EN: rj.NameEN},
		RuleType:        pricing.RuleType(rj.RuleType),
		CalculationType: pricing.CalculationType(rj.CalculationType),
		Value:           value,
		AppliesTo:       pricing.EntityType(rj.AppliesTo),
		UnitTypeFilter:  filter,
		Role:            pricing.CommissionRole(rj.Role),
		OrderIndex:      rj.OrderIndex,
		IsActive:        isActive,
		Description:     pricing.LocalizedText{AR: rj.DescriptionAR, EN: rj.DescriptionEN},
	}

	if err := pricing.ValidateRule(rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ToJSON converts a strict rule back to the boundary shape.
func (f *RuleFactory) ToJSON(rule pricing.CalculationRule) RuleJSON {
	filter := make([]string, 0, len(rule.UnitTypeFilter))
	for _, ut := range rule.UnitTypeFilter {
		filter = append(filter, string(ut))
	}

	value, _ := json.Marshal(rule.Value)
	isActive := rule.IsActive

	return RuleJSON{
		ID:              string(rule.ID),
		NameAR:          rule.Name.AR,
		NameEN:          rule.Name.EN,
		RuleType:        string(rule.RuleType),
		CalculationType: string(rule.CalculationType),
		Value:           value,
		AppliesTo:       string(rule.AppliesTo),
		UnitTypeFilter:  filter,
		Role:            string(rule.Role),
		OrderIndex:      rule.OrderIndex,
		IsActive:        &isActive,
		DescriptionAR:   rule.Description.AR,
		DescriptionEN:   rule.Description.EN,
	}
}

// ParseDecimal accepts a JSON number or a numeric string for the named
// field. Anything else is rejected at the boundary so the engine never
// sees a loose value. The API handlers share it for money fields.
func ParseDecimal(field string, raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, &pricing.InvalidInputError{Field: field, Reason: "is required"}
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		d, derr := decimal.NewFromString(num.String())
		if derr == nil {
			return d, nil
		}
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		d, derr := decimal.NewFromString(str)
		if derr != nil {
			return decimal.Zero, &pricing.InvalidInputError{
				Field: field, Reason: fmt.Sprintf("%q is not numeric", str),
			}
		}
		return d, nil
	}

	return decimal.Zero, &pricing.InvalidInputError{Field: field, Reason: "must be a number or numeric string"}
}
