/*
defaults.go - Starter calculation rule set

PURPOSE:
  Seeds the rule store with the standard commission/tax rules a fresh
  installation needs, so previews work before an administrator has
  configured anything. Seeding is idempotent: it is a no-op when any
  rules already exist.
*/
package sales

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerage-engine/pricing"
)

// DefaultRules returns the starter rule set: company/salesperson/manager
// commissions plus VAT and sales tax, all percentage-of-price on sales.
func DefaultRules() []pricing.CalculationRule {
	return []pricing.CalculationRule{
		{
			ID:              "rule-company-commission",
			Name:            pricing.LocalizedText{AR: "عمولة الشركة", EN: "Company Commission"},
			RuleType:        pricing.RuleCommission,
			CalculationType: pricing.CalcPercentage,
			Value:           decimal.NewFromFloat(3.0),
			AppliesTo:       pricing.AppliesToSales,
			Role:            pricing.RoleCompany,
			OrderIndex:      1,
			IsActive:        true,
			Description: pricing.LocalizedText{
				AR: "عمولة الشركة من المبيعات",
				EN: "Company commission from sales",
			},
		},
		{
			ID:              "rule-salesperson-commission",
			Name:            pricing.LocalizedText{AR: "عمولة البائع", EN: "Salesperson Commission"},
			RuleType:        pricing.RuleCommission,
			CalculationType: pricing.CalcPercentage,
			Value:           decimal.NewFromFloat(1.0),
			AppliesTo:       pricing.AppliesToSales,
			Role:            pricing.RoleSalesperson,
			OrderIndex:      2,
			IsActive:        true,
			Description: pricing.LocalizedText{
				AR: "عمولة البائع من المبيعات",
				EN: "Salesperson commission from sales",
			},
		},
		{
			ID:              "rule-sales-manager-commission",
			Name:            pricing.LocalizedText{AR: "عمولة مدير المبيعات", EN: "Sales Manager Commission"},
			RuleType:        pricing.RuleCommission,
			CalculationType: pricing.CalcPercentage,
			Value:           decimal.NewFromFloat(0.5),
			AppliesTo:       pricing.AppliesToSales,
			Role:            pricing.RoleSalesManager,
			OrderIndex:      3,
			IsActive:        true,
			Description: pricing.LocalizedText{
				AR: "عمولة مدير المبيعات من المبيعات",
				EN: "Sales manager commission from sales",
			},
		},
		{
			ID:              "rule-vat",
			Name:            pricing.LocalizedText{AR: "ضريبة القيمة المضافة", EN: "VAT Tax"},
			RuleType:        pricing.RuleTax,
			CalculationType: pricing.CalcPercentage,
			Value:           decimal.NewFromFloat(14.0),
			AppliesTo:       pricing.AppliesToSales,
			OrderIndex:      4,
			IsActive:        true,
			Description: pricing.LocalizedText{
				AR: "ضريبة القيمة المضافة 14%",
				EN: "Value Added Tax 14%",
			},
		},
		{
			ID:              "rule-sales-tax",
			Name:            pricing.LocalizedText{AR: "ضريبة المبيعات", EN: "Sales Tax"},
			RuleType:        pricing.RuleTax,
			CalculationType: pricing.CalcPercentage,
			Value:           decimal.NewFromFloat(5.0),
			AppliesTo:       pricing.AppliesToSales,
			OrderIndex:      5,
			IsActive:        true,
			Description: pricing.LocalizedText{
				AR: "ضريبة المبيعات 5%",
				EN: "Sales Tax 5%",
			},
		},
	}
}

// InitializeDefaults seeds the rule store when it is empty. Returns true if
// rules were created, false if the store already had rules.
func (s *Service) InitializeDefaults(ctx context.Context) (bool, error) {
	count, err := s.Rules.CountRules(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: counting rules: %v", pricing.ErrDependencyFailure, err)
	}
	if count > 0 {
		return false, nil
	}

	for _, rule := range DefaultRules() {
		if err := s.Rules.SaveRule(ctx, rule); err != nil {
			return false, fmt.Errorf("%w: seeding rule %s: %v", pricing.ErrDependencyFailure, rule.ID, err)
		}
	}
	return true, nil
}
