package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/brokerage-engine/pricing"
	"github.com/warp/brokerage-engine/sales"
	"github.com/warp/brokerage-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRuleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := pricing.CalculationRule{
		ID:              "rule-vat",
		Name:            pricing.LocalizedText{AR: "ضريبة القيمة المضافة", EN: "VAT Tax"},
		RuleType:        pricing.RuleTax,
		CalculationType: pricing.CalcPercentage,
		Value:           decimal.NewFromFloat(14),
		AppliesTo:       pricing.AppliesToSales,
		UnitTypeFilter:  []pricing.UnitType{"apartment", "medical"},
		OrderIndex:      4,
		IsActive:        true,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err := store.GetRule(ctx, "rule-vat")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rule.ID, got.ID)
	assert.Equal(t, rule.Name, got.Name)
	assert.True(t, rule.Value.Equal(got.Value))
	assert.Equal(t, rule.UnitTypeFilter, got.UnitTypeFilter)
	assert.Equal(t, rule.OrderIndex, got.OrderIndex)
	assert.True(t, got.IsActive)

	missing, err := store.GetRule(ctx, "no-such-rule")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestActiveRules_FiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	save := func(id string, appliesTo pricing.EntityType, order int, active bool) {
		require.NoError(t, store.SaveRule(ctx, pricing.CalculationRule{
			ID:              pricing.RuleID(id),
			Name:            pricing.LocalizedText{EN: id},
			RuleType:        pricing.RuleFee,
			CalculationType: pricing.CalcFixedAmount,
			Value:           decimal.NewFromInt(10),
			AppliesTo:       appliesTo,
			OrderIndex:      order,
			IsActive:        active,
		}))
	}

	save("rule-c", pricing.AppliesToSales, 2, true)
	save("rule-a", pricing.AppliesToSales, 1, true)
	save("rule-b", pricing.AppliesToSales, 1, true)
	save("rule-inactive", pricing.AppliesToSales, 0, false)
	save("rule-rentals", pricing.AppliesToRentals, 0, true)
	save("rule-all", pricing.AppliesToAll, 3, true)

	rules, err := store.ActiveRules(ctx, pricing.AppliesToSales)
	require.NoError(t, err)

	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, string(r.ID))
	}
	// OrderIndex ascending, ties broken by ID; 'all' rules included.
	assert.Equal(t, []string{"rule-a", "rule-b", "rule-c", "rule-all"}, ids)
}

func TestSaveRule_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := pricing.CalculationRule{
		ID:              "rule-x",
		Name:            pricing.LocalizedText{EN: "X"},
		RuleType:        pricing.RuleCommission,
		CalculationType: pricing.CalcPercentage,
		Value:           decimal.NewFromInt(3),
		AppliesTo:       pricing.AppliesToSales,
		IsActive:        true,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	rule.Value = decimal.NewFromInt(5)
	rule.IsActive = false
	require.NoError(t, store.SaveRule(ctx, rule))

	count, err := store.CountRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetRule(ctx, "rule-x")
	require.NoError(t, err)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(5)))
	assert.False(t, got.IsActive)
}

func TestSaleRoundTrip_PreservesBreakdown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnit(ctx, sales.Unit{
		ID:     "unit-1",
		Code:   "A-101",
		Type:   sales.UnitApartment,
		Price:  decimal.NewFromInt(100000),
		Status: sales.UnitAvailable,
	}))

	sale := sales.Sale{
		ID:                "sale-1",
		UnitID:            "unit-1",
		ClientName:        "Ahmed Hassan",
		SalePrice:         decimal.NewFromInt(100000),
		SalespersonID:     "sp-1",
		CompanyCommission: pricing.NewMoneyFromInt(3000),
		TotalTaxes:        pricing.NewMoneyFromInt(19000),
		NetCompanyRevenue: pricing.NewMoneyFromInt(78000),
		Breakdown: &pricing.Evaluation{
			BaseAmount: pricing.NewMoneyFromInt(100000),
			UnitType:   sales.UnitApartment,
			AppliedRules: []pricing.AppliedRule{{
				RuleID:           "rule-vat",
				RuleType:         pricing.RuleTax,
				CalculationType:  pricing.CalcPercentage,
				Value:            decimal.NewFromInt(14),
				BaseAmount:       pricing.NewMoneyFromInt(100000),
				CalculatedAmount: pricing.NewMoneyFromInt(14000),
			}},
		},
	}
	require.NoError(t, store.SaveSale(ctx, sale))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ahmed Hassan", got.ClientName)
	assert.True(t, got.NetCompanyRevenue.Equal(pricing.NewMoneyFromInt(78000)))

	require.NotNil(t, got.Breakdown)
	require.Len(t, got.Breakdown.AppliedRules, 1)
	applied := got.Breakdown.AppliedRules[0]
	assert.Equal(t, pricing.RuleID("rule-vat"), applied.RuleID)
	assert.True(t, applied.CalculatedAmount.Equal(pricing.NewMoneyFromInt(14000)))

	unit, err := store.GetUnit(ctx, "unit-1")
	require.NoError(t, err)
	assert.Equal(t, sales.UnitSold, unit.Status,
		"SaveSale marks the unit sold in the same transaction")
}

func TestSaveSale_UnknownUnit_RollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveSale(ctx, sales.Sale{
		ID:         "sale-ghost",
		UnitID:     "ghost",
		ClientName: "Nobody",
		SalePrice:  decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, pricing.ErrNotFound)

	got, err := store.GetSale(ctx, "sale-ghost")
	require.NoError(t, err)
	assert.Nil(t, got, "the sale row must roll back with the failed status flip")
}

func TestUserLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, sales.User{ID: "sp-1", Name: "Mona", Role: "salesperson"}))

	user, err := store.GetUser(ctx, "sp-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Mona", user.Name)

	missing, err := store.GetUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
