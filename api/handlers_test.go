/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Preview calculation over HTTP (default rule set)
- Rule CRUD and validation statuses
- Sale finalization and breakdown freezing
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerage-engine/pricing"
	"github.com/warp/brokerage-engine/sales"
	"github.com/warp/brokerage-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewRouter(NewHandler(store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func seedSaleContext(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.SaveUnit(ctx, sales.Unit{
		ID:     "unit-1",
		Code:   "A-101",
		Type:   sales.UnitApartment,
		Price:  decimal.NewFromInt(100000),
		Status: sales.UnitAvailable,
	}); err != nil {
		t.Fatalf("Failed to save unit: %v", err)
	}
	if err := store.SaveUser(ctx, sales.User{ID: "sp-1", Name: "Mona", Role: "salesperson"}); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestCalculatePreview_WithDefaults(t *testing.T) {
	// GIVEN: The default rule set and a registered unit + salesperson
	srv, store := newTestServer(t)
	seedSaleContext(t, store)

	resp := postJSON(t, srv.URL+"/api/dynamic/initialize-defaults", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize-defaults: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// WHEN: Requesting a preview for a 100,000 sale
	resp = postJSON(t, srv.URL+"/api/dynamic/calculate-preview", `{
		"sale_price": 100000,
		"unit_id": "unit-1",
		"salesperson_id": "sp-1"
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var eval pricing.Evaluation
	decodeBody(t, resp, &eval)

	// THEN: The defaults produce 3% + 1% + 0.5% commissions, 14% + 5% taxes
	if len(eval.AppliedRules) != 5 {
		t.Errorf("Expected 5 applied rules, got %d", len(eval.AppliedRules))
	}
	if !eval.Totals.CompanyCommission.Equal(pricing.NewMoneyFromInt(3000)) {
		t.Errorf("Expected company commission 3000, got %s", eval.Totals.CompanyCommission)
	}
	if !eval.Totals.TotalTaxes.Equal(pricing.NewMoneyFromInt(19000)) {
		t.Errorf("Expected taxes 19000, got %s", eval.Totals.TotalTaxes)
	}
	// net = 100000 - 3000 - 19000
	if !eval.Totals.NetCompanyRevenue.Equal(pricing.NewMoneyFromInt(78000)) {
		t.Errorf("Expected net 78000, got %s", eval.Totals.NetCompanyRevenue)
	}
}

func TestCalculatePreview_StringPriceAccepted(t *testing.T) {
	// Loosely-typed clients send the price as a string; the API converts it.
	srv, store := newTestServer(t)
	seedSaleContext(t, store)

	resp := postJSON(t, srv.URL+"/api/dynamic/calculate-preview", `{
		"sale_price": "100000",
		"unit_id": "unit-1"
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for numeric string price, got %d", resp.StatusCode)
	}

	var eval pricing.Evaluation
	decodeBody(t, resp, &eval)
	if !eval.BaseAmount.Equal(pricing.NewMoneyFromInt(100000)) {
		t.Errorf("Expected base 100000, got %s", eval.BaseAmount)
	}
}

func TestCalculatePreview_ErrorStatuses(t *testing.T) {
	srv, store := newTestServer(t)
	seedSaleContext(t, store)

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing unit_id", `{"sale_price": 1000}`, http.StatusBadRequest},
		{"negative price", `{"sale_price": -5, "unit_id": "unit-1"}`, http.StatusBadRequest},
		{"non-numeric price", `{"sale_price": "abc", "unit_id": "unit-1"}`, http.StatusBadRequest},
		{"unknown unit", `{"sale_price": 1000, "unit_id": "ghost"}`, http.StatusNotFound},
		{"unknown salesperson", `{"sale_price": 1000, "unit_id": "unit-1", "salesperson_id": "ghost"}`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/dynamic/calculate-preview", tc.body)
			resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("Expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestRuleCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create
	resp := postJSON(t, srv.URL+"/api/dynamic/calculation-rules", `{
		"id": "rule-stamp",
		"name_en": "Stamp Duty",
		"rule_type": "fee",
		"calculation_type": "fixed_amount",
		"value": 500,
		"applies_to": "sales",
		"order_index": 10
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate create conflicts
	resp = postJSON(t, srv.URL+"/api/dynamic/calculation-rules", `{
		"id": "rule-stamp",
		"name_en": "Stamp Duty",
		"rule_type": "fee",
		"calculation_type": "fixed_amount",
		"value": 500,
		"applies_to": "sales"
	}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Invalid configuration rejected
	resp = postJSON(t, srv.URL+"/api/dynamic/calculation-rules", `{
		"id": "rule-bad",
		"name_en": "Bad",
		"rule_type": "levy",
		"calculation_type": "percentage",
		"value": 1,
		"applies_to": "sales"
	}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown rule type, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// List
	resp, err := http.Get(srv.URL + "/api/dynamic/calculation-rules")
	if err != nil {
		t.Fatalf("GET rules failed: %v", err)
	}
	var rules []RuleDTO
	decodeBody(t, resp, &rules)
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}
	if rules[0].ID != "rule-stamp" {
		t.Errorf("Expected rule-stamp, got %s", rules[0].ID)
	}

	// Update
	req, _ := http.NewRequest(http.MethodPut,
		srv.URL+"/api/dynamic/calculation-rules/rule-stamp",
		bytes.NewBufferString(`{
			"name_en": "Stamp Duty",
			"rule_type": "fee",
			"calculation_type": "fixed_amount",
			"value": 750,
			"applies_to": "sales",
			"order_index": 10
		}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT rule failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on update, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Update of a missing rule is 404
	req, _ = http.NewRequest(http.MethodPut,
		srv.URL+"/api/dynamic/calculation-rules/ghost",
		bytes.NewBufferString(`{"name_en": "X", "rule_type": "fee", "calculation_type": "fixed_amount", "value": 1, "applies_to": "sales"}`))
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 updating missing rule, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/dynamic/calculation-rules/rule-stamp", nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/dynamic/calculation-rules/rule-stamp", nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInitializeDefaults_Idempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	var first, second InitializeDefaultsResponse

	resp := postJSON(t, srv.URL+"/api/dynamic/initialize-defaults", `{}`)
	decodeBody(t, resp, &first)
	if !first.Created {
		t.Error("First initialize should create rules")
	}

	resp = postJSON(t, srv.URL+"/api/dynamic/initialize-defaults", `{}`)
	decodeBody(t, resp, &second)
	if second.Created {
		t.Error("Second initialize should be a no-op")
	}
}

func TestCreateSale_FreezesBreakdown(t *testing.T) {
	// GIVEN: Defaults seeded and a sellable unit
	srv, store := newTestServer(t)
	seedSaleContext(t, store)

	resp := postJSON(t, srv.URL+"/api/dynamic/initialize-defaults", `{}`)
	resp.Body.Close()

	// WHEN: Finalizing the sale
	resp = postJSON(t, srv.URL+"/api/sales", `{
		"unit_id": "unit-1",
		"client_name": "Ahmed Hassan",
		"sale_date": "2026-08-30",
		"sale_price": 100000,
		"salesperson_id": "sp-1"
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var sale SaleDTO
	decodeBody(t, resp, &sale)
	if sale.NetCompanyRevenue != 78000 {
		t.Errorf("Expected net 78000, got %v", sale.NetCompanyRevenue)
	}
	if sale.Breakdown == nil || len(sale.Breakdown.AppliedRules) != 5 {
		t.Fatal("Expected the frozen breakdown with 5 applied rules")
	}

	// THEN: The unit is marked sold
	unit, err := store.GetUnit(context.Background(), pricing.UnitID("unit-1"))
	if err != nil {
		t.Fatalf("Failed to get unit: %v", err)
	}
	if unit.Status != sales.UnitSold {
		t.Errorf("Expected unit sold, got %s", unit.Status)
	}

	// AND: Later rule edits do not change the stored sale
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/dynamic/calculation-rules/rule-vat", nil)
	r2, _ := http.DefaultClient.Do(req)
	r2.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sales/" + sale.ID)
	if err != nil {
		t.Fatalf("GET sale failed: %v", err)
	}
	var stored SaleDTO
	decodeBody(t, resp, &stored)
	if stored.TotalTaxes != 19000 {
		t.Errorf("Stored sale taxes changed after rule edit: %v", stored.TotalTaxes)
	}
}

func TestCreateSale_MissingClientName(t *testing.T) {
	srv, store := newTestServer(t)
	seedSaleContext(t, store)

	resp := postJSON(t, srv.URL+"/api/sales", `{
		"unit_id": "unit-1",
		"sale_price": 100000,
		"salesperson_id": "sp-1"
	}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestUnitCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/units", `{
		"id": "unit-9",
		"code": "C-09",
		"unit_type": "commercial",
		"price": "250000"
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown unit type rejected by validation
	resp = postJSON(t, srv.URL+"/api/units", `{
		"code": "V-01",
		"unit_type": "villa",
		"price": 1
	}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown unit type, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/units/unit-9")
	if err != nil {
		t.Fatalf("GET unit failed: %v", err)
	}
	var unit UnitDTO
	decodeBody(t, resp, &unit)
	if unit.Status != "available" {
		t.Errorf("Expected default status available, got %s", unit.Status)
	}
	if unit.Price != 250000 {
		t.Errorf("Expected price 250000, got %v", unit.Price)
	}
}
