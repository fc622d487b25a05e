/*
service.go - Sale pricing operations

PURPOSE:
  The two boundary operations of the pricing core:

  Preview:  resolve unit -> unit type, fetch the active sales rule set,
            evaluate, return the breakdown. Nothing is persisted.
  Finalize: run the same computation once and persist it onto a Sale
            record; the unit is marked sold.

ERROR MAPPING:
  Unknown unit/user        -> pricing.ErrNotFound
  Missing/negative price   -> pricing.ErrInvalidInput
  Store/provider failures  -> wrapped in pricing.ErrDependencyFailure

SEE ALSO:
  - types.go: Records and collaborator interfaces
  - defaults.go: Starter rule seeding
*/
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerage-engine/pricing"
)

// Service wires the engine to its collaborators.
type Service struct {
	Rules    pricing.RuleStore
	Provider ContextProvider
	Sales    SaleStore
}

func NewService(rules pricing.RuleStore, provider ContextProvider, sales SaleStore) *Service {
	return &Service{Rules: rules, Provider: provider, Sales: sales}
}

// PreviewInput is the request for a calculation preview.
type PreviewInput struct {
	SalePrice      decimal.Decimal
	UnitID         pricing.UnitID
	SalespersonID  pricing.UserID
	SalesManagerID pricing.UserID
}

// Preview computes the breakdown for a prospective sale without persisting
// anything. Safe to call concurrently; each preview takes its own immutable
// snapshot of the rule set.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (*pricing.Evaluation, error) {
	calcCtx, _, err := s.resolveContext(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, calcCtx)
}

func (s *Service) evaluate(ctx context.Context, calcCtx *pricing.CalculationContext) (*pricing.Evaluation, error) {
	rules, err := s.Rules.ActiveRules(ctx, pricing.AppliesToSales)
	if err != nil {
		return nil, fmt.Errorf("%w: loading calculation rules: %v", pricing.ErrDependencyFailure, err)
	}
	return pricing.Evaluate(*calcCtx, rules)
}

// FinalizeInput is the request to close a sale.
type FinalizeInput struct {
	SaleID         string
	UnitID         pricing.UnitID
	ClientName     string
	SaleDate       time.Time
	SalePrice      decimal.Decimal
	SalespersonID  pricing.UserID
	SalesManagerID pricing.UserID
	Notes          string
}

// FinalizeSale evaluates the sale once and persists the totals and the full
// breakdown onto the Sale record. A sale is never stored with a failed or
// partial calculation.
func (s *Service) FinalizeSale(ctx context.Context, in FinalizeInput) (*Sale, error) {
	if in.ClientName == "" {
		return nil, &pricing.InvalidInputError{Field: "client_name", Reason: "is required"}
	}
	if in.SalespersonID == "" {
		return nil, &pricing.InvalidInputError{Field: "salesperson_id", Reason: "is required"}
	}

	calcCtx, unit, err := s.resolveContext(ctx, PreviewInput{
		SalePrice:      in.SalePrice,
		UnitID:         in.UnitID,
		SalespersonID:  in.SalespersonID,
		SalesManagerID: in.SalesManagerID,
	})
	if err != nil {
		return nil, err
	}

	// Previews are allowed against any unit; closing the sale is not.
	if unit.Status != UnitAvailable {
		return nil, &pricing.InvalidInputError{
			Field:  "unit_id",
			Reason: fmt.Sprintf("unit %s is not available for sale (status %q)", unit.ID, unit.Status),
		}
	}

	eval, err := s.evaluate(ctx, calcCtx)
	if err != nil {
		return nil, err
	}

	sale := Sale{
		ID:             in.SaleID,
		UnitID:         in.UnitID,
		ClientName:     in.ClientName,
		SaleDate:       in.SaleDate,
		SalePrice:      in.SalePrice,
		SalespersonID:  in.SalespersonID,
		SalesManagerID: in.SalesManagerID,

		CompanyCommission:      eval.Totals.CompanyCommission,
		SalespersonCommission:  eval.Totals.SalespersonCommission,
		SalesManagerCommission: eval.Totals.SalesManagerCommission,
		TotalTaxes:             eval.Totals.TotalTaxes,
		TotalFees:              eval.Totals.TotalFees,
		TotalDiscounts:         eval.Totals.TotalDiscounts,
		NetCompanyRevenue:      eval.Totals.NetCompanyRevenue,
		Breakdown:              eval,

		Notes:     in.Notes,
		CreatedAt: time.Now().UTC(),
	}

	// One write: the sale row and the unit status flip commit together or
	// not at all.
	if err := s.Sales.SaveSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("%w: saving sale: %v", pricing.ErrDependencyFailure, err)
	}

	return &sale, nil
}

// resolveContext validates the input and resolves identities into a
// CalculationContext, returning the resolved unit for callers that need to
// inspect it. Salesperson and manager are verified when present; they do
// not affect which rules apply.
func (s *Service) resolveContext(ctx context.Context, in PreviewInput) (*pricing.CalculationContext, *Unit, error) {
	if in.SalePrice.IsNegative() {
		return nil, nil, &pricing.NegativeBaseAmountError{BaseAmount: in.SalePrice}
	}
	if in.UnitID == "" {
		return nil, nil, &pricing.InvalidInputError{Field: "unit_id", Reason: "is required"}
	}

	unit, err := s.Provider.GetUnit(ctx, in.UnitID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: resolving unit: %v", pricing.ErrDependencyFailure, err)
	}
	if unit == nil {
		return nil, nil, &pricing.NotFoundError{Kind: "unit", ID: string(in.UnitID)}
	}

	for _, userID := range []pricing.UserID{in.SalespersonID, in.SalesManagerID} {
		if userID == "" {
			continue
		}
		user, err := s.Provider.GetUser(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: resolving user: %v", pricing.ErrDependencyFailure, err)
		}
		if user == nil {
			return nil, nil, &pricing.NotFoundError{Kind: "user", ID: string(userID)}
		}
	}

	return &pricing.CalculationContext{
		BaseAmount:     in.SalePrice,
		EntityType:     pricing.AppliesToSales,
		UnitType:       unit.Type,
		SalespersonID:  in.SalespersonID,
		SalesManagerID: in.SalesManagerID,
	}, unit, nil
}
