/*
Package sales orchestrates sale pricing on top of the pricing engine.

PURPOSE:
  Resolves the calculation context for a prospective or existing sale
  (unit type, salesperson, sales manager), fetches the active rule set,
  runs the engine, and persists the resulting breakdown when a sale is
  finalized. The engine itself stays pure; everything stateful lives here
  or behind the interfaces this package consumes.

SEE ALSO:
  - service.go: Preview and finalize operations
  - defaults.go: Starter rule set seeding
  - pricing: The calculation engine
*/
package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/brokerage-engine/pricing"
)

// =============================================================================
// UNIT TYPES - Tags used by rule unit-type filters
// =============================================================================

const (
	UnitApartment      pricing.UnitType = "apartment"
	UnitCommercial     pricing.UnitType = "commercial"
	UnitAdministrative pricing.UnitType = "administrative"
	UnitMedical        pricing.UnitType = "medical"
)

// =============================================================================
// DOMAIN RECORDS
// =============================================================================

// Unit is a sellable real-estate unit.
type Unit struct {
	ID          pricing.UnitID
	Code        string
	Type        pricing.UnitType
	Address     string
	AreaSqm     decimal.Decimal
	Price       decimal.Decimal
	Status      UnitStatus
	Description pricing.LocalizedText
	CreatedAt   time.Time
}

type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitSold      UnitStatus = "sold"
	UnitRented    UnitStatus = "rented"
)

// User is a salesperson or sales manager identity. Authentication and
// authorization are handled by the embedding application; this record only
// exists so sale context references can be verified.
type User struct {
	ID   pricing.UserID
	Name string
	Role string
}

// Sale is a finalized sale with its persisted calculation results. The
// breakdown is computed exactly once at finalization; previews are never
// persisted.
type Sale struct {
	ID         string
	UnitID     pricing.UnitID
	ClientName string
	SaleDate   time.Time
	SalePrice  decimal.Decimal

	SalespersonID  pricing.UserID
	SalesManagerID pricing.UserID

	CompanyCommission      pricing.Money
	SalespersonCommission  pricing.Money
	SalesManagerCommission pricing.Money
	TotalTaxes             pricing.Money
	TotalFees              pricing.Money
	TotalDiscounts         pricing.Money
	NetCompanyRevenue      pricing.Money

	// Breakdown is the full evaluation captured at finalization time, so
	// later rule edits never change what a closed sale shows.
	Breakdown *pricing.Evaluation

	Notes     string
	CreatedAt time.Time
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// ContextProvider resolves the identities a calculation context references.
type ContextProvider interface {
	// GetUnit returns the unit, or nil if it does not exist.
	GetUnit(ctx context.Context, id pricing.UnitID) (*Unit, error)

	// GetUser returns the user, or nil if it does not exist.
	GetUser(ctx context.Context, id pricing.UserID) (*User, error)
}

// SaleStore persists finalized sales.
type SaleStore interface {
	// SaveSale persists the sale AND marks its unit sold as one atomic
	// write. A failure leaves neither the sale row nor the status flip
	// behind.
	SaveSale(ctx context.Context, sale Sale) error

	GetSale(ctx context.Context, id string) (*Sale, error)
	ListSales(ctx context.Context) ([]Sale, error)
}
