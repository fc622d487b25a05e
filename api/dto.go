/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Calculation:
    CalculatePreviewRequest (response is pricing.Evaluation directly)

  Rules:
    RuleDTO (wraps factory.RuleJSON)

  Units / Users / Sales:
    UnitDTO, CreateUnitRequest, UserDTO, CreateUserRequest,
    SaleDTO, CreateSaleRequest

MONEY FIELDS:
  Monetary request fields are carried as json.RawMessage and parsed
  through factory.ParseDecimal, which accepts JSON numbers and numeric
  strings.
  Clients built on loosely-typed stacks routinely send "150000" where
  150000 is meant; the API converts instead of failing.

VALIDATION:
  Struct tags use go-playground/validator. Handlers run the validator
  before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleJSON type
*/
package api

import (
	"encoding/json"

	"github.com/warp/brokerage-engine/factory"
	"github.com/warp/brokerage-engine/pricing"
)

// =============================================================================
// CALCULATION
// =============================================================================

// CalculatePreviewRequest asks for a breakdown without persisting anything.
type CalculatePreviewRequest struct {
	SalePrice      json.RawMessage `json:"sale_price" validate:"required"`
	UnitID         string          `json:"unit_id" validate:"required"`
	SalespersonID  string          `json:"salesperson_id"`
	SalesManagerID string          `json:"sales_manager_id"`
}

// =============================================================================
// RULES
// =============================================================================

// RuleDTO represents a calculation rule in API responses.
type RuleDTO = factory.RuleJSON

// InitializeDefaultsResponse reports whether the starter rule set was seeded.
type InitializeDefaultsResponse struct {
	Created bool   `json:"created"`
	Message string `json:"message"`
}

// =============================================================================
// UNITS
// =============================================================================

// UnitDTO represents a unit in API responses.
type UnitDTO struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	UnitType      string  `json:"unit_type"`
	Address       string  `json:"address,omitempty"`
	AreaSqm       float64 `json:"area_sqm,omitempty"`
	Price         float64 `json:"price"`
	Status        string  `json:"status"`
	DescriptionAR string  `json:"description_ar,omitempty"`
	DescriptionEN string  `json:"description_en,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// CreateUnitRequest is the request to create or update a unit.
type CreateUnitRequest struct {
	ID            string          `json:"id"`
	Code          string          `json:"code" validate:"required"`
	UnitType      string          `json:"unit_type" validate:"required,oneof=apartment commercial administrative medical"`
	Address       string          `json:"address"`
	AreaSqm       json.RawMessage `json:"area_sqm"`
	Price         json.RawMessage `json:"price" validate:"required"`
	Status        string          `json:"status" validate:"omitempty,oneof=available sold rented"`
	DescriptionAR string          `json:"description_ar"`
	DescriptionEN string          `json:"description_en"`
}

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a salesperson or manager identity.
type UserDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// CreateUserRequest is the request to register a user.
type CreateUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Role string `json:"role" validate:"omitempty,oneof=salesperson sales_manager admin"`
}

// =============================================================================
// SALES
// =============================================================================

// SaleDTO represents a finalized sale with its frozen totals.
type SaleDTO struct {
	ID             string  `json:"id"`
	UnitID         string  `json:"unit_id"`
	ClientName     string  `json:"client_name"`
	SaleDate       string  `json:"sale_date"`
	SalePrice      float64 `json:"sale_price"`
	SalespersonID  string  `json:"salesperson_id"`
	SalesManagerID string  `json:"sales_manager_id,omitempty"`

	CompanyCommission      float64 `json:"company_commission"`
	SalespersonCommission  float64 `json:"salesperson_commission"`
	SalesManagerCommission float64 `json:"sales_manager_commission"`
	TotalTaxes             float64 `json:"total_taxes"`
	TotalFees              float64 `json:"total_fees"`
	TotalDiscounts         float64 `json:"total_discounts"`
	NetCompanyRevenue      float64 `json:"net_company_revenue"`

	Breakdown *pricing.Evaluation `json:"breakdown,omitempty"`

	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateSaleRequest finalizes a sale.
type CreateSaleRequest struct {
	UnitID         string          `json:"unit_id" validate:"required"`
	ClientName     string          `json:"client_name" validate:"required"`
	SaleDate       string          `json:"sale_date"`
	SalePrice      json.RawMessage `json:"sale_price" validate:"required"`
	SalespersonID  string          `json:"salesperson_id" validate:"required"`
	SalesManagerID string          `json:"sales_manager_id"`
	Notes          string          `json:"notes"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
