/*
handlers.go - HTTP API handlers for the brokerage pricing system

PURPOSE:
  Exposes the pricing engine and sale workflow via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Dynamic calculations:
    POST   /api/dynamic/calculate-preview   Preview a sale breakdown
    GET    /api/dynamic/calculation-rules   List all rules
    POST   /api/dynamic/calculation-rules   Create a rule
    PUT    /api/dynamic/calculation-rules/{id}    Update a rule
    DELETE /api/dynamic/calculation-rules/{id}    Delete a rule
    POST   /api/dynamic/initialize-defaults Seed the starter rule set

  Units:
    GET    /api/units                List units
    POST   /api/units                Create unit
    GET    /api/units/{id}           Get unit

  Users:
    GET    /api/users                List users
    POST   /api/users                Register user

  Sales:
    GET    /api/sales                List sales
    POST   /api/sales                Finalize a sale
    GET    /api/sales/{id}           Get sale with frozen breakdown

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Service: Preview/finalize orchestration
  - RuleFactory: JSON to rule conversion
  - validate: Request struct validation

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid rule configuration
  - 404: Resource not found
  - 502: A collaborator (store) failed mid-operation
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public;
  the embedding application's gateway is expected to front this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - sales/service.go: Domain orchestration
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/brokerage-engine/factory"
	"github.com/warp/brokerage-engine/pricing"
	"github.com/warp/brokerage-engine/sales"
	"github.com/warp/brokerage-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Service     *sales.Service
	RuleFactory *factory.RuleFactory

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:       store,
		Service:     sales.NewService(store, store, store),
		RuleFactory: factory.NewRuleFactory(),
		validate:    validator.New(),
	}
}

// =============================================================================
// DYNAMIC CALCULATION HANDLERS
// =============================================================================

// CalculatePreview computes a breakdown without persisting anything.
// POST /api/dynamic/calculate-preview
func (h *Handler) CalculatePreview(w http.ResponseWriter, r *http.Request) {
	var req CalculatePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	salePrice, err := factory.ParseDecimal("sale_price", req.SalePrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	eval, err := h.Service.Preview(r.Context(), sales.PreviewInput{
		SalePrice:      salePrice,
		UnitID:         pricing.UnitID(req.UnitID),
		SalespersonID:  pricing.UserID(req.SalespersonID),
		SalesManagerID: pricing.UserID(req.SalesManagerID),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// ListRules returns all calculation rules, active and inactive.
// GET /api/dynamic/calculation-rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = h.RuleFactory.ToJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule creates a calculation rule.
// POST /api/dynamic/calculation-rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("rule-%d", time.Now().UnixNano())
	}

	rule, err := h.RuleFactory.FromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	existing, err := h.Store.GetRule(r.Context(), rule.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check rule", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Rule already exists", nil)
		return
	}

	if err := h.Store.SaveRule(r.Context(), *rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(*rule))
}

// UpdateRule updates an existing calculation rule.
// PUT /api/dynamic/calculation-rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.Store.GetRule(r.Context(), pricing.RuleID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}

	var req RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = id // URL wins over body

	rule, err := h.RuleFactory.FromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveRule(r.Context(), *rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}

	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(*rule))
}

// DeleteRule removes a calculation rule.
// DELETE /api/dynamic/calculation-rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.Store.GetRule(r.Context(), pricing.RuleID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}

	if err := h.Store.DeleteRule(r.Context(), pricing.RuleID(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Rule deleted"})
}

// InitializeDefaults seeds the starter rule set if no rules exist yet.
// POST /api/dynamic/initialize-defaults
func (h *Handler) InitializeDefaults(w http.ResponseWriter, r *http.Request) {
	created, err := h.Service.InitializeDefaults(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to initialize defaults", err)
		return
	}

	resp := InitializeDefaultsResponse{Created: created}
	if created {
		resp.Message = "Default calculation rules created"
	} else {
		resp.Message = "Calculation rules already exist"
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns all units.
// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnit returns a single unit.
// GET /api/units/{id}
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	unit, err := h.Store.GetUnit(r.Context(), pricing.UnitID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toUnitDTO(*unit))
}

// CreateUnit creates or updates a unit.
// POST /api/units
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	price, err := factory.ParseDecimal("price", req.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	unit := sales.Unit{
		ID:      pricing.UnitID(req.ID),
		Code:    req.Code,
		Type:    pricing.UnitType(req.UnitType),
		Address: req.Address,
		Price:   price,
		Status:  sales.UnitStatus(req.Status),
		Description: pricing.LocalizedText{
			AR: req.DescriptionAR,
			EN: req.DescriptionEN,
		},
	}
	if unit.ID == "" {
		unit.ID = pricing.UnitID(fmt.Sprintf("unit-%d", time.Now().UnixNano()))
	}
	if unit.Status == "" {
		unit.Status = sales.UnitAvailable
	}
	if len(req.AreaSqm) > 0 {
		area, err := factory.ParseDecimal("area_sqm", req.AreaSqm)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		unit.AreaSqm = area
	}

	if err := h.Store.SaveUnit(r.Context(), unit); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save unit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUnitDTO(unit))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all registered users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = UserDTO{ID: string(u.ID), Name: u.Name, Role: u.Role}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser registers a salesperson or manager identity.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user := sales.User{
		ID:   pricing.UserID(req.ID),
		Name: req.Name,
		Role: req.Role,
	}
	if user.ID == "" {
		user.ID = pricing.UserID(fmt.Sprintf("user-%d", time.Now().UnixNano()))
	}

	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}

	writeJSON(w, http.StatusCreated, UserDTO{ID: string(user.ID), Name: user.Name, Role: user.Role})
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns all finalized sales, newest first.
// GET /api/sales
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListSales(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}

	dtos := make([]SaleDTO, len(records))
	for i, s := range records {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSale returns a sale with its frozen breakdown.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sale, err := h.Store.GetSale(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sale", err)
		return
	}
	if sale == nil {
		writeError(w, http.StatusNotFound, "Sale not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// CreateSale finalizes a sale: runs the calculation once and persists the
// totals with the full breakdown.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	salePrice, err := factory.ParseDecimal("sale_price", req.SalePrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	saleDate := time.Now().UTC()
	if req.SaleDate != "" {
		saleDate, err = time.Parse("2006-01-02", req.SaleDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	sale, err := h.Service.FinalizeSale(r.Context(), sales.FinalizeInput{
		SaleID:         fmt.Sprintf("sale-%d", time.Now().UnixNano()),
		UnitID:         pricing.UnitID(req.UnitID),
		ClientName:     req.ClientName,
		SaleDate:       saleDate,
		SalePrice:      salePrice,
		SalespersonID:  pricing.UserID(req.SalespersonID),
		SalesManagerID: pricing.UserID(req.SalesManagerID),
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data (dev only).
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Database reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toUnitDTO(u sales.Unit) UnitDTO {
	dto := UnitDTO{
		ID:            string(u.ID),
		Code:          u.Code,
		UnitType:      string(u.Type),
		Address:       u.Address,
		Status:        string(u.Status),
		DescriptionAR: u.Description.AR,
		DescriptionEN: u.Description.EN,
	}
	dto.AreaSqm, _ = u.AreaSqm.Float64()
	dto.Price, _ = u.Price.Float64()
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toSaleDTO(s sales.Sale) SaleDTO {
	dto := SaleDTO{
		ID:             s.ID,
		UnitID:         string(s.UnitID),
		ClientName:     s.ClientName,
		SaleDate:       s.SaleDate.Format("2006-01-02"),
		SalespersonID:  string(s.SalespersonID),
		SalesManagerID: string(s.SalesManagerID),
		Breakdown:      s.Breakdown,
		Notes:          s.Notes,
	}
	dto.SalePrice, _ = s.SalePrice.Float64()
	dto.CompanyCommission = s.CompanyCommission.Float64()
	dto.SalespersonCommission = s.SalespersonCommission.Float64()
	dto.SalesManagerCommission = s.SalesManagerCommission.Float64()
	dto.TotalTaxes = s.TotalTaxes.Float64()
	dto.TotalFees = s.TotalFees.Float64()
	dto.TotalDiscounts = s.TotalDiscounts.Float64()
	dto.NetCompanyRevenue = s.NetCompanyRevenue.Float64()
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// writeDomainError maps domain error categories onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case pricing.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case pricing.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, pricing.ErrDependencyFailure):
		writeError(w, http.StatusBadGateway, "Upstream dependency failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
