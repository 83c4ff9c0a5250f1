package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	stockapp "github.com/salonsuite/backend/internal/application/stock"
	"github.com/salonsuite/backend/internal/interfaces/http/middleware"
)

// StockHandler handles stock tracking API endpoints
type StockHandler struct {
	BaseHandler
	stockService *stockapp.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *stockapp.StockService) *StockHandler {
	return &StockHandler{
		stockService: stockService,
	}
}

// RegisterItem godoc
// @ID           registerStockItem
// @Summary      Register an item for stock tracking
// @Description  Creates a stock level record for an item with an optional starting quantity
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        request body stockapp.RegisterItemRequest true "Item registration request"
// @Success      201 {object} APIResponse[stockapp.StockLevelResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/items [post]
func (h *StockHandler) RegisterItem(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req stockapp.RegisterItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	level, err := h.stockService.RegisterItem(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, level)
}

// RecordUsage godoc
// @ID           recordStockUsage
// @Summary      Record product usage
// @Description  Appends a usage entry to the ledger and decrements the stock counter, clamping at zero
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        request body stockapp.RecordUsageRequest true "Usage request"
// @Success      200 {object} APIResponse[stockapp.UsageRecordedResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/usage [post]
func (h *StockHandler) RecordUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req stockapp.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.stockService.RecordUsage(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Restock godoc
// @ID           restockItem
// @Summary      Add stock for an item
// @Description  Appends a restock entry to the ledger and increments the stock counter
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        request body stockapp.RestockRequest true "Restock request"
// @Success      200 {object} APIResponse[stockapp.UsageRecordedResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/restock [post]
func (h *StockHandler) Restock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req stockapp.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.stockService.Restock(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetLevel godoc
// @ID           getStockLevel
// @Summary      Get stock level for an item
// @Description  Returns the current stock level record for a tracked item
// @Tags         stock
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        item_id path string true "Item ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.StockLevelResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/levels/{item_id} [get]
func (h *StockHandler) GetLevel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	level, err := h.stockService.GetLevel(c.Request.Context(), tenantID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, level)
}

// ListLevels godoc
// @ID           listStockLevels
// @Summary      List stock levels
// @Description  Returns a paginated list of stock levels with optional filtering
// @Tags         stock
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        below_minimum query boolean false "Only items below their minimum threshold"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Order by field" default(updated_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]stockapp.StockLevelResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/levels [get]
func (h *StockHandler) ListLevels(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter stockapp.LevelListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// Set defaults
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	levels, total, err := h.stockService.ListLevels(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, levels, total, filter.Page, filter.PageSize)
}

// ListBelowMinimum godoc
// @ID           listStockBelowMinimum
// @Summary      List items below minimum threshold
// @Description  Returns stock levels that are at or below their low-stock threshold
// @Tags         stock
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]stockapp.StockLevelResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/levels/below-minimum [get]
func (h *StockHandler) ListBelowMinimum(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter stockapp.LevelListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// Set defaults
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	levels, total, err := h.stockService.ListBelowMinimum(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, levels, total, filter.Page, filter.PageSize)
}

// SetMinQuantity godoc
// @ID           setStockMinQuantity
// @Summary      Set the low-stock threshold for an item
// @Description  Updates the minimum quantity used for low-stock alerts
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        request body stockapp.SetMinQuantityRequest true "Threshold request"
// @Success      200 {object} APIResponse[stockapp.StockLevelResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/thresholds [put]
func (h *StockHandler) SetMinQuantity(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req stockapp.SetMinQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	level, err := h.stockService.SetMinQuantity(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, level)
}

// ListUsage godoc
// @ID           listStockUsage
// @Summary      List usage history
// @Description  Returns a paginated list of ledger entries with optional filtering
// @Tags         stock
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        item_id query string false "Filter by item ID" format(uuid)
// @Param        entry_type query string false "Filter by entry type" Enums(USAGE, RESTOCK)
// @Param        start_date query string false "Filter entries recorded at or after this time" format(date-time)
// @Param        end_date query string false "Filter entries recorded before this time" format(date-time)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Order by field" default(recorded_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]stockapp.UsageEventResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/usage [get]
func (h *StockHandler) ListUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter stockapp.UsageListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// Set defaults
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	events, total, err := h.stockService.ListUsage(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, events, total, filter.Page, filter.PageSize)
}

// Reconcile godoc
// @ID           reconcileStockLevel
// @Summary      Reconcile a stock counter against its ledger
// @Description  Recomputes the counter from the signed sum of ledger entries and corrects any drift
// @Tags         stock
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID" format(uuid)
// @Param        item_id path string true "Item ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.ReconcileResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /stock/reconcile/{item_id} [post]
func (h *StockHandler) Reconcile(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	result, err := h.stockService.Reconcile(c.Request.Context(), tenantID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
