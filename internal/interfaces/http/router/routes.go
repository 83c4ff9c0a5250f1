package router

import (
	"github.com/salonsuite/backend/internal/interfaces/http/handler"
)

// StockRoutes builds the route group for stock tracking endpoints.
func StockRoutes(h *handler.StockHandler) *DomainGroup {
	g := NewDomainGroup("stock", "/stock")

	g.POST("/items", h.RegisterItem)
	g.POST("/usage", h.RecordUsage)
	g.POST("/restock", h.Restock)
	g.GET("/usage", h.ListUsage)
	g.GET("/levels", h.ListLevels)
	g.GET("/levels/below-minimum", h.ListBelowMinimum)
	g.GET("/levels/:item_id", h.GetLevel)
	g.PUT("/thresholds", h.SetMinQuantity)
	g.POST("/reconcile/:item_id", h.Reconcile)

	return g
}

// SystemRoutes builds the route group for system endpoints.
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")

	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)

	return g
}
