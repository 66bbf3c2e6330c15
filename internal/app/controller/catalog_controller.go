package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/middleware"
)

type CatalogController struct {
	orchestratorService service.OrchestratorService
	exportService       service.ExportService
}

func NewCatalogController(orchestratorService service.OrchestratorService, exportService service.ExportService) *CatalogController {
	return &CatalogController{
		orchestratorService: orchestratorService,
		exportService:       exportService,
	}
}

type IngestCatalogRequest struct {
	Vendors  []model.Vendor  `json:"vendors"`
	Products []model.Product `json:"products" binding:"required,min=1"`
}

type TrackRequest struct {
	CustomerID string  `json:"customer_id" binding:"required"`
	SessionID  string  `json:"session_id"`
	Quantity   int     `json:"quantity"`
	Amount     float64 `json:"amount"`
}

// IngestCatalog loads a vendor/product batch (Admin only)
// POST /api/v1/catalog/ingest
func (ctrl *CatalogController) IngestCatalog(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req IngestCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := ctrl.orchestratorService.IngestCatalog(req.Vendors, req.Products)
	if err != nil {
		log.Error("Failed to ingest catalog", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to ingest catalog",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}

// ListProducts returns the catalog
// GET /api/v1/products
func (ctrl *CatalogController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	products, err := ctrl.orchestratorService.ListProducts()
	if err != nil {
		log.Error("Failed to fetch products", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns one catalog record
// GET /api/v1/products/:id
func (ctrl *CatalogController) GetProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	product, err := ctrl.orchestratorService.GetProduct(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Product not found",
			})
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch product",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// GetVendorProducts returns a vendor's catalog slice
// GET /api/v1/vendors/:id/products
func (ctrl *CatalogController) GetVendorProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	products, err := ctrl.orchestratorService.GetProductsByVendor(c.Param("id"))
	if err != nil {
		log.Error("Failed to fetch vendor products", err, map[string]interface{}{
			"vendor_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProductsByTags returns the distinct products carrying any of the tags
// GET /api/v1/products/by-tags?tags=tag_vegan,tag_dessert
func (ctrl *CatalogController) GetProductsByTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tagIDs := strings.FieldsFunc(c.Query("tags"), func(r rune) bool { return r == ',' })
	if len(tagIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": "tags query parameter is required",
		})
		return
	}

	products, err := ctrl.orchestratorService.GetProductsByTags(tagIDs)
	if err != nil {
		log.Error("Failed to fetch products by tags", err, map[string]interface{}{
			"tag_count": len(tagIDs),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// ListVendors returns all vendors
// GET /api/v1/vendors
func (ctrl *CatalogController) ListVendors(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	vendors, err := ctrl.orchestratorService.ListVendors()
	if err != nil {
		log.Error("Failed to fetch vendors", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch vendors",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vendors": vendors,
		"count":   len(vendors),
	})
}

// TrackView records a product view
// POST /api/v1/products/:id/view
func (ctrl *CatalogController) TrackView(c *gin.Context) {
	ctrl.track(c, func(req TrackRequest) error {
		return ctrl.orchestratorService.TrackProductView(req.CustomerID, c.Param("id"), req.SessionID)
	})
}

// TrackCartAdd records a cart addition
// POST /api/v1/products/:id/cart
func (ctrl *CatalogController) TrackCartAdd(c *gin.Context) {
	ctrl.track(c, func(req TrackRequest) error {
		return ctrl.orchestratorService.TrackCartAdd(req.CustomerID, c.Param("id"), req.SessionID)
	})
}

// TrackPurchase records a completed purchase
// POST /api/v1/products/:id/purchase
func (ctrl *CatalogController) TrackPurchase(c *gin.Context) {
	ctrl.track(c, func(req TrackRequest) error {
		return ctrl.orchestratorService.TrackPurchase(req.CustomerID, c.Param("id"), req.SessionID, req.Quantity, req.Amount)
	})
}

func (ctrl *CatalogController) track(c *gin.Context, fn func(TrackRequest) error) {
	log := middleware.GetLoggerFromContext(c)

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := fn(req); err != nil {
		log.Error("Failed to track event", err, map[string]interface{}{
			"product_id":  c.Param("id"),
			"customer_id": req.CustomerID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to track event",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Event recorded",
	})
}

// GetRecommendations ranks products for a customer
// GET /api/v1/recommendations/:customerId?current=&category=
func (ctrl *CatalogController) GetRecommendations(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	recommendations, err := ctrl.orchestratorService.GetRecommendations(c.Param("customerId"), c.Query("current"), c.Query("category"))
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to build recommendations", err, map[string]interface{}{
			"customer_id": c.Param("customerId"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to build recommendations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recommendations": recommendations,
		"count":           len(recommendations),
	})
}

// GetThread returns an entity's data thread
// GET /api/v1/entities/:type/:id/thread?limit=
func (ctrl *CatalogController) GetThread(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	events, err := ctrl.orchestratorService.GetThread(c.Param("id"), c.Param("type"), limit)
	if err != nil {
		log.Error("Failed to fetch data thread", err, map[string]interface{}{
			"entity_id":   c.Param("id"),
			"entity_type": c.Param("type"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch data thread",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// ExportSnapshot dumps the full engine state (Admin only)
// GET /api/v1/export
func (ctrl *CatalogController) ExportSnapshot(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	snapshot, err := ctrl.exportService.Export()
	if err != nil {
		log.Error("Failed to export snapshot", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to export snapshot",
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// ImportSnapshot restores a state snapshot (Admin only)
// POST /api/v1/import
func (ctrl *CatalogController) ImportSnapshot(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var snapshot service.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid snapshot document",
			"details": err.Error(),
		})
		return
	}

	if err := ctrl.exportService.Import(&snapshot); err != nil {
		log.Error("Failed to import snapshot", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to import snapshot",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Snapshot imported",
	})
}
