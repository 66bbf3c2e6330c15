package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/middleware"
)

type QRController struct {
	qrService           service.QRService
	orchestratorService service.OrchestratorService
}

func NewQRController(qrService service.QRService, orchestratorService service.OrchestratorService) *QRController {
	return &QRController{
		qrService:           qrService,
		orchestratorService: orchestratorService,
	}
}

type GenerateQRRequest struct {
	Type      model.QRCodeType `json:"type" binding:"required"`
	Payload   model.JSONMap    `json:"payload"`
	ExpiresAt *time.Time       `json:"expires_at"`
	MaxUsage  int              `json:"max_usage" binding:"gte=0"`
	Metadata  model.JSONMap    `json:"metadata"`
}

type BulkGenerateQRRequest struct {
	Codes []GenerateQRRequest `json:"codes" binding:"required,min=1"`
}

type ScanQRRequest struct {
	ShortCode  string `json:"short_code" binding:"required"`
	CustomerID string `json:"customer_id"`
}

type ScanNFCRequest struct {
	TagID      string           `json:"tag_id" binding:"required"`
	TagType    model.NFCTagType `json:"tag_type" binding:"required"`
	Payload    model.JSONMap    `json:"payload"`
	ValidFrom  *time.Time       `json:"valid_from"`
	ValidUntil *time.Time       `json:"valid_until"`
}

// GenerateQR issues a new QR code (Admin only)
// POST /api/v1/qr
func (ctrl *QRController) GenerateQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req GenerateQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	code, err := ctrl.qrService.GenerateQRCode(c.Request.Context(), service.GenerateQRInput{
		Type:      req.Type,
		Payload:   req.Payload,
		ExpiresAt: req.ExpiresAt,
		MaxUsage:  req.MaxUsage,
		Metadata:  req.Metadata,
	})
	if err != nil {
		log.Error("Failed to generate QR code", err, map[string]interface{}{
			"type": req.Type,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate QR code",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"qr_code": code,
	})
}

// GenerateBulkQR issues a batch of QR codes (Admin only)
// POST /api/v1/qr/bulk
func (ctrl *QRController) GenerateBulkQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req BulkGenerateQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	inputs := make([]service.GenerateQRInput, 0, len(req.Codes))
	for _, entry := range req.Codes {
		inputs = append(inputs, service.GenerateQRInput{
			Type:      entry.Type,
			Payload:   entry.Payload,
			ExpiresAt: entry.ExpiresAt,
			MaxUsage:  entry.MaxUsage,
			Metadata:  entry.Metadata,
		})
	}

	result, err := ctrl.qrService.GenerateBulkQRCodes(c.Request.Context(), inputs)
	if err != nil {
		log.Error("Failed to generate QR batch", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate QR batch",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"codes":  result.Codes,
		"count":  len(result.Codes),
		"failed": result.Failed,
	})
}

// ListQR returns all issued codes (Admin only)
// GET /api/v1/qr
func (ctrl *QRController) ListQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	codes, err := ctrl.qrService.ListQRCodes()
	if err != nil {
		log.Error("Failed to fetch QR codes", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch QR codes",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"codes": codes,
		"count": len(codes),
	})
}

// GetQR returns one code record
// GET /api/v1/qr/:id
func (ctrl *QRController) GetQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	code, err := ctrl.qrService.GetQRCode(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrQRNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "QR code not found",
			})
			return
		}
		log.Error("Failed to fetch QR code", err, map[string]interface{}{
			"qr_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch QR code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qr_code": code,
	})
}

// DeactivateQR permanently deactivates a code (Admin only)
// DELETE /api/v1/qr/:id
func (ctrl *QRController) DeactivateQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if err := ctrl.qrService.DeactivateQRCode(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrQRNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "QR code not found",
			})
			return
		}
		log.Error("Failed to deactivate QR code", err, map[string]interface{}{
			"qr_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to deactivate QR code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "QR code deactivated",
	})
}

// ScanQR redeems a short code, optionally attributed to a customer
// POST /api/v1/qr/scan
func (ctrl *QRController) ScanQR(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ScanQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := ctrl.orchestratorService.ProcessQRScan(c.Request.Context(), req.ShortCode, req.CustomerID)
	if err != nil {
		log.Error("Failed to process QR scan", err, map[string]interface{}{
			"short_code": req.ShortCode,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process scan",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}

// Redeem resolves a redemption URL hit. Successful scans with a redirect
// target are forwarded; everything else renders the scan result.
// GET /r/:code
func (ctrl *QRController) Redeem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	result, err := ctrl.orchestratorService.ProcessQRScan(c.Request.Context(), c.Param("code"), c.Query("customer_id"))
	if err != nil {
		log.Error("Failed to process redemption", err, map[string]interface{}{
			"short_code": c.Param("code"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process scan",
		})
		return
	}

	if result.Success && result.RedirectURL != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusGone
	}
	c.JSON(status, gin.H{
		"result": result,
	})
}

// ScanNFC processes a presented NFC tag
// POST /api/v1/nfc/scan
func (ctrl *QRController) ScanNFC(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ScanNFCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := ctrl.qrService.ProcessNFCTag(c.Request.Context(), &model.NFCTag{
		TagID:      req.TagID,
		TagType:    req.TagType,
		Payload:    req.Payload,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		log.Error("Failed to process NFC tag", err, map[string]interface{}{
			"nfc_tag_id": req.TagID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process NFC tag",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}
