package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/middleware"
)

type CustomerController struct {
	customerService service.CustomerService
}

func NewCustomerController(customerService service.CustomerService) *CustomerController {
	return &CustomerController{
		customerService: customerService,
	}
}

type CreateCustomerRequest struct {
	Name        string                `json:"name" binding:"required"`
	Email       string                `json:"email" binding:"required,email"`
	Phone       string                `json:"phone"`
	Membership  model.MembershipClass `json:"membership"`
	Preferences model.JSONMap         `json:"preferences"`
}

type UpdateCustomerRequest struct {
	Name            *string                `json:"name"`
	Email           *string                `json:"email"`
	Phone           *string                `json:"phone"`
	Membership      *model.MembershipClass `json:"membership"`
	Preferences     model.JSONMap          `json:"preferences"`
	NPS             *int                   `json:"nps"`
	FavoriteVendors model.StringSlice      `json:"favorite_vendors"`
}

type TrackTouchpointRequest struct {
	Channel model.TouchpointChannel `json:"channel" binding:"required"`
	Action  string                  `json:"action" binding:"required"`
	Outcome model.TouchpointOutcome `json:"outcome"`
	Payload model.JSONMap           `json:"payload"`
}

type CreateSegmentRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Criteria    model.SegmentCriteria `json:"criteria" binding:"required,min=1"`
	Campaigns   model.StringSlice     `json:"campaigns"`
}

// CreateCustomer registers a new customer profile
// POST /api/v1/customers
func (ctrl *CustomerController) CreateCustomer(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	customer, err := ctrl.customerService.CreateCustomer(service.CreateCustomerInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Membership:  req.Membership,
		Preferences: req.Preferences,
	})
	if err != nil {
		log.Error("Failed to create customer", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create customer",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"customer": customer,
	})
}

// ListCustomers returns every customer profile (Admin only)
// GET /api/v1/customers
func (ctrl *CustomerController) ListCustomers(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customers, err := ctrl.customerService.ListCustomers()
	if err != nil {
		log.Error("Failed to fetch customers", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch customers",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customers": customers,
		"count":     len(customers),
	})
}

// GetCustomer returns one profile
// GET /api/v1/customers/:id
func (ctrl *CustomerController) GetCustomer(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customer, err := ctrl.customerService.GetCustomer(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to fetch customer", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch customer",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer": customer,
	})
}

// UpdateCustomer applies profile changes
// PUT /api/v1/customers/:id
func (ctrl *CustomerController) UpdateCustomer(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	customer, err := ctrl.customerService.UpdateCustomer(c.Param("id"), service.UpdateCustomerInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Membership:      req.Membership,
		Preferences:     req.Preferences,
		NPS:             req.NPS,
		FavoriteVendors: req.FavoriteVendors,
	})
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to update customer", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update customer",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer": customer,
	})
}

// TrackTouchpoint appends a journey touchpoint
// POST /api/v1/customers/:id/touchpoints
func (ctrl *CustomerController) TrackTouchpoint(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req TrackTouchpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	journey, err := ctrl.customerService.TrackTouchpoint(service.TrackTouchpointInput{
		CustomerID: c.Param("id"),
		Channel:    req.Channel,
		Action:     req.Action,
		Outcome:    req.Outcome,
		Payload:    req.Payload,
	})
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to track touchpoint", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to track touchpoint",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"journey": journey,
	})
}

// GetJourney returns the derived journey state
// GET /api/v1/customers/:id/journey
func (ctrl *CustomerController) GetJourney(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	journey, err := ctrl.customerService.GetJourney(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to fetch journey", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch journey",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"journey": journey,
	})
}

// IssueDigitalID issues the customer's digital membership card
// POST /api/v1/customers/:id/digital-id
func (ctrl *CustomerController) IssueDigitalID(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customer, err := ctrl.customerService.IssueDigitalID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		log.Error("Failed to issue digital ID", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to issue digital ID",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"customer":   customer,
		"digital_id": customer.DigitalID,
	})
}

// RevokeConsent stops tracking for a customer
// DELETE /api/v1/customers/:id/consent
func (ctrl *CustomerController) RevokeConsent(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	customer, err := ctrl.customerService.RevokeConsent(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Customer not found",
			})
			return
		}
		if errors.Is(err, service.ErrConsentAlreadyRevoked) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Consent is already revoked",
			})
			return
		}
		log.Error("Failed to revoke consent", err, map[string]interface{}{
			"customer_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to revoke consent",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer": customer,
	})
}

// CreateSegment registers a customer cohort (Admin only)
// POST /api/v1/segments
func (ctrl *CustomerController) CreateSegment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	segment, err := ctrl.customerService.CreateSegment(service.CreateSegmentInput{
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		Campaigns:   req.Campaigns,
	})
	if err != nil {
		if errors.Is(err, service.ErrSegmentAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A segment with this name already exists",
			})
			return
		}
		log.Error("Failed to create segment", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create segment",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"segment": segment,
	})
}

// ListSegments returns every segment
// GET /api/v1/segments
func (ctrl *CustomerController) ListSegments(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	segments, err := ctrl.customerService.ListSegments()
	if err != nil {
		log.Error("Failed to fetch segments", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch segments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"segments": segments,
		"count":    len(segments),
	})
}

// GetSegmentMembers returns the customers currently in a segment
// GET /api/v1/segments/:id/members
func (ctrl *CustomerController) GetSegmentMembers(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	members, err := ctrl.customerService.GetSegmentMembers(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSegmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Segment not found",
			})
			return
		}
		log.Error("Failed to fetch segment members", err, map[string]interface{}{
			"segment_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch segment members",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members": members,
		"count":   len(members),
	})
}

// GetAnalytics returns the engagement snapshot, as JSON or a spreadsheet
// GET /api/v1/analytics?period=week&start=2026-08-01T00:00:00Z&format=xlsx
func (ctrl *CustomerController) GetAnalytics(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if c.Query("format") == "xlsx" {
		data, err := ctrl.customerService.ExportAnalyticsXLSX()
		if err != nil {
			log.Error("Failed to export analytics spreadsheet", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to export analytics",
			})
			return
		}

		filename := fmt.Sprintf("analytics-%s.xlsx", time.Now().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}

	var start *time.Time
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request data",
				"details": "start must be RFC3339",
			})
			return
		}
		start = &parsed
	}

	summary, err := ctrl.customerService.GetAnalytics(c.Query("period"), start)
	if err != nil {
		log.Error("Failed to build analytics", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to build analytics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analytics": summary,
	})
}
