package router

import (
	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/internal/app/controller"
	"github.com/verdemarket/engage-backend/internal/middleware"
)

type Router struct {
	tagController      *controller.TagController
	qrController       *controller.QRController
	customerController *controller.CustomerController
	catalogController  *controller.CatalogController
	feedController     *controller.FeedController
	authMiddleware     *middleware.AuthMiddleware
	config             *config.Config
}

func NewRouter(
	tagController *controller.TagController,
	qrController *controller.QRController,
	customerController *controller.CustomerController,
	catalogController *controller.CatalogController,
	feedController *controller.FeedController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		tagController:      tagController,
		qrController:       qrController,
		customerController: customerController,
		catalogController:  catalogController,
		feedController:     feedController,
		authMiddleware:     authMiddleware,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "VERDEMARKET ENGAGE API is running",
		})
	})

	// public redemption URL printed inside every QR artifact
	router.GET("/r/:code", r.qrController.Redeem)

	// live data-thread event feed
	router.GET("/ws/events", r.feedController.Subscribe)

	admin := r.authMiddleware.RequireRole("admin")

	v1 := router.Group("/api/v1")
	{
		tags := v1.Group("/tags")
		{
			tags.GET("", r.tagController.ListTags)
			tags.GET("/trending", r.tagController.GetTrendingTags)
			tags.GET("/:id", r.tagController.GetTag)
			tags.GET("/:id/related", r.tagController.GetRelatedTags)
			tags.POST("/suggest", r.tagController.SuggestTags)
			tags.POST("",
				r.authMiddleware.Authenticate(),
				admin,
				r.tagController.CreateTag,
			)
		}

		entities := v1.Group("/entities/:type/:id")
		{
			entities.GET("/tags", r.tagController.GetEntityTags)
			entities.GET("/thread", r.catalogController.GetThread)
			entities.POST("/tags",
				r.authMiddleware.Authenticate(),
				r.tagController.TagEntity,
			)
			entities.DELETE("/tags",
				r.authMiddleware.Authenticate(),
				r.tagController.UntagEntity,
			)
		}

		qr := v1.Group("/qr")
		{
			qr.POST("/scan", r.qrController.ScanQR)

			qr.Use(r.authMiddleware.Authenticate(), admin)
			qr.GET("", r.qrController.ListQR)
			qr.GET("/:id", r.qrController.GetQR)
			qr.POST("", r.qrController.GenerateQR)
			qr.POST("/bulk", r.qrController.GenerateBulkQR)
			qr.DELETE("/:id", r.qrController.DeactivateQR)
		}

		v1.POST("/nfc/scan", r.qrController.ScanNFC)

		customers := v1.Group("/customers")
		{
			customers.POST("", r.customerController.CreateCustomer)
			customers.GET("/:id", r.customerController.GetCustomer)
			customers.PUT("/:id", r.customerController.UpdateCustomer)
			customers.GET("/:id/journey", r.customerController.GetJourney)
			customers.POST("/:id/touchpoints", r.customerController.TrackTouchpoint)
			customers.POST("/:id/digital-id", r.customerController.IssueDigitalID)
			customers.DELETE("/:id/consent", r.customerController.RevokeConsent)

			customers.GET("",
				r.authMiddleware.Authenticate(),
				admin,
				r.customerController.ListCustomers,
			)
		}

		segments := v1.Group("/segments")
		segments.Use(r.authMiddleware.Authenticate())
		{
			segments.GET("", r.customerController.ListSegments)
			segments.GET("/:id/members", r.customerController.GetSegmentMembers)
			segments.POST("", admin, r.customerController.CreateSegment)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.catalogController.ListProducts)
			products.GET("/by-tags", r.catalogController.GetProductsByTags)
			products.GET("/:id", r.catalogController.GetProduct)
			products.POST("/:id/view", r.catalogController.TrackView)
			products.POST("/:id/cart", r.catalogController.TrackCartAdd)
			products.POST("/:id/purchase", r.catalogController.TrackPurchase)
		}

		v1.GET("/vendors", r.catalogController.ListVendors)
		v1.GET("/vendors/:id/products", r.catalogController.GetVendorProducts)
		v1.GET("/recommendations/:customerId", r.catalogController.GetRecommendations)

		v1.GET("/analytics",
			r.authMiddleware.Authenticate(),
			admin,
			r.customerController.GetAnalytics,
		)

		v1.POST("/catalog/ingest",
			r.authMiddleware.Authenticate(),
			admin,
			r.catalogController.IngestCatalog,
		)

		v1.GET("/export",
			r.authMiddleware.Authenticate(),
			admin,
			r.catalogController.ExportSnapshot,
		)
		v1.POST("/import",
			r.authMiddleware.Authenticate(),
			admin,
			r.catalogController.ImportSnapshot,
		)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
