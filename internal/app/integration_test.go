package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/internal/app/controller"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/db"
	"github.com/verdemarket/engage-backend/internal/middleware"
	"github.com/verdemarket/engage-backend/pkg/qrcode"
	"github.com/verdemarket/engage-backend/pkg/util"
	"gorm.io/gorm"

	appconfig "github.com/verdemarket/engage-backend/config"
)

const integrationJWTSecret = "integration-test-secret"

type TestServer struct {
	Router *gin.Engine
	DB     *gorm.DB
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	tagRepo := repository.NewTagRepository(testDB)
	qrRepo := repository.NewQRRepository(testDB)
	customerRepo := repository.NewCustomerRepository(testDB)
	segmentRepo := repository.NewSegmentRepository(testDB)
	journeyRepo := repository.NewJourneyRepository(testDB)
	threadRepo := repository.NewThreadRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	vendorRepo := repository.NewVendorRepository(testDB)

	scoring := model.DefaultScoring()
	qrCfg := appconfig.QRConfig{
		BaseURL:       "http://localhost:8080",
		CodeLength:    8,
		ImageSize:     256,
		EncodeTimeout: 5 * time.Second,
	}

	tagService := service.NewTagService(tagRepo)
	qrService := service.NewQRService(qrRepo, qrcode.NewPNGEncoder(qrCfg.EncodeTimeout), nil, &qrCfg)
	customerService := service.NewCustomerService(
		customerRepo, segmentRepo, journeyRepo, tagRepo,
		tagService, qrService, scoring,
	)
	orchestratorService := service.NewOrchestratorService(
		productRepo, vendorRepo, threadRepo, customerRepo, tagRepo,
		tagService, qrService, customerService, nil, scoring,
	)
	exportService := service.NewExportService(
		tagRepo, qrRepo, customerRepo, segmentRepo, journeyRepo, threadRepo,
	)

	tagController := controller.NewTagController(tagService)
	qrController := controller.NewQRController(qrService, orchestratorService)
	customerController := controller.NewCustomerController(customerService)
	catalogController := controller.NewCatalogController(orchestratorService, exportService)

	authMiddleware := middleware.NewAuthMiddleware(integrationJWTSecret)
	admin := authMiddleware.RequireRole("admin")

	router := gin.New()

	v1 := router.Group("/api/v1")
	{
		tags := v1.Group("/tags")
		{
			tags.GET("", tagController.ListTags)
			tags.POST("", authMiddleware.Authenticate(), admin, tagController.CreateTag)
		}

		qr := v1.Group("/qr")
		{
			qr.POST("/scan", qrController.ScanQR)
			qr.POST("", authMiddleware.Authenticate(), admin, qrController.GenerateQR)
		}

		customers := v1.Group("/customers")
		{
			customers.POST("", customerController.CreateCustomer)
			customers.GET("/:id", customerController.GetCustomer)
			customers.GET("/:id/journey", customerController.GetJourney)
		}

		products := v1.Group("/products")
		{
			products.GET("", catalogController.ListProducts)
			products.POST("/:id/purchase", catalogController.TrackPurchase)
		}

		v1.GET("/recommendations/:customerId", catalogController.GetRecommendations)
		v1.POST("/catalog/ingest", authMiddleware.Authenticate(), admin, catalogController.IngestCatalog)
	}

	router.GET("/r/:code", qrController.Redeem)

	return &TestServer{Router: router, DB: testDB}
}

func adminToken(t *testing.T) string {
	token, err := util.GenerateToken("op_1", "admin@example.com", "admin", integrationJWTSecret, 15*time.Minute)
	require.NoError(t, err)
	return token
}

func (ts *TestServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonBody)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// Full loop: tag rules, catalog ingest with auto-tagging, a customer
// purchase, and the recommendations the purchase produces.
func TestIntegration_PurchaseToRecommendation(t *testing.T) {
	ts := setupIntegrationTest(t)
	token := adminToken(t)

	// tag with an auto-apply rule
	w := ts.request(t, http.MethodPost, "/api/v1/tags", token, map[string]interface{}{
		"name":     "Artisan Food",
		"category": "product",
		"auto_rules": []map[string]interface{}{
			{"field": "category", "operator": "equals", "value": "food"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// catalog ingest triggers the auto-tagger
	w = ts.request(t, http.MethodPost, "/api/v1/catalog/ingest", token, map[string]interface{}{
		"vendors": []map[string]interface{}{
			{"id": "vendor_1", "name": "Green Farm", "category": "produce"},
		},
		"products": []map[string]interface{}{
			{"id": "prod_1", "vendor_id": "vendor_1", "name": "Organic Honey", "category": "food", "price": 18.0},
			{"id": "prod_2", "vendor_id": "vendor_1", "name": "Herbal Tea", "category": "food", "price": 12.0},
			{"id": "prod_3", "vendor_id": "vendor_1", "name": "Clay Pot", "category": "crafts", "price": 30.0},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)["result"].(map[string]interface{})
	assert.Equal(t, float64(3), result["products"])
	assert.Equal(t, float64(2), result["tagged"])

	// register a customer
	w = ts.request(t, http.MethodPost, "/api/v1/customers", "", map[string]interface{}{
		"name":  "Mina Park",
		"email": "mina@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	customerID := decode(t, w)["customer"].(map[string]interface{})["id"].(string)

	// purchase one of the tagged products
	w = ts.request(t, http.MethodPost, "/api/v1/products/prod_1/purchase", "", map[string]interface{}{
		"customer_id": customerID,
		"quantity":    1,
		"amount":      18.0,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	// the purchase shows up on the profile and the journey
	w = ts.request(t, http.MethodGet, "/api/v1/customers/"+customerID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["customer"].(map[string]interface{})
	assert.Equal(t, float64(1), profile["total_orders"])
	assert.Equal(t, float64(18), profile["total_spent"])

	w = ts.request(t, http.MethodGet, "/api/v1/customers/"+customerID+"/journey", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	journey := decode(t, w)["journey"].(map[string]interface{})
	assert.Equal(t, "purchase", journey["current_stage"])

	// the shared tag ranks the other food product first
	w = ts.request(t, http.MethodGet, fmt.Sprintf("/api/v1/recommendations/%s?current=prod_1", customerID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	recommendations := decode(t, w)["recommendations"].([]interface{})
	require.NotEmpty(t, recommendations)
	first := recommendations[0].(map[string]interface{})["product"].(map[string]interface{})
	assert.Equal(t, "prod_2", first["id"])
}

// QR lifecycle over HTTP: admin issues a code, an anonymous client scans
// it, the redemption URL redirects and the quota eventually closes it.
func TestIntegration_QRLifecycle(t *testing.T) {
	ts := setupIntegrationTest(t)
	token := adminToken(t)

	w := ts.request(t, http.MethodPost, "/api/v1/qr", token, map[string]interface{}{
		"type":      "product",
		"payload":   map[string]interface{}{"product_id": "prod_9"},
		"max_usage": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decode(t, w)["qr_code"].(map[string]interface{})
	shortCode := code["short_code"].(string)

	// unauthenticated issuance is rejected
	w = ts.request(t, http.MethodPost, "/api/v1/qr", "", map[string]interface{}{
		"type": "payment",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// public scan succeeds once
	w = ts.request(t, http.MethodPost, "/api/v1/qr/scan", "", map[string]interface{}{
		"short_code": shortCode,
	})
	require.Equal(t, http.StatusOK, w.Code)
	scan := decode(t, w)["result"].(map[string]interface{})
	assert.Equal(t, true, scan["success"])
	assert.Equal(t, "view_product", scan["action"])

	// the second scan hits the quota
	w = ts.request(t, http.MethodPost, "/api/v1/qr/scan", "", map[string]interface{}{
		"short_code": shortCode,
	})
	require.Equal(t, http.StatusOK, w.Code)
	scan = decode(t, w)["result"].(map[string]interface{})
	assert.Equal(t, false, scan["success"])
	assert.Equal(t, "quota exceeded", scan["reason"])
}
