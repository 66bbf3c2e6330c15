package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/db"
	"github.com/verdemarket/engage-backend/pkg/qrcode"
)

// captureBroadcaster records events pushed at the live feed.
type captureBroadcaster struct {
	events []*model.ThreadEvent
}

func (b *captureBroadcaster) Broadcast(event *model.ThreadEvent) {
	b.events = append(b.events, event)
}

type orchestratorFixture struct {
	orchestrator    OrchestratorService
	tagService      TagService
	qrService       QRService
	customerService CustomerService
	productRepo     repository.ProductRepository
	tagRepo         repository.TagRepository
	broadcaster     *captureBroadcaster
}

func setupOrchestratorTest(t *testing.T) *orchestratorFixture {
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
	tagService := NewTagService(tagRepo)
	qrCfg := testQRConfig()
	qrService := NewQRService(qrRepo, qrcode.NewPNGEncoder(qrCfg.EncodeTimeout), nil, &qrCfg)
	customerService := NewCustomerService(
		customerRepo, segmentRepo, journeyRepo, tagRepo,
		tagService, qrService, scoring,
	)
	broadcaster := &captureBroadcaster{}
	orchestrator := NewOrchestratorService(
		productRepo, vendorRepo, threadRepo, customerRepo, tagRepo,
		tagService, qrService, customerService, broadcaster, scoring,
	)

	return &orchestratorFixture{
		orchestrator:    orchestrator,
		tagService:      tagService,
		qrService:       qrService,
		customerService: customerService,
		productRepo:     productRepo,
		tagRepo:         tagRepo,
		broadcaster:     broadcaster,
	}
}

func sampleCatalog() ([]model.Vendor, []model.Product) {
	vendors := []model.Vendor{
		{ID: "vendor_1", Name: "Green Farm", Category: "produce", Region: "north"},
		{ID: "vendor_2", Name: "Craft Works", Category: "crafts", Region: "south"},
	}
	products := []model.Product{
		{ID: "prod_1", VendorID: "vendor_1", Name: "Organic Honey", Category: "food", Price: 18, Rating: 4.5},
		{ID: "prod_2", VendorID: "vendor_1", Name: "Herbal Tea", Category: "food", Price: 12, Rating: 4.0},
		{ID: "prod_3", VendorID: "vendor_2", Name: "Woven Basket", Category: "crafts", Price: 45, Rating: 4.8},
	}
	return vendors, products
}

func TestOrchestrator_IngestCatalog(t *testing.T) {
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	result, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Vendors)
	assert.Equal(t, 3, result.Products)

	listed, err := fx.orchestrator.ListProducts()
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	thread, err := fx.orchestrator.GetThread("prod_1", "product", 0)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, model.ThreadEventCreated, thread[0].EventType)

	// each product got its scannable code at first sight
	codes, err := fx.qrService.ListQRCodes()
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}

func TestOrchestrator_IngestCatalog_Idempotent(t *testing.T) {
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	// accumulate a counter, then re-ingest the same batch
	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Viewer"})
	require.NoError(t, err)
	require.NoError(t, fx.orchestrator.TrackProductView(customer.ID, "prod_1", "sess_1"))

	_, err = fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	product, err := fx.orchestrator.GetProduct("prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.Views)

	// still exactly one created event
	thread, err := fx.orchestrator.GetThread("prod_1", "product", 0)
	require.NoError(t, err)
	created := 0
	for _, event := range thread {
		if event.EventType == model.ThreadEventCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	// no second batch of product codes either
	codes, err := fx.qrService.ListQRCodes()
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}

func TestOrchestrator_IngestCatalog_AutoTagging(t *testing.T) {
	fx := setupOrchestratorTest(t)

	_, err := fx.tagService.CreateTag(CreateTagInput{
		Name:     "Premium",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "price", Operator: model.RuleOpGreater, Value: 40.0},
		},
	})
	require.NoError(t, err)

	vendors, products := sampleCatalog()
	result, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tagged)

	tagIDs, err := fx.tagRepo.FindEntityTagIDs("prod_3", "product")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag_premium"}, tagIDs)

	tagIDs, err = fx.tagRepo.FindEntityTagIDs("prod_1", "product")
	require.NoError(t, err)
	assert.Empty(t, tagIDs)
}

func TestOrchestrator_CatalogQueries(t *testing.T) {
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	byVendor, err := fx.orchestrator.GetProductsByVendor("vendor_1")
	require.NoError(t, err)
	assert.Len(t, byVendor, 2)

	tag, err := fx.tagService.CreateTag(CreateTagInput{Name: "Vegan", Category: model.TagCategoryProduct})
	require.NoError(t, err)
	_, err = fx.tagService.TagEntity("prod_2", "product", []string{tag.ID}, "op_1")
	require.NoError(t, err)

	byTags, err := fx.orchestrator.GetProductsByTags([]string{tag.ID})
	require.NoError(t, err)
	require.Len(t, byTags, 1)
	assert.Equal(t, "prod_2", byTags[0].ID)

	empty, err := fx.orchestrator.GetProductsByTags(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrchestrator_TrackingPipeline(t *testing.T) {
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Shopper"})
	require.NoError(t, err)

	require.NoError(t, fx.orchestrator.TrackProductView(customer.ID, "prod_1", "sess_1"))
	require.NoError(t, fx.orchestrator.TrackCartAdd(customer.ID, "prod_1", "sess_1"))
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_1", "sess_1", 2, 36))

	product, err := fx.orchestrator.GetProduct("prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.Views)
	assert.Equal(t, int64(1), product.CartAdds)
	assert.Equal(t, int64(1), product.Purchases)
	assert.Equal(t, 1.0, product.ConversionRate)
	assert.Greater(t, product.TrendingScore, 0.0)

	updated, err := fx.customerService.GetCustomer(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalOrders)
	assert.Equal(t, 36.0, updated.TotalSpent)

	journey, err := fx.customerService.GetJourney(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, journey.TouchpointCount)
	assert.Equal(t, model.StagePurchase, journey.CurrentStage)

	thread, err := fx.orchestrator.GetThread("prod_1", "product", 0)
	require.NoError(t, err)
	// created + view + cart_add + purchase
	assert.Len(t, thread, 4)

	// every appended event also went out on the feed: 3 created at
	// ingest plus the 3 tracking events
	assert.Len(t, fx.broadcaster.events, 6)
}

func TestOrchestrator_Tracking_UnknownTargetsAreNoOps(t *testing.T) {
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Shopper"})
	require.NoError(t, err)

	// unknown product
	require.NoError(t, fx.orchestrator.TrackProductView(customer.ID, "prod_ghost", "sess_1"))
	// unknown customer
	require.NoError(t, fx.orchestrator.TrackPurchase("cust_ghost", "prod_1", "sess_1", 1, 20))

	product, err := fx.orchestrator.GetProduct("prod_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), product.Purchases)

	unchanged, err := fx.customerService.GetCustomer(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.TotalOrders)

	thread, err := fx.orchestrator.GetThread("prod_1", "product", 0)
	require.NoError(t, err)
	assert.Len(t, thread, 1) // only the created event
}

func TestOrchestrator_TrackPurchase_InheritsProductTags(t *testing.T) {
	fx := setupOrchestratorTest(t)

	// seven matching tags, inheritance caps at five
	for _, name := range []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7"} {
		_, err := fx.tagService.CreateTag(CreateTagInput{
			Name:     name,
			Category: model.TagCategoryProduct,
			AutoRules: model.TagRules{
				{Field: "price", Operator: model.RuleOpGreater, Value: 1.0},
			},
		})
		require.NoError(t, err)
	}

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Collector"})
	require.NoError(t, err)
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_1", "sess_1", 1, 18))

	tagIDs, err := fx.tagRepo.FindEntityTagIDs(customer.ID, "customer")
	require.NoError(t, err)
	assert.Len(t, tagIDs, 5)
}

func TestOrchestrator_ProcessQRScan(t *testing.T) {
	ctx := context.Background()
	fx := setupOrchestratorTest(t)

	vendors, products := sampleCatalog()
	_, err := fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Scanner"})
	require.NoError(t, err)

	code, err := fx.qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:    model.QRTypeProduct,
		Payload: model.JSONMap{"product_id": "prod_2"},
	})
	require.NoError(t, err)

	result, err := fx.orchestrator.ProcessQRScan(ctx, code.ShortCode, customer.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// the scan counts as a product view and a qr touchpoint, and the qr
	// touchpoint lands last so the prediction keys off the scan
	product, err := fx.orchestrator.GetProduct("prod_2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.Views)

	journey, err := fx.customerService.GetJourney(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, journey.TouchpointCount)
	assert.Equal(t, "complete_purchase", journey.PredictedNextAction)

	thread, err := fx.orchestrator.GetThread("prod_2", "product", 0)
	require.NoError(t, err)
	scans, views := 0, 0
	for _, event := range thread {
		switch event.EventType {
		case model.ThreadEventScan:
			scans++
			assert.Equal(t, customer.ID, event.Actor)
		case model.ThreadEventView:
			views++
		}
	}
	assert.Equal(t, 1, scans)
	assert.Equal(t, 1, views)

	// anonymous scans still redeem but touch nothing
	anon, err := fx.qrService.GenerateQRCode(ctx, GenerateQRInput{Type: model.QRTypeDiscount})
	require.NoError(t, err)
	result, err = fx.orchestrator.ProcessQRScan(ctx, anon.ShortCode, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	journey, err = fx.customerService.GetJourney(customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, journey.TouchpointCount)
}

func TestOrchestrator_GetRecommendations(t *testing.T) {
	fx := setupOrchestratorTest(t)

	_, err := fx.tagService.CreateTag(CreateTagInput{
		Name:     "Food",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "category", Operator: model.RuleOpEquals, Value: "food"},
		},
	})
	require.NoError(t, err)

	vendors, products := sampleCatalog()
	_, err = fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Foodie"})
	require.NoError(t, err)
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_1", "sess_1", 1, 18))

	// prod_2 shares the food tag with the purchased product; prod_3 has no
	// overlapping tag and is not a candidate at all
	recos, err := fx.orchestrator.GetRecommendations(customer.ID, "prod_1", "")
	require.NoError(t, err)
	require.Len(t, recos, 1)
	assert.Equal(t, "prod_2", recos[0].Product.ID)
	assert.Greater(t, recos[0].Score, 0.0)

	// the current product is never recommended back
	for _, reco := range recos {
		assert.NotEqual(t, "prod_1", reco.Product.ID)
	}

	// a category filter narrows the candidates further
	filtered, err := fx.orchestrator.GetRecommendations(customer.ID, "prod_1", "food")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "prod_2", filtered[0].Product.ID)

	filtered, err = fx.orchestrator.GetRecommendations(customer.ID, "prod_1", "crafts")
	require.NoError(t, err)
	assert.Empty(t, filtered)

	_, err = fx.orchestrator.GetRecommendations("cust_ghost", "", "")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestOrchestrator_GetRecommendations_FavoriteVendorBoost(t *testing.T) {
	fx := setupOrchestratorTest(t)

	// a catalog-wide tag so every product is a candidate
	_, err := fx.tagService.CreateTag(CreateTagInput{
		Name:     "Listed",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "price", Operator: model.RuleOpGreater, Value: 1.0},
		},
	})
	require.NoError(t, err)

	vendors, products := sampleCatalog()
	_, err = fx.orchestrator.IngestCatalog(vendors, products)
	require.NoError(t, err)

	customer, err := fx.customerService.CreateCustomer(CreateCustomerInput{Name: "Loyalist"})
	require.NoError(t, err)

	// two purchases from vendor_2, one from vendor_1
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_3", "sess_1", 1, 45))
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_3", "sess_1", 1, 45))
	require.NoError(t, fx.orchestrator.TrackPurchase(customer.ID, "prod_1", "sess_1", 1, 18))

	// the favorite list follows the purchase counts
	updated, err := fx.customerService.GetCustomer(customer.ID)
	require.NoError(t, err)
	require.NotEmpty(t, updated.FavoriteVendors)
	assert.Equal(t, "vendor_2", updated.FavoriteVendors[0])

	// only the top vendor gets the boost, so vendor_2's product leads even
	// though vendor_1 was bought from too
	recos, err := fx.orchestrator.GetRecommendations(customer.ID, "", "")
	require.NoError(t, err)
	require.Len(t, recos, 3)
	assert.Equal(t, "prod_3", recos[0].Product.ID)
}
