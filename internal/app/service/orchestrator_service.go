package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

const autoTagActor = "auto-tagger"

// EventBroadcaster pushes data-thread events to live subscribers. The
// websocket hub implements it; a nil broadcaster disables the feed.
type EventBroadcaster interface {
	Broadcast(event *model.ThreadEvent)
}

type IngestResult struct {
	Vendors  int `json:"vendors"`
	Products int `json:"products"`
	Tagged   int `json:"tagged"`
}

// ScoredProduct is one recommendation with its ranking score.
type ScoredProduct struct {
	Product model.Product `json:"product"`
	Score   float64       `json:"score"`
}

type OrchestratorService interface {
	IngestCatalog(vendors []model.Vendor, products []model.Product) (*IngestResult, error)
	GetProduct(id string) (*model.Product, error)
	ListProducts() ([]model.Product, error)
	GetProductsByVendor(vendorID string) ([]model.Product, error)
	GetProductsByTags(tagIDs []string) ([]model.Product, error)
	ListVendors() ([]model.Vendor, error)

	TrackProductView(customerID, productID, sessionID string) error
	TrackCartAdd(customerID, productID, sessionID string) error
	TrackPurchase(customerID, productID, sessionID string, quantity int, amount float64) error

	ProcessQRScan(ctx context.Context, shortCode, customerID string) (*model.ScanResult, error)
	GetRecommendations(customerID, currentProductID, category string) ([]ScoredProduct, error)
	GetThread(entityID, entityType string, limit int) ([]model.ThreadEvent, error)
	RecomputeProductScores() error
}

type orchestratorService struct {
	productRepo     repository.ProductRepository
	vendorRepo      repository.VendorRepository
	threadRepo      repository.ThreadRepository
	customerRepo    repository.CustomerRepository
	tagRepo         repository.TagRepository
	tagService      TagService
	qrService       QRService
	customerService CustomerService
	broadcaster     EventBroadcaster
	scoring         model.ScoringConfig
}

func NewOrchestratorService(
	productRepo repository.ProductRepository,
	vendorRepo repository.VendorRepository,
	threadRepo repository.ThreadRepository,
	customerRepo repository.CustomerRepository,
	tagRepo repository.TagRepository,
	tagService TagService,
	qrService QRService,
	customerService CustomerService,
	broadcaster EventBroadcaster,
	scoring model.ScoringConfig,
) OrchestratorService {
	return &orchestratorService{
		productRepo:     productRepo,
		vendorRepo:      vendorRepo,
		threadRepo:      threadRepo,
		customerRepo:    customerRepo,
		tagRepo:         tagRepo,
		tagService:      tagService,
		qrService:       qrService,
		customerService: customerService,
		broadcaster:     broadcaster,
		scoring:         scoring,
	}
}

// IngestCatalog loads a vendor/product batch. Re-running the same batch is
// safe: records are upserted, the "created" thread event is written once and
// auto-tagging unions rather than duplicates.
func (s *orchestratorService) IngestCatalog(vendors []model.Vendor, products []model.Product) (*IngestResult, error) {
	result := &IngestResult{}

	for i := range vendors {
		vendor := &vendors[i]
		if err := s.vendorRepo.Upsert(vendor); err != nil {
			return nil, err
		}
		result.Vendors++

		if err := s.autoTagVendor(vendor); err != nil {
			return nil, err
		}
	}

	for i := range products {
		product := &products[i]
		if err := s.productRepo.Upsert(product); err != nil {
			return nil, err
		}
		result.Products++

		seen, err := s.threadRepo.HasEvent(product.ID, "product", model.ThreadEventCreated)
		if err != nil {
			return nil, err
		}
		if !seen {
			if err := s.appendEvent(product.ID, "product", model.ThreadEventCreated, "catalog", model.JSONMap{
				"vendor_id": product.VendorID,
				"name":      product.Name,
			}); err != nil {
				return nil, err
			}

			// first sight of the product also mints its scannable code;
			// re-ingest runs never issue a second one
			if s.qrService != nil {
				if _, err := s.qrService.GenerateQRCode(context.Background(), GenerateQRInput{
					Type:    model.QRTypeProduct,
					Payload: model.JSONMap{"product_id": product.ID},
				}); err != nil {
					return nil, err
				}
			}
		}

		tagged, err := s.autoTagProduct(product)
		if err != nil {
			return nil, err
		}
		if tagged {
			result.Tagged++
		}
	}

	logger.Info("Catalog batch ingested", map[string]interface{}{
		"vendors":  result.Vendors,
		"products": result.Products,
		"tagged":   result.Tagged,
	})
	return result, nil
}

func (s *orchestratorService) autoTagVendor(vendor *model.Vendor) error {
	suggested, err := s.tagService.SuggestTags(model.TagCategoryVendor, map[string]interface{}{
		"name":     vendor.Name,
		"category": vendor.Category,
		"region":   vendor.Region,
	})
	if err != nil {
		return err
	}
	if len(suggested) == 0 {
		return nil
	}

	ids := make([]string, 0, len(suggested))
	for _, tag := range suggested {
		ids = append(ids, tag.ID)
	}
	_, err = s.tagService.TagEntity(vendor.ID, "vendor", ids, autoTagActor)
	return err
}

func (s *orchestratorService) autoTagProduct(product *model.Product) (bool, error) {
	suggested, err := s.tagService.SuggestTags(model.TagCategoryProduct, map[string]interface{}{
		"name":      product.Name,
		"category":  product.Category,
		"price":     product.Price,
		"rating":    product.Rating,
		"vendor_id": product.VendorID,
	})
	if err != nil {
		return false, err
	}
	if len(suggested) == 0 {
		return false, nil
	}

	ids := make([]string, 0, len(suggested))
	for _, tag := range suggested {
		ids = append(ids, tag.ID)
	}
	if _, err := s.tagService.TagEntity(product.ID, "product", ids, autoTagActor); err != nil {
		return false, err
	}
	return true, nil
}

func (s *orchestratorService) GetProduct(id string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *orchestratorService) ListProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *orchestratorService) GetProductsByVendor(vendorID string) ([]model.Product, error) {
	return s.productRepo.FindByVendor(vendorID)
}

func (s *orchestratorService) GetProductsByTags(tagIDs []string) ([]model.Product, error) {
	return s.productRepo.FindByTagIDs(tagIDs)
}

func (s *orchestratorService) ListVendors() ([]model.Vendor, error) {
	return s.vendorRepo.FindAll()
}

// TrackProductView records one view. An unknown product or customer makes
// the whole call a no-op: no counter moves, no event is written.
func (s *orchestratorService) TrackProductView(customerID, productID, sessionID string) error {
	if ok, err := s.trackingTargetsExist(customerID, productID); err != nil || !ok {
		return err
	}

	if err := s.productRepo.IncrementViews(productID); err != nil {
		return err
	}
	if _, err := s.customerService.TrackInteraction(TrackInteractionInput{
		CustomerID: customerID,
		ProductID:  productID,
		Type:       model.InteractionView,
		SessionID:  sessionID,
	}); err != nil {
		return err
	}
	if _, err := s.customerService.TrackTouchpoint(TrackTouchpointInput{
		CustomerID: customerID,
		Channel:    model.ChannelWebsite,
		Action:     "product_view",
		Payload:    model.JSONMap{"product_id": productID},
	}); err != nil {
		return err
	}
	if err := s.appendEvent(productID, "product", model.ThreadEventView, customerID, nil); err != nil {
		return err
	}
	return s.refreshProductScores(productID)
}

func (s *orchestratorService) TrackCartAdd(customerID, productID, sessionID string) error {
	if ok, err := s.trackingTargetsExist(customerID, productID); err != nil || !ok {
		return err
	}

	if err := s.productRepo.IncrementCartAdds(productID); err != nil {
		return err
	}
	if _, err := s.customerService.TrackInteraction(TrackInteractionInput{
		CustomerID: customerID,
		ProductID:  productID,
		Type:       model.InteractionCart,
		SessionID:  sessionID,
	}); err != nil {
		return err
	}
	if _, err := s.customerService.TrackTouchpoint(TrackTouchpointInput{
		CustomerID: customerID,
		Channel:    model.ChannelWebsite,
		Action:     "cart_add",
		Payload:    model.JSONMap{"product_id": productID},
	}); err != nil {
		return err
	}
	if err := s.appendEvent(productID, "product", model.ThreadEventCartAdd, customerID, nil); err != nil {
		return err
	}
	return s.refreshProductScores(productID)
}

// TrackPurchase folds a completed purchase into every store at once: the
// product counters, the customer's aggregates, the journey and the data
// thread. The customer also inherits up to a handful of the product's tags
// for recommendation affinity.
func (s *orchestratorService) TrackPurchase(customerID, productID, sessionID string, quantity int, amount float64) error {
	if ok, err := s.trackingTargetsExist(customerID, productID); err != nil || !ok {
		return err
	}
	if quantity <= 0 {
		quantity = 1
	}

	if err := s.productRepo.IncrementPurchases(productID); err != nil {
		return err
	}
	if _, err := s.customerService.TrackInteraction(TrackInteractionInput{
		CustomerID: customerID,
		ProductID:  productID,
		Type:       model.InteractionPurchase,
		SessionID:  sessionID,
		Quantity:   quantity,
		Amount:     amount,
	}); err != nil {
		return err
	}
	if _, err := s.customerService.RecordPurchase(customerID, amount, time.Now()); err != nil {
		return err
	}
	if _, err := s.customerService.TrackTouchpoint(TrackTouchpointInput{
		CustomerID: customerID,
		Channel:    model.ChannelPurchase,
		Action:     "purchase",
		Outcome:    model.OutcomePositive,
		Payload:    model.JSONMap{"product_id": productID, "amount": amount},
	}); err != nil {
		return err
	}
	if err := s.inheritProductTags(customerID, productID); err != nil {
		return err
	}
	if err := s.refreshFavoriteVendors(customerID); err != nil {
		return err
	}
	if err := s.appendEvent(productID, "product", model.ThreadEventPurchase, customerID, model.JSONMap{
		"quantity": quantity,
		"amount":   amount,
	}); err != nil {
		return err
	}
	return s.refreshProductScores(productID)
}

func (s *orchestratorService) inheritProductTags(customerID, productID string) error {
	tagIDs, err := s.tagRepo.FindEntityTagIDs(productID, "product")
	if err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	if len(tagIDs) > s.scoring.PurchaseAutoTagLimit {
		tagIDs = tagIDs[:s.scoring.PurchaseAutoTagLimit]
	}
	_, err = s.tagService.TagEntity(customerID, "customer", tagIDs, autoTagActor)
	return err
}

// refreshFavoriteVendors rebuilds the customer's favorite vendor list from
// the purchase log, most purchased vendor first. Ties break on vendor id so
// the ranking is stable across runs.
func (s *orchestratorService) refreshFavoriteVendors(customerID string) error {
	interactions, err := s.customerRepo.FindInteractions(customerID, time.Time{})
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, interaction := range interactions {
		if interaction.Type != model.InteractionPurchase {
			continue
		}
		product, err := s.productRepo.FindByID(interaction.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		counts[product.VendorID]++
	}
	if len(counts) == 0 {
		return nil
	}

	vendors := make([]string, 0, len(counts))
	for vendorID := range counts {
		vendors = append(vendors, vendorID)
	}
	sort.Strings(vendors)
	sort.SliceStable(vendors, func(i, j int) bool {
		return counts[vendors[i]] > counts[vendors[j]]
	})

	customer, err := s.customerRepo.FindByID(customerID)
	if err != nil {
		return err
	}
	customer.FavoriteVendors = model.StringSlice(vendors)
	return s.customerRepo.Save(customer)
}

// trackingTargetsExist verifies both sides of a tracking call up front so a
// bad id never leaves a half-applied update behind.
func (s *orchestratorService) trackingTargetsExist(customerID, productID string) (bool, error) {
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Tracking call dropped, unknown product", map[string]interface{}{
				"product_id": productID,
			})
			return false, nil
		}
		return false, err
	}
	if _, err := s.customerRepo.FindByID(customerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Tracking call dropped, unknown customer", map[string]interface{}{
				"customer_id": customerID,
			})
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *orchestratorService) appendEvent(entityID, entityType string, eventType model.ThreadEventType, actor string, payload model.JSONMap) error {
	event := &model.ThreadEvent{
		EntityID:   entityID,
		EntityType: entityType,
		EventType:  eventType,
		Actor:      actor,
		Payload:    payload,
	}
	if err := s.threadRepo.Append(event); err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}
	return nil
}

func (s *orchestratorService) refreshProductScores(productID string) error {
	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		return err
	}

	conversion := 0.0
	if product.Views > 0 {
		conversion = float64(product.Purchases) / float64(product.Views)
	}
	trending := s.scoring.TrendingViewsWeight*float64(product.Views) +
		s.scoring.TrendingConversionWeight*100*conversion +
		s.scoring.TrendingRatingWeight*product.Rating
	return s.productRepo.UpdateDerived(productID, conversion, trending)
}

// RecomputeProductScores refreshes derived metrics for the whole catalog.
// Run from the scheduler as a safety net behind the inline refreshes.
func (s *orchestratorService) RecomputeProductScores() error {
	products, err := s.productRepo.FindAll()
	if err != nil {
		return err
	}
	for _, product := range products {
		if err := s.refreshProductScores(product.ID); err != nil {
			return err
		}
	}
	return nil
}

// ProcessQRScan redeems a code and, when the scan identifies a customer and
// resolves to a product, folds the scan into that customer's journey: the
// product takes a full view (counters, interaction, trending refresh) and a
// scan event, then the journey records the qr touchpoint last so the next
// action is predicted off the scan itself.
func (s *orchestratorService) ProcessQRScan(ctx context.Context, shortCode, customerID string) (*model.ScanResult, error) {
	result, err := s.qrService.ScanQRCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	if !result.Success || customerID == "" {
		return result, nil
	}

	if result.Type == model.QRTypeProduct {
		if productID, ok := result.Data["product_id"].(string); ok {
			if err := s.TrackProductView(customerID, productID, ""); err != nil {
				return nil, err
			}
			if err := s.appendEvent(productID, "product", model.ThreadEventScan, customerID, nil); err != nil {
				return nil, err
			}
		}
	}

	if _, err := s.customerService.TrackTouchpoint(TrackTouchpointInput{
		CustomerID: customerID,
		Channel:    model.ChannelQR,
		Action:     "qr_scan",
		Outcome:    model.OutcomePositive,
		Payload:    model.JSONMap{"type": string(result.Type)},
	}); err != nil && !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}
	return result, nil
}

// GetRecommendations ranks products sharing at least one tag with the
// customer's interest profile: tag overlap with previously touched products,
// price affinity around the average order value, the customer's most
// purchased vendor and a trending nudge. A non-empty category narrows the
// candidates to that product category.
func (s *orchestratorService) GetRecommendations(customerID, currentProductID, category string) ([]ScoredProduct, error) {
	customer, err := s.customerRepo.FindByID(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	interestTags, err := s.interestTags(customerID)
	if err != nil {
		return nil, err
	}

	products, err := s.productRepo.FindAll()
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredProduct, 0, len(products))
	for _, product := range products {
		if product.ID == currentProductID {
			continue
		}
		if category != "" && product.Category != category {
			continue
		}

		productTags, err := s.tagRepo.FindEntityTagIDs(product.ID, "product")
		if err != nil {
			return nil, err
		}
		matches := 0
		for _, tagID := range productTags {
			if interestTags[tagID] {
				matches++
			}
		}
		// only products overlapping the interest profile are candidates
		if matches == 0 {
			continue
		}

		score := s.scoring.RecoTrendingWeight * product.TrendingScore
		score += float64(matches) * s.scoring.RecoTagMatchWeight

		if customer.AvgOrderValue > 0 {
			diff := product.Price - customer.AvgOrderValue
			if diff < 0 {
				diff = -diff
			}
			if diff <= s.scoring.RecoPriceWindow {
				score += s.scoring.RecoPriceAffinity
			}
		}

		if len(customer.FavoriteVendors) > 0 && customer.FavoriteVendors[0] == product.VendorID {
			score += s.scoring.RecoFavoriteVendor
		}

		scored = append(scored, ScoredProduct{Product: product, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > s.scoring.RecoLimit {
		scored = scored[:s.scoring.RecoLimit]
	}
	return scored, nil
}

// interestTags is the union of tags on every product the customer has
// viewed, carted or purchased, plus the customer's own tag set.
func (s *orchestratorService) interestTags(customerID string) (map[string]bool, error) {
	interest := make(map[string]bool)

	interactions, err := s.customerRepo.FindInteractions(customerID, time.Time{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, interaction := range interactions {
		if seen[interaction.ProductID] {
			continue
		}
		seen[interaction.ProductID] = true
		tagIDs, err := s.tagRepo.FindEntityTagIDs(interaction.ProductID, "product")
		if err != nil {
			return nil, err
		}
		for _, tagID := range tagIDs {
			interest[tagID] = true
		}
	}

	ownTags, err := s.tagRepo.FindEntityTagIDs(customerID, "customer")
	if err != nil {
		return nil, err
	}
	for _, tagID := range ownTags {
		interest[tagID] = true
	}
	return interest, nil
}

func (s *orchestratorService) GetThread(entityID, entityType string, limit int) ([]model.ThreadEvent, error) {
	return s.threadRepo.FindByEntity(entityID, entityType, limit)
}
