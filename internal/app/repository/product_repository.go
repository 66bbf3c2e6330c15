package repository

import (
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Upsert(product *model.Product) error
	FindByID(id string) (*model.Product, error)
	FindByIDs(ids []string) ([]model.Product, error)
	FindByVendor(vendorID string) ([]model.Product, error)
	FindByTagIDs(tagIDs []string) ([]model.Product, error)
	FindAll() ([]model.Product, error)
	IncrementViews(id string) error
	IncrementCartAdds(id string) error
	IncrementPurchases(id string) error
	UpdateDerived(id string, conversionRate, trendingScore float64) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Upsert keeps catalog ingestion idempotent: re-running the batch refreshes
// catalog fields without resetting the cached analytics counters.
func (r *productRepository) Upsert(product *model.Product) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vendor_id", "name", "description", "category", "price", "rating", "image_url", "updated_at",
		}),
	}).Create(product).Error
	if err != nil {
		logger.Error("Failed to upsert product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
	}
	return err
}

func (r *productRepository) FindByID(id string) (*model.Product, error) {
	var product model.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDs(ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindByVendor(vendorID string) ([]model.Product, error) {
	var products []model.Product
	if err := r.db.Where("vendor_id = ?", vendorID).Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByTagIDs returns the distinct products linked to any of the tags.
func (r *productRepository) FindByTagIDs(tagIDs []string) ([]model.Product, error) {
	if len(tagIDs) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	err := r.db.
		Joins("JOIN entity_tags ON entity_tags.entity_id = products.id AND entity_tags.entity_type = ?", "product").
		Where("entity_tags.tag_id IN ?", tagIDs).
		Distinct("products.*").
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find products by tags", err, map[string]interface{}{
			"tag_count": len(tagIDs),
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindAll() ([]model.Product, error) {
	var products []model.Product
	if err := r.db.Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) IncrementViews(id string) error {
	return r.db.Model(&model.Product{}).Where("id = ?", id).
		Update("views", gorm.Expr("views + 1")).Error
}

func (r *productRepository) IncrementCartAdds(id string) error {
	return r.db.Model(&model.Product{}).Where("id = ?", id).
		Update("cart_adds", gorm.Expr("cart_adds + 1")).Error
}

func (r *productRepository) IncrementPurchases(id string) error {
	return r.db.Model(&model.Product{}).Where("id = ?", id).
		Update("purchases", gorm.Expr("purchases + 1")).Error
}

func (r *productRepository) UpdateDerived(id string, conversionRate, trendingScore float64) error {
	return r.db.Model(&model.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"conversion_rate": conversionRate,
			"trending_score":  trendingScore,
		}).Error
}
