package repository

import (
	"github.com/verdemarket/engage-backend/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VendorRepository interface {
	Upsert(vendor *model.Vendor) error
	FindByID(id string) (*model.Vendor, error)
	FindAll() ([]model.Vendor, error)
}

type vendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

func (r *vendorRepository) Upsert(vendor *model.Vendor) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "region", "updated_at",
		}),
	}).Create(vendor).Error
}

func (r *vendorRepository) FindByID(id string) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := r.db.First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepository) FindAll() ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := r.db.Order("name ASC").Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}
