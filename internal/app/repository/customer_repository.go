package repository

import (
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(customer *model.Customer) error
	Save(customer *model.Customer) error
	FindByID(id string) (*model.Customer, error)
	FindByEmail(email string) (*model.Customer, error)
	FindAll() ([]model.Customer, error)
	Touch(id string, at time.Time) error

	CreateInteraction(interaction *model.ProductInteraction) error
	FindInteractions(customerID string, since time.Time) ([]model.ProductInteraction, error)
	FindAllInteractions() ([]model.ProductInteraction, error)
	FindInteractionsSince(since time.Time) ([]model.ProductInteraction, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(customer *model.Customer) error {
	if err := r.db.Create(customer).Error; err != nil {
		logger.Error("Failed to create customer in database", err, map[string]interface{}{
			"customer_id": customer.ID,
		})
		return err
	}
	return nil
}

func (r *customerRepository) Save(customer *model.Customer) error {
	if err := r.db.Save(customer).Error; err != nil {
		logger.Error("Failed to save customer in database", err, map[string]interface{}{
			"customer_id": customer.ID,
		})
		return err
	}
	return nil
}

func (r *customerRepository) FindByID(id string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) FindByEmail(email string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.First(&customer, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) FindAll() ([]model.Customer, error) {
	var customers []model.Customer
	if err := r.db.Order("created_at ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *customerRepository) Touch(id string, at time.Time) error {
	return r.db.Model(&model.Customer{}).Where("id = ?", id).
		Update("last_active", at).Error
}

func (r *customerRepository) CreateInteraction(interaction *model.ProductInteraction) error {
	return r.db.Create(interaction).Error
}

func (r *customerRepository) FindInteractions(customerID string, since time.Time) ([]model.ProductInteraction, error) {
	var interactions []model.ProductInteraction
	query := r.db.Where("customer_id = ?", customerID).Order("created_at ASC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Find(&interactions).Error; err != nil {
		return nil, err
	}
	return interactions, nil
}

func (r *customerRepository) FindAllInteractions() ([]model.ProductInteraction, error) {
	var interactions []model.ProductInteraction
	if err := r.db.Order("created_at ASC").Find(&interactions).Error; err != nil {
		return nil, err
	}
	return interactions, nil
}

func (r *customerRepository) FindInteractionsSince(since time.Time) ([]model.ProductInteraction, error) {
	var interactions []model.ProductInteraction
	if err := r.db.Where("created_at >= ?", since).Order("created_at ASC").Find(&interactions).Error; err != nil {
		return nil, err
	}
	return interactions, nil
}
