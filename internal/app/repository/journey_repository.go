package repository

import (
	"errors"
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"gorm.io/gorm"
)

type JourneyRepository interface {
	GetOrCreate(customerID string) (*model.CustomerJourney, error)
	SaveJourney(journey *model.CustomerJourney) error
	FindJourney(customerID string) (*model.CustomerJourney, error)
	FindAllJourneys() ([]model.CustomerJourney, error)

	AppendTouchpoint(touchpoint *model.Touchpoint) error
	FindTouchpoints(customerID string, since time.Time) ([]model.Touchpoint, error)
	LastTouchpoint(customerID string) (*model.Touchpoint, error)
	FindAllTouchpoints() ([]model.Touchpoint, error)
}

type journeyRepository struct {
	db *gorm.DB
}

func NewJourneyRepository(db *gorm.DB) JourneyRepository {
	return &journeyRepository{db: db}
}

func (r *journeyRepository) GetOrCreate(customerID string) (*model.CustomerJourney, error) {
	var journey model.CustomerJourney
	err := r.db.First(&journey, "customer_id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		journey = model.CustomerJourney{
			CustomerID:   customerID,
			CurrentStage: model.StageAwareness,
		}
		if err := r.db.Create(&journey).Error; err != nil {
			return nil, err
		}
		return &journey, nil
	}
	if err != nil {
		return nil, err
	}
	return &journey, nil
}

func (r *journeyRepository) SaveJourney(journey *model.CustomerJourney) error {
	return r.db.Save(journey).Error
}

func (r *journeyRepository) FindJourney(customerID string) (*model.CustomerJourney, error) {
	var journey model.CustomerJourney
	if err := r.db.First(&journey, "customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &journey, nil
}

func (r *journeyRepository) FindAllJourneys() ([]model.CustomerJourney, error) {
	var journeys []model.CustomerJourney
	if err := r.db.Find(&journeys).Error; err != nil {
		return nil, err
	}
	return journeys, nil
}

func (r *journeyRepository) AppendTouchpoint(touchpoint *model.Touchpoint) error {
	return r.db.Create(touchpoint).Error
}

func (r *journeyRepository) FindTouchpoints(customerID string, since time.Time) ([]model.Touchpoint, error) {
	var touchpoints []model.Touchpoint
	query := r.db.Where("customer_id = ?", customerID).Order("created_at ASC, id ASC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Find(&touchpoints).Error; err != nil {
		return nil, err
	}
	return touchpoints, nil
}

func (r *journeyRepository) LastTouchpoint(customerID string) (*model.Touchpoint, error) {
	var touchpoint model.Touchpoint
	err := r.db.Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		First(&touchpoint).Error
	if err != nil {
		return nil, err
	}
	return &touchpoint, nil
}

func (r *journeyRepository) FindAllTouchpoints() ([]model.Touchpoint, error) {
	var touchpoints []model.Touchpoint
	if err := r.db.Order("created_at ASC, id ASC").Find(&touchpoints).Error; err != nil {
		return nil, err
	}
	return touchpoints, nil
}
