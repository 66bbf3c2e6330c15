package repository

import (
	"github.com/verdemarket/engage-backend/internal/app/model"
	"gorm.io/gorm"
)

type SegmentRepository interface {
	Create(segment *model.CustomerSegment) error
	Save(segment *model.CustomerSegment) error
	FindByID(id string) (*model.CustomerSegment, error)
	FindByName(name string) (*model.CustomerSegment, error)
	FindAll() ([]model.CustomerSegment, error)
	UpdateMemberCount(id string, count int64) error
}

type segmentRepository struct {
	db *gorm.DB
}

func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &segmentRepository{db: db}
}

func (r *segmentRepository) Create(segment *model.CustomerSegment) error {
	return r.db.Create(segment).Error
}

func (r *segmentRepository) Save(segment *model.CustomerSegment) error {
	return r.db.Save(segment).Error
}

func (r *segmentRepository) FindByID(id string) (*model.CustomerSegment, error) {
	var segment model.CustomerSegment
	if err := r.db.First(&segment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *segmentRepository) FindByName(name string) (*model.CustomerSegment, error) {
	var segment model.CustomerSegment
	if err := r.db.First(&segment, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *segmentRepository) FindAll() ([]model.CustomerSegment, error) {
	var segments []model.CustomerSegment
	if err := r.db.Order("created_at ASC").Find(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *segmentRepository) UpdateMemberCount(id string, count int64) error {
	return r.db.Model(&model.CustomerSegment{}).Where("id = ?", id).
		Update("member_count", count).Error
}
