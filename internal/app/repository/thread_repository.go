package repository

import (
	"github.com/verdemarket/engage-backend/internal/app/model"
	"gorm.io/gorm"
)

type ThreadRepository interface {
	Append(event *model.ThreadEvent) error
	FindByEntity(entityID, entityType string, limit int) ([]model.ThreadEvent, error)
	HasEvent(entityID, entityType string, eventType model.ThreadEventType) (bool, error)
	FindAll() ([]model.ThreadEvent, error)
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Append(event *model.ThreadEvent) error {
	return r.db.Create(event).Error
}

func (r *threadRepository) FindByEntity(entityID, entityType string, limit int) ([]model.ThreadEvent, error) {
	var events []model.ThreadEvent
	query := r.db.Where("entity_id = ? AND entity_type = ?", entityID, entityType).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *threadRepository) HasEvent(entityID, entityType string, eventType model.ThreadEventType) (bool, error) {
	var count int64
	err := r.db.Model(&model.ThreadEvent{}).
		Where("entity_id = ? AND entity_type = ? AND event_type = ?", entityID, entityType, eventType).
		Count(&count).Error
	return count > 0, err
}

func (r *threadRepository) FindAll() ([]model.ThreadEvent, error) {
	var events []model.ThreadEvent
	if err := r.db.Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
