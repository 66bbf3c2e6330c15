package repository

import (
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
)

type QRRepository interface {
	Create(code *model.QRCode) error
	Delete(id string) error
	FindByID(id string) (*model.QRCode, error)
	FindByShortCode(code string) (*model.QRCode, error)
	ShortCodeExists(code string) (bool, error)
	FindAll() ([]model.QRCode, error)
	Redeem(id string, now time.Time) (bool, error)
	Deactivate(id string) error
	UpdateImageURL(id, url string) error
	FindExpiredActive(now time.Time, limit int) ([]model.QRCode, error)
}

type qrRepository struct {
	db *gorm.DB
}

func NewQRRepository(db *gorm.DB) QRRepository {
	return &qrRepository{db: db}
}

func (r *qrRepository) Create(code *model.QRCode) error {
	if err := r.db.Create(code).Error; err != nil {
		logger.Error("Failed to create QR record in database", err, map[string]interface{}{
			"qr_id":      code.ID,
			"short_code": code.ShortCode,
		})
		return err
	}
	return nil
}

func (r *qrRepository) Delete(id string) error {
	return r.db.Delete(&model.QRCode{}, "id = ?", id).Error
}

func (r *qrRepository) FindByID(id string) (*model.QRCode, error) {
	var code model.QRCode
	if err := r.db.First(&code, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *qrRepository) FindByShortCode(shortCode string) (*model.QRCode, error) {
	var code model.QRCode
	if err := r.db.First(&code, "short_code = ?", shortCode).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *qrRepository) ShortCodeExists(shortCode string) (bool, error) {
	var count int64
	err := r.db.Model(&model.QRCode{}).Where("short_code = ?", shortCode).Count(&count).Error
	return count > 0, err
}

func (r *qrRepository) FindAll() ([]model.QRCode, error) {
	var codes []model.QRCode
	if err := r.db.Order("created_at ASC").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Redeem performs the check-then-increment as one conditional UPDATE. The
// WHERE clause re-checks active/expiry/quota inside the statement, so two
// concurrent redemptions against a quota of one cannot both succeed:
// whichever statement runs second matches zero rows.
func (r *qrRepository) Redeem(id string, now time.Time) (bool, error) {
	result := r.db.Model(&model.QRCode{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_usage = 0 OR usage_count < max_usage").
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		logger.Error("Failed to redeem QR record", result.Error, map[string]interface{}{
			"qr_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Deactivate flips the active flag off. The transition is terminal: nothing
// ever sets the flag back.
func (r *qrRepository) Deactivate(id string) error {
	return r.db.Model(&model.QRCode{}).Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *qrRepository) UpdateImageURL(id, url string) error {
	return r.db.Model(&model.QRCode{}).Where("id = ?", id).
		Update("image_url", url).Error
}

func (r *qrRepository) FindExpiredActive(now time.Time, limit int) ([]model.QRCode, error) {
	var codes []model.QRCode
	query := r.db.Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
