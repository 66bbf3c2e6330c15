package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/storage"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"github.com/verdemarket/engage-backend/pkg/qrcode"
	"github.com/verdemarket/engage-backend/pkg/redis"
	"github.com/verdemarket/engage-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrQRNotFound          = errors.New("qr code not found")
	ErrShortCodeExhaustion = errors.New("could not allocate a unique short code")
)

const shortCodeRetries = 5

type GenerateQRInput struct {
	Type      model.QRCodeType
	Payload   model.JSONMap
	ExpiresAt *time.Time
	MaxUsage  int
	Metadata  model.JSONMap
}

type BulkQRResult struct {
	Codes  []model.QRCode `json:"codes"`
	Failed int            `json:"failed"`
}

type QRService interface {
	GenerateQRCode(ctx context.Context, input GenerateQRInput) (*model.QRCode, error)
	GenerateBulkQRCodes(ctx context.Context, inputs []GenerateQRInput) (*BulkQRResult, error)
	GetQRCode(id string) (*model.QRCode, error)
	ListQRCodes() ([]model.QRCode, error)
	ScanQRCode(ctx context.Context, shortCode string) (*model.ScanResult, error)
	ProcessNFCTag(ctx context.Context, tag *model.NFCTag) (*model.ScanResult, error)
	DeactivateQRCode(ctx context.Context, id string) error
	SweepExpired() error
}

type qrService struct {
	qrRepo  repository.QRRepository
	encoder qrcode.Encoder
	store   storage.ObjectStorage
	cfg     *config.QRConfig
}

// NewQRService wires the code store, the PNG encoder and object storage.
// store may be nil; records are then issued without a rendered artifact.
func NewQRService(qrRepo repository.QRRepository, encoder qrcode.Encoder, store storage.ObjectStorage, cfg *config.QRConfig) QRService {
	return &qrService{qrRepo: qrRepo, encoder: encoder, store: store, cfg: cfg}
}

// GenerateQRCode issues a new code. Short codes are retried on collision; the
// record only survives if the PNG artifact renders, so a failed encode never
// leaves a scannable code without an image.
func (s *qrService) GenerateQRCode(ctx context.Context, input GenerateQRInput) (*model.QRCode, error) {
	shortCode, err := s.allocateShortCode()
	if err != nil {
		return nil, err
	}

	code := &model.QRCode{
		ID:            "qr_" + uuid.New().String(),
		Type:          input.Type,
		Payload:       input.Payload,
		ShortCode:     shortCode,
		RedemptionURL: fmt.Sprintf("%s/r/%s", s.cfg.BaseURL, shortCode),
		ExpiresAt:     input.ExpiresAt,
		MaxUsage:      input.MaxUsage,
		IsActive:      true,
		Metadata:      input.Metadata,
	}

	if err := s.qrRepo.Create(code); err != nil {
		return nil, err
	}

	png, err := s.encoder.EncodePNG(ctx, code.RedemptionURL, s.cfg.ImageSize)
	if err != nil {
		// no image, no record
		if delErr := s.qrRepo.Delete(code.ID); delErr != nil {
			logger.Error("Failed to roll back QR record after encode failure", delErr, map[string]interface{}{
				"qr_id": code.ID,
			})
		}
		return nil, fmt.Errorf("failed to render QR artifact: %w", err)
	}

	if s.store != nil {
		imageURL, err := s.store.Upload(ctx, fmt.Sprintf("qr/%s.png", code.ID), png, "image/png")
		if err != nil {
			logger.Warn("QR artifact upload failed, record kept without image", map[string]interface{}{
				"qr_id": code.ID,
				"error": err.Error(),
			})
		} else {
			code.ImageURL = imageURL
			if err := s.qrRepo.UpdateImageURL(code.ID, imageURL); err != nil {
				return nil, err
			}
		}
	}

	if err := redis.CacheShortCode(ctx, shortCode, code.ID, 0); err != nil {
		logger.Warn("Failed to cache short code", map[string]interface{}{
			"short_code": shortCode,
		})
	}

	logger.Info("QR code generated", map[string]interface{}{
		"qr_id":      code.ID,
		"type":       code.Type,
		"short_code": shortCode,
	})
	return code, nil
}

func (s *qrService) allocateShortCode() (string, error) {
	for i := 0; i < shortCodeRetries; i++ {
		candidate := util.GenerateShortCode(s.cfg.CodeLength)
		exists, err := s.qrRepo.ShortCodeExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrShortCodeExhaustion
}

// GenerateBulkQRCodes issues a batch. One bad entry does not abort the rest;
// failures are counted and logged.
func (s *qrService) GenerateBulkQRCodes(ctx context.Context, inputs []GenerateQRInput) (*BulkQRResult, error) {
	result := &BulkQRResult{Codes: make([]model.QRCode, 0, len(inputs))}
	for i, input := range inputs {
		code, err := s.GenerateQRCode(ctx, input)
		if err != nil {
			result.Failed++
			logger.Warn("Bulk QR generation entry failed", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		result.Codes = append(result.Codes, *code)
	}
	return result, nil
}

func (s *qrService) GetQRCode(id string) (*model.QRCode, error) {
	code, err := s.qrRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRNotFound
		}
		return nil, err
	}
	return code, nil
}

func (s *qrService) ListQRCodes() ([]model.QRCode, error) {
	return s.qrRepo.FindAll()
}

// ScanQRCode redeems a short code. Failure reasons are checked in order:
// unknown code, deactivated, expired, quota. Expired and quota-exhausted
// codes are deactivated on first detection. The usage increment itself is a
// conditional update, so concurrent scans cannot overshoot the quota.
func (s *qrService) ScanQRCode(ctx context.Context, shortCode string) (*model.ScanResult, error) {
	code, err := s.resolveShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failedScan(ScanMessageInvalid, model.ScanReasonInvalid), nil
		}
		return nil, err
	}

	now := time.Now()

	if !code.IsActive {
		return failedScan(ScanMessageInactive, model.ScanReasonInactive), nil
	}
	if code.ExpiresAt != nil && !now.Before(*code.ExpiresAt) {
		if err := s.deactivate(ctx, code); err != nil {
			return nil, err
		}
		return failedScan(ScanMessageExpired, model.ScanReasonExpired), nil
	}
	if code.MaxUsage > 0 && code.UsageCount >= code.MaxUsage {
		if err := s.deactivate(ctx, code); err != nil {
			return nil, err
		}
		return failedScan(ScanMessageQuota, model.ScanReasonQuota), nil
	}

	redeemed, err := s.qrRepo.Redeem(code.ID, now)
	if err != nil {
		return nil, err
	}
	if !redeemed {
		// lost the race to the last permitted use
		if err := s.deactivate(ctx, code); err != nil {
			return nil, err
		}
		return failedScan(ScanMessageQuota, model.ScanReasonQuota), nil
	}

	result := dispatchQRType(code)
	logger.Info("QR code redeemed", map[string]interface{}{
		"qr_id": code.ID,
		"type":  code.Type,
	})
	return result, nil
}

// resolveShortCode accepts a bare code or a full redemption URL; for a URL
// the last path segment is the code.
func (s *qrService) resolveShortCode(ctx context.Context, shortCode string) (*model.QRCode, error) {
	shortCode = strings.TrimSuffix(shortCode, "/")
	if i := strings.LastIndex(shortCode, "/"); i >= 0 {
		shortCode = shortCode[i+1:]
	}

	if id, err := redis.LookupShortCode(ctx, shortCode); err == nil && id != "" {
		if code, err := s.qrRepo.FindByID(id); err == nil {
			return code, nil
		}
	}
	return s.qrRepo.FindByShortCode(shortCode)
}

func (s *qrService) deactivate(ctx context.Context, code *model.QRCode) error {
	if err := s.qrRepo.Deactivate(code.ID); err != nil {
		return err
	}
	return redis.InvalidateShortCode(ctx, code.ShortCode)
}

// ProcessNFCTag validates a presented tag's time window and maps it onto the
// same scan-result shape QR codes use. Tags are stateless; nothing is stored.
func (s *qrService) ProcessNFCTag(ctx context.Context, tag *model.NFCTag) (*model.ScanResult, error) {
	if tag == nil || tag.TagID == "" {
		return failedScan(ScanMessageInvalid, model.ScanReasonInvalid), nil
	}

	now := time.Now()
	if tag.ValidFrom != nil && now.Before(*tag.ValidFrom) {
		return failedScan(ScanMessageInactive, model.ScanReasonInactive), nil
	}
	if tag.ValidUntil != nil && !now.Before(*tag.ValidUntil) {
		return failedScan(ScanMessageExpired, model.ScanReasonExpired), nil
	}

	result := &model.ScanResult{
		Success: true,
		Type:    model.QRTypeNFCTag,
		Data:    tag.Payload,
		Message: "NFC tag processed",
	}
	switch tag.TagType {
	case model.NFCTagProduct:
		result.Action = "view_product"
		if productID, ok := tag.Payload["product_id"].(string); ok {
			result.RedirectURL = "/products/" + productID
		}
	case model.NFCTagVendor:
		result.Action = "view_vendor"
		if vendorID, ok := tag.Payload["vendor_id"].(string); ok {
			result.RedirectURL = "/vendors/" + vendorID
		}
	case model.NFCTagAccess:
		result.Action = "grant_access"
	case model.NFCTagInfo:
		result.Action = "show_info"
	default:
		return failedScan(ScanMessageInvalid, model.ScanReasonInvalid), nil
	}

	logger.Info("NFC tag processed", map[string]interface{}{
		"nfc_tag_id": tag.TagID,
		"tag_type":   tag.TagType,
	})
	return result, nil
}

func (s *qrService) DeactivateQRCode(ctx context.Context, id string) error {
	code, err := s.qrRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQRNotFound
		}
		return err
	}
	return s.deactivate(ctx, code)
}

// SweepExpired deactivates codes whose expiry has passed. Run from the
// scheduler; scans already reject expired codes, this just keeps the table
// and the cache tidy.
func (s *qrService) SweepExpired() error {
	codes, err := s.qrRepo.FindExpiredActive(time.Now(), 500)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if err := s.deactivate(context.Background(), &code); err != nil {
			return err
		}
	}
	if len(codes) > 0 {
		logger.Info("Expired QR codes deactivated", map[string]interface{}{
			"count": len(codes),
		})
	}
	return nil
}

// Scan outcome messages.
const (
	ScanMessageInvalid  = "Unknown or invalid code"
	ScanMessageInactive = "This code is no longer active"
	ScanMessageExpired  = "This code has expired"
	ScanMessageQuota    = "This code has reached its usage limit"
)

func failedScan(message, reason string) *model.ScanResult {
	return &model.ScanResult{
		Success: false,
		Message: message,
		Reason:  reason,
	}
}

// dispatchQRType maps a redeemed code onto the client-facing action.
func dispatchQRType(code *model.QRCode) *model.ScanResult {
	result := &model.ScanResult{
		Success: true,
		Type:    code.Type,
		Data:    code.Payload,
		Message: "Code redeemed",
	}

	switch code.Type {
	case model.QRTypePayment:
		result.Action = "process_payment"
	case model.QRTypeProduct:
		result.Action = "view_product"
		if productID, ok := code.Payload["product_id"].(string); ok {
			result.RedirectURL = "/products/" + productID
		}
	case model.QRTypeMembership:
		result.Action = "show_membership"
	case model.QRTypeDiscount:
		result.Action = "apply_discount"
	case model.QRTypeReturn:
		result.Action = "initiate_return"
	case model.QRTypeSupport:
		result.Action = "open_support"
		result.RedirectURL = "/support"
	case model.QRTypeOrder:
		result.Action = "view_order"
		if orderID, ok := code.Payload["order_id"].(string); ok {
			result.RedirectURL = "/orders/" + orderID
		}
	default:
		result.Action = "show_payload"
	}
	return result
}
