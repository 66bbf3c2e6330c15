package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/db"
	"github.com/verdemarket/engage-backend/pkg/qrcode"
)

func testQRConfig() config.QRConfig {
	return config.QRConfig{
		BaseURL:       "http://localhost:8080",
		CodeLength:    8,
		ImageSize:     256,
		EncodeTimeout: 5 * time.Second,
	}
}

func setupQRServiceTest(t *testing.T) (QRService, repository.QRRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	qrRepo := repository.NewQRRepository(testDB)
	cfg := testQRConfig()
	return NewQRService(qrRepo, qrcode.NewPNGEncoder(cfg.EncodeTimeout), nil, &cfg), qrRepo
}

// failingEncoder always errors, standing in for a render failure.
type failingEncoder struct{}

func (failingEncoder) EncodePNG(ctx context.Context, content string, size int) ([]byte, error) {
	return nil, errors.New("render failed")
}

func TestQRService_GenerateQRCode(t *testing.T) {
	qrService, _ := setupQRServiceTest(t)

	code, err := qrService.GenerateQRCode(context.Background(), GenerateQRInput{
		Type:    model.QRTypePayment,
		Payload: model.JSONMap{"amount": 25.0},
	})
	require.NoError(t, err)
	assert.Len(t, code.ShortCode, 8)
	assert.Equal(t, "http://localhost:8080/r/"+code.ShortCode, code.RedemptionURL)
	assert.True(t, code.IsActive)
	assert.Equal(t, 0, code.UsageCount)
}

func TestQRService_GenerateQRCode_EncodeFailureLeavesNoRecord(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	qrRepo := repository.NewQRRepository(testDB)
	cfg := testQRConfig()
	qrService := NewQRService(qrRepo, failingEncoder{}, nil, &cfg)

	_, err = qrService.GenerateQRCode(context.Background(), GenerateQRInput{
		Type: model.QRTypeDiscount,
	})
	require.Error(t, err)

	codes, err := qrRepo.FindAll()
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestQRService_GenerateBulkQRCodes(t *testing.T) {
	qrService, _ := setupQRServiceTest(t)

	inputs := []GenerateQRInput{
		{Type: model.QRTypeProduct, Payload: model.JSONMap{"product_id": "prod_1"}},
		{Type: model.QRTypeDiscount, Payload: model.JSONMap{"percent": 10.0}},
		{Type: model.QRTypeOrder, Payload: model.JSONMap{"order_id": "ord_1"}},
	}

	result, err := qrService.GenerateBulkQRCodes(context.Background(), inputs)
	require.NoError(t, err)
	assert.Len(t, result.Codes, 3)
	assert.Equal(t, 0, result.Failed)

	// every code got its own short code
	seen := map[string]bool{}
	for _, code := range result.Codes {
		assert.False(t, seen[code.ShortCode])
		seen[code.ShortCode] = true
	}
}

func TestQRService_ScanQRCode(t *testing.T) {
	ctx := context.Background()
	qrService, qrRepo := setupQRServiceTest(t)

	code, err := qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:    model.QRTypeProduct,
		Payload: model.JSONMap{"product_id": "prod_42"},
	})
	require.NoError(t, err)

	result, err := qrService.ScanQRCode(ctx, code.ShortCode)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "view_product", result.Action)
	assert.Equal(t, "/products/prod_42", result.RedirectURL)

	stored, err := qrRepo.FindByID(code.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)

	// the full redemption URL resolves to the same record
	result, err = qrService.ScanQRCode(ctx, code.RedemptionURL)
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, err = qrRepo.FindByID(code.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsageCount)
}

func TestQRService_ScanQRCode_UnknownCode(t *testing.T) {
	qrService, _ := setupQRServiceTest(t)

	result, err := qrService.ScanQRCode(context.Background(), "NOSUCHCD")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.ScanReasonInvalid, result.Reason)
}

func TestQRService_ScanQRCode_Expired(t *testing.T) {
	ctx := context.Background()
	qrService, qrRepo := setupQRServiceTest(t)

	past := time.Now().Add(-time.Hour)
	code, err := qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:      model.QRTypeDiscount,
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	result, err := qrService.ScanQRCode(ctx, code.ShortCode)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.ScanReasonExpired, result.Reason)

	// the failed scan deactivated the record
	stored, err := qrRepo.FindByID(code.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestQRService_ScanQRCode_QuotaExhaustion(t *testing.T) {
	ctx := context.Background()
	qrService, qrRepo := setupQRServiceTest(t)

	code, err := qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:     model.QRTypePayment,
		MaxUsage: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := qrService.ScanQRCode(ctx, code.ShortCode)
		require.NoError(t, err)
		assert.True(t, result.Success)
	}

	result, err := qrService.ScanQRCode(ctx, code.ShortCode)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.ScanReasonQuota, result.Reason)

	stored, err := qrRepo.FindByID(code.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsageCount)
	assert.False(t, stored.IsActive)
}

// claimedRepo reports every redemption as already claimed by another scan.
type claimedRepo struct {
	repository.QRRepository
}

func (r *claimedRepo) Redeem(id string, now time.Time) (bool, error) {
	return false, nil
}

func TestQRService_ScanQRCode_RedeemRaceLossDeactivates(t *testing.T) {
	ctx := context.Background()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	qrRepo := repository.NewQRRepository(testDB)
	cfg := testQRConfig()
	qrService := NewQRService(&claimedRepo{qrRepo}, qrcode.NewPNGEncoder(cfg.EncodeTimeout), nil, &cfg)

	code, err := qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:     model.QRTypePayment,
		MaxUsage: 1,
	})
	require.NoError(t, err)

	// a concurrent scan claimed the last use between the pre-check and the
	// conditional increment
	result, err := qrService.ScanQRCode(ctx, code.ShortCode)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.ScanReasonQuota, result.Reason)

	stored, err := qrRepo.FindByID(code.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestQRService_ScanQRCode_Deactivated(t *testing.T) {
	ctx := context.Background()
	qrService, _ := setupQRServiceTest(t)

	code, err := qrService.GenerateQRCode(ctx, GenerateQRInput{Type: model.QRTypeSupport})
	require.NoError(t, err)

	require.NoError(t, qrService.DeactivateQRCode(ctx, code.ID))

	result, err := qrService.ScanQRCode(ctx, code.ShortCode)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.ScanReasonInactive, result.Reason)
}

func TestQRService_ScanQRCode_TypeDispatch(t *testing.T) {
	ctx := context.Background()
	qrService, _ := setupQRServiceTest(t)

	tests := []struct {
		name         string
		input        GenerateQRInput
		wantAction   string
		wantRedirect string
	}{
		{
			name:       "Payment",
			input:      GenerateQRInput{Type: model.QRTypePayment},
			wantAction: "process_payment",
		},
		{
			name:       "Membership",
			input:      GenerateQRInput{Type: model.QRTypeMembership},
			wantAction: "show_membership",
		},
		{
			name:         "Order carries a redirect",
			input:        GenerateQRInput{Type: model.QRTypeOrder, Payload: model.JSONMap{"order_id": "ord_7"}},
			wantAction:   "view_order",
			wantRedirect: "/orders/ord_7",
		},
		{
			name:         "Support",
			input:        GenerateQRInput{Type: model.QRTypeSupport},
			wantAction:   "open_support",
			wantRedirect: "/support",
		},
		{
			name:       "Unknown type falls back to raw payload",
			input:      GenerateQRInput{Type: "mystery"},
			wantAction: "show_payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := qrService.GenerateQRCode(ctx, tt.input)
			require.NoError(t, err)

			result, err := qrService.ScanQRCode(ctx, code.ShortCode)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, tt.wantAction, result.Action)
			assert.Equal(t, tt.wantRedirect, result.RedirectURL)
		})
	}
}

func TestQRService_ProcessNFCTag(t *testing.T) {
	ctx := context.Background()
	qrService, _ := setupQRServiceTest(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name        string
		tag         *model.NFCTag
		wantSuccess bool
		wantReason  string
		wantAction  string
	}{
		{
			name:        "Product tag redirects to product",
			tag:         &model.NFCTag{TagID: "nfc_1", TagType: model.NFCTagProduct, Payload: model.JSONMap{"product_id": "prod_9"}},
			wantSuccess: true,
			wantAction:  "view_product",
		},
		{
			name:        "Access tag",
			tag:         &model.NFCTag{TagID: "nfc_2", TagType: model.NFCTagAccess},
			wantSuccess: true,
			wantAction:  "grant_access",
		},
		{
			name:       "Missing tag id",
			tag:        &model.NFCTag{TagType: model.NFCTagInfo},
			wantReason: model.ScanReasonInvalid,
		},
		{
			name:       "Nil tag",
			tag:        nil,
			wantReason: model.ScanReasonInvalid,
		},
		{
			name:       "Not yet valid",
			tag:        &model.NFCTag{TagID: "nfc_3", TagType: model.NFCTagInfo, ValidFrom: &future},
			wantReason: model.ScanReasonInactive,
		},
		{
			name:       "Validity window passed",
			tag:        &model.NFCTag{TagID: "nfc_4", TagType: model.NFCTagInfo, ValidUntil: &past},
			wantReason: model.ScanReasonExpired,
		},
		{
			name:       "Unknown tag type",
			tag:        &model.NFCTag{TagID: "nfc_5", TagType: "badge"},
			wantReason: model.ScanReasonInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := qrService.ProcessNFCTag(ctx, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantAction, result.Action)
			} else {
				assert.Equal(t, tt.wantReason, result.Reason)
			}
		})
	}
}

func TestQRService_DeactivateQRCode_NotFound(t *testing.T) {
	qrService, _ := setupQRServiceTest(t)

	err := qrService.DeactivateQRCode(context.Background(), "qr_missing")
	assert.ErrorIs(t, err, ErrQRNotFound)
}

func TestQRService_SweepExpired(t *testing.T) {
	ctx := context.Background()
	qrService, qrRepo := setupQRServiceTest(t)

	past := time.Now().Add(-time.Minute)
	expired, err := qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type:      model.QRTypeDiscount,
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	alive, err := qrService.GenerateQRCode(ctx, GenerateQRInput{Type: model.QRTypePayment})
	require.NoError(t, err)

	require.NoError(t, qrService.SweepExpired())

	stored, err := qrRepo.FindByID(expired.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	stored, err = qrRepo.FindByID(alive.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}
