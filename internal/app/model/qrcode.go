package model

import "time"

type QRCodeType string

const (
	QRTypePayment    QRCodeType = "payment"
	QRTypeProduct    QRCodeType = "product"
	QRTypeMembership QRCodeType = "membership"
	QRTypeDiscount   QRCodeType = "discount"
	QRTypeReturn     QRCodeType = "return"
	QRTypeSupport    QRCodeType = "support"
	QRTypeOrder      QRCodeType = "order"
	QRTypeNFCTag     QRCodeType = "nfc-tag"
)

// QRCode is one issued code. A record is redeemable iff it is active, not
// past expires_at and under its usage quota; absent constraints mean no
// constraint. Deactivation is terminal.
type QRCode struct {
	ID            string     `gorm:"primarykey;type:varchar(40)" json:"id"`
	Type          QRCodeType `gorm:"type:varchar(20);index;not null" json:"type"`
	Payload       JSONMap    `gorm:"type:text" json:"payload"`
	ShortCode     string     `gorm:"type:varchar(16);uniqueIndex;not null" json:"short_code"`
	RedemptionURL string     `gorm:"type:varchar(255)" json:"redemption_url"`
	ImageURL      string     `gorm:"type:varchar(255)" json:"image_url"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UsageCount    int        `json:"usage_count"`
	MaxUsage      int        `json:"max_usage"` // 0 = unlimited
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	Metadata      JSONMap    `gorm:"type:text" json:"metadata"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (QRCode) TableName() string {
	return "qr_codes"
}

type NFCTagType string

const (
	NFCTagProduct NFCTagType = "product"
	NFCTagVendor  NFCTagType = "vendor"
	NFCTagAccess  NFCTagType = "access"
	NFCTagInfo    NFCTagType = "info"
)

// NFCTag is a physical tag presented for processing. Tags are not stored by
// the engine; the caller supplies the full tag value on each read.
type NFCTag struct {
	TagID      string     `json:"tag_id"`
	TagType    NFCTagType `json:"tag_type"`
	Payload    JSONMap    `json:"payload"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// ScanResult is the structured outcome of a QR or NFC redemption. Reason is
// machine-readable so the presentation layer can pick the right message.
type ScanResult struct {
	Success     bool       `json:"success"`
	Type        QRCodeType `json:"type,omitempty"`
	Data        JSONMap    `json:"data,omitempty"`
	Action      string     `json:"action,omitempty"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	Message     string     `json:"message,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Redemption failure reasons.
const (
	ScanReasonInvalid  = "invalid"
	ScanReasonInactive = "inactive"
	ScanReasonExpired  = "expired"
	ScanReasonQuota    = "quota exceeded"
)
