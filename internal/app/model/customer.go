package model

import "time"

type MembershipClass string

const (
	MembershipGuest      MembershipClass = "guest"
	MembershipRegistered MembershipClass = "registered"
	MembershipCommunity  MembershipClass = "community"
	MembershipVIP        MembershipClass = "vip"
	MembershipVendor     MembershipClass = "vendor"
)

type LoyaltyTier string

const (
	TierBronze   LoyaltyTier = "bronze"
	TierSilver   LoyaltyTier = "silver"
	TierGold     LoyaltyTier = "gold"
	TierPlatinum LoyaltyTier = "platinum"
)

type ChurnRisk string

const (
	ChurnLow    ChurnRisk = "low"
	ChurnMedium ChurnRisk = "medium"
	ChurnHigh   ChurnRisk = "high"
)

// Customer is a profile plus its derived metrics. Metrics columns are
// mutated only through the orchestrator's tracking calls.
type Customer struct {
	ID              string          `gorm:"primarykey;type:varchar(40)" json:"id"`
	Name            string          `gorm:"type:varchar(100)" json:"name"`
	Email           string          `gorm:"type:varchar(120);index" json:"email"`
	Phone           string          `gorm:"type:varchar(30)" json:"phone"`
	Membership      MembershipClass `gorm:"type:varchar(20);default:registered" json:"membership"`
	JoinedAt        time.Time       `json:"joined_at"`
	LastActive      time.Time       `json:"last_active"`
	Preferences     JSONMap         `gorm:"type:text" json:"preferences"`
	TotalOrders     int             `json:"total_orders"`
	TotalSpent      float64         `json:"total_spent"`
	AvgOrderValue   float64         `json:"avg_order_value"`
	LoyaltyPoints   int             `json:"loyalty_points"`
	LoyaltyTier     LoyaltyTier     `gorm:"type:varchar(10);default:bronze" json:"loyalty_tier"`
	LifetimeValue   float64         `json:"lifetime_value"`
	ChurnRisk       ChurnRisk       `gorm:"type:varchar(10);default:high" json:"churn_risk"`
	NPS             int             `json:"nps"`
	LastOrderAt     *time.Time      `json:"last_order_at,omitempty"`
	FavoriteVendors StringSlice     `gorm:"type:text" json:"favorite_vendors"`
	DigitalID       JSONMap         `gorm:"type:text" json:"digital_id"`
	ConsentGiven    bool            `gorm:"default:true" json:"consent_given"`
	ConsentRevoked  *time.Time      `json:"consent_revoked_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionCart     InteractionType = "cart"
	InteractionPurchase InteractionType = "purchase"
	InteractionReview   InteractionType = "review"
	InteractionShare    InteractionType = "share"
)

// ProductInteraction is one entry in a customer's interaction log. The
// customer id is explicit; session id is recorded for audit only.
type ProductInteraction struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	CustomerID string          `gorm:"type:varchar(40);index;not null" json:"customer_id"`
	ProductID  string          `gorm:"type:varchar(40);index;not null" json:"product_id"`
	Type       InteractionType `gorm:"type:varchar(12);not null" json:"type"`
	SessionID  string          `gorm:"type:varchar(64)" json:"session_id"`
	Quantity   int             `gorm:"default:1" json:"quantity"`
	Amount     float64         `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (ProductInteraction) TableName() string {
	return "product_interactions"
}
