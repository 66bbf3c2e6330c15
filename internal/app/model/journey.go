package model

import "time"

type TouchpointChannel string

const (
	ChannelWebsite  TouchpointChannel = "website"
	ChannelEmail    TouchpointChannel = "email"
	ChannelQR       TouchpointChannel = "qr"
	ChannelStore    TouchpointChannel = "store"
	ChannelSupport  TouchpointChannel = "support"
	ChannelPurchase TouchpointChannel = "purchase"
)

type TouchpointOutcome string

const (
	OutcomePositive TouchpointOutcome = "positive"
	OutcomeNeutral  TouchpointOutcome = "neutral"
	OutcomeNegative TouchpointOutcome = "negative"
)

type JourneyStage string

const (
	StageAwareness     JourneyStage = "awareness"
	StageConsideration JourneyStage = "consideration"
	StagePurchase      JourneyStage = "purchase"
	StageRetention     JourneyStage = "retention"
	StageAdvocacy      JourneyStage = "advocacy"
)

// Touchpoint is one timestamped customer contact on a channel. Rows are
// append-only.
type Touchpoint struct {
	ID         uint              `gorm:"primarykey" json:"id"`
	CustomerID string            `gorm:"type:varchar(40);index;not null" json:"customer_id"`
	Channel    TouchpointChannel `gorm:"type:varchar(12);not null" json:"channel"`
	Action     string            `gorm:"type:varchar(60)" json:"action"`
	Outcome    TouchpointOutcome `gorm:"type:varchar(10);default:neutral" json:"outcome"`
	Payload    JSONMap           `gorm:"type:text" json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (Touchpoint) TableName() string {
	return "touchpoints"
}

// CustomerJourney holds the derived journey state, recomputed after every
// touchpoint append. Stages express intent to move forward but a customer
// can regress.
type CustomerJourney struct {
	CustomerID          string       `gorm:"primarykey;type:varchar(40)" json:"customer_id"`
	EngagementScore     int          `json:"engagement_score"` // clamped to [0,100]
	CurrentStage        JourneyStage `gorm:"type:varchar(15);default:awareness" json:"current_stage"`
	PredictedNextAction string       `gorm:"type:varchar(60)" json:"predicted_next_action"`
	TouchpointCount     int          `json:"touchpoint_count"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (CustomerJourney) TableName() string {
	return "customer_journeys"
}
