package model

import "time"

type ThreadEventType string

const (
	ThreadEventCreated  ThreadEventType = "created"
	ThreadEventView     ThreadEventType = "view"
	ThreadEventCartAdd  ThreadEventType = "cart_add"
	ThreadEventPurchase ThreadEventType = "purchase"
	ThreadEventScan     ThreadEventType = "qr_scan"
	ThreadEventTagged   ThreadEventType = "tagged"
)

// ThreadEvent is one entry in an entity's data thread. Threads are
// append-only timelines kept per tracked entity for audit and analytics.
type ThreadEvent struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	EntityID   string          `gorm:"type:varchar(120);index:idx_thread;not null" json:"entity_id"`
	EntityType string          `gorm:"type:varchar(30);index:idx_thread;not null" json:"entity_type"`
	EventType  ThreadEventType `gorm:"type:varchar(20);not null" json:"event_type"`
	Actor      string          `gorm:"type:varchar(120)" json:"actor"`
	Payload    JSONMap         `gorm:"type:text" json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (ThreadEvent) TableName() string {
	return "thread_events"
}
