package model

import "time"

// Vendor is a read-mostly catalog record ingested by the orchestrator.
type Vendor struct {
	ID        string    `gorm:"primarykey;type:varchar(40)" json:"id"`
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	Category  string    `gorm:"type:varchar(50)" json:"category"`
	Region    string    `gorm:"type:varchar(50)" json:"region"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vendors"
}

// Product is a catalog record plus the cached per-product analytics the
// orchestrator maintains from tracking events.
type Product struct {
	ID             string    `gorm:"primarykey;type:varchar(40)" json:"id"`
	VendorID       string    `gorm:"type:varchar(40);index;not null" json:"vendor_id"`
	Name           string    `gorm:"type:varchar(150);not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	Category       string    `gorm:"type:varchar(50);index" json:"category"`
	Price          float64   `json:"price"`
	Rating         float64   `json:"rating"`
	ImageURL       string    `gorm:"type:varchar(255)" json:"image_url"`
	Views          int64     `json:"views"`
	CartAdds       int64     `json:"cart_adds"`
	Purchases      int64     `json:"purchases"`
	ConversionRate float64   `json:"conversion_rate"`
	TrendingScore  float64   `json:"trending_score"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
