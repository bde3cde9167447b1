package models

import "time"

// ListingSnapshot is one observation of a listing on one calendar date:
// price, availability and an optional shipping-delay range. At most one
// snapshot exists per (listing, date); the daily stats counts rely on that.
type ListingSnapshot struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID    int64     `gorm:"not null;uniqueIndex:idx_listing_date" json:"listing_id"`
	CapturedDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_listing_date;index:idx_captured_date" json:"captured_date"`

	PriceValue       *float64 `gorm:"type:decimal(12,2)" json:"price_value,omitempty"`
	AvailabilityFlag bool     `gorm:"type:boolean;not null;default:true" json:"availability_flag"`
	ShippingDaysMin  *int     `gorm:"type:int" json:"shipping_days_min,omitempty"`
	ShippingDaysMax  *int     `gorm:"type:int" json:"shipping_days_max,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (ListingSnapshot) TableName() string {
	return "listing_snapshots"
}
