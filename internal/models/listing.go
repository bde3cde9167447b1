package models

import "time"

// Listing is one marketplace listing observed for a watch model.
// Listings are append-only: once created they are never mutated, daily
// state lives in ListingSnapshot.
type Listing struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelID int64  `gorm:"not null;index" json:"model_id"`
	Source  string `gorm:"type:varchar(50);not null;index" json:"source"`
	URL     string `gorm:"type:varchar(500);not null;uniqueIndex" json:"url"`
	Title   string `gorm:"type:text" json:"title,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name
func (Listing) TableName() string {
	return "market_listings"
}
