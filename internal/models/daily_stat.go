package models

import "time"

// ModelDailyStat is the derived per-model, per-date record produced by the
// stats pipeline. Keyed uniquely by (model_id, captured_date) and
// idempotently overwritten on recomputation; a missing row means "not yet
// computed or no eligible data", never zero-filled.
type ModelDailyStat struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	ModelID      int64     `gorm:"not null;uniqueIndex:idx_model_date" json:"model_id"`
	CapturedDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_model_date;index:idx_stat_date" json:"captured_date"`

	MedianPrice      float64  `gorm:"type:decimal(12,2);not null" json:"median_price"`
	ListingsCount    int      `gorm:"type:int;not null" json:"listings_count"`
	NewListingsCount int      `gorm:"type:int;not null" json:"new_listings_count"`
	SoldRateProxy    float64  `gorm:"type:decimal(6,4);not null" json:"sold_rate_proxy"`
	PremiumOverMSRP  *float64 `gorm:"type:decimal(8,4)" json:"premium_over_msrp,omitempty"`
	WaitTimeIndex    float64  `gorm:"type:decimal(6,4);not null" json:"wait_time_index"`
	WaitBand         string   `gorm:"type:varchar(30);not null" json:"wait_band"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (ModelDailyStat) TableName() string {
	return "model_daily_stats"
}
