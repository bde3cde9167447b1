package models

import "time"

// WatchModel is catalog reference data for one watch model of a brand.
// Rows are immutable during a scoring window; msrp may be unknown.
type WatchModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Brand      string `gorm:"type:varchar(50);not null;index" json:"brand"`
	Collection string `gorm:"type:varchar(100);index" json:"collection"`
	ModelName  string `gorm:"type:varchar(200);not null" json:"model_name"`
	RefCode    string `gorm:"type:varchar(50);index" json:"ref_code"`

	MSRP         *float64 `gorm:"type:decimal(12,2)" json:"msrp,omitempty"`
	CaseMaterial string   `gorm:"type:varchar(100)" json:"case_material,omitempty"`
	Bracelet     string   `gorm:"type:varchar(100)" json:"bracelet,omitempty"`
	Dial         string   `gorm:"type:varchar(100)" json:"dial,omitempty"`
	SizeMM       *float64 `gorm:"type:decimal(5,2)" json:"size_mm,omitempty"`
	ImageURL     string   `gorm:"type:text" json:"image_url,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (WatchModel) TableName() string {
	return "brand_models"
}
