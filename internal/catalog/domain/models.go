package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PriceEntry is a vendor catalog row. The matching core reads entries scoped
// by organization; the catalog collaborator owns their lifecycle.
type PriceEntry struct {
	ID    snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`

	ClassCode   string `json:"class_code" gorm:"column:class_code;type:text;not null;index"`
	Category    string `json:"category" gorm:"type:text;not null"`
	Description string `json:"description" gorm:"type:text;not null"`

	Unit      string  `json:"unit" gorm:"type:text;not null"`
	UnitPrice float64 `json:"unit_price" gorm:"type:numeric;not null"`
	Currency  string  `json:"currency" gorm:"type:text;not null"`
	VATRate   float64 `json:"vat_rate" gorm:"column:vat_rate;type:numeric"`

	VendorCode string `json:"vendor_code,omitempty" gorm:"type:text"`

	WidthMM    *float64 `json:"width_mm,omitempty" gorm:"column:width_mm;type:numeric"`
	HeightMM   *float64 `json:"height_mm,omitempty" gorm:"column:height_mm;type:numeric"`
	DiameterMM *float64 `json:"diameter_mm,omitempty" gorm:"column:diameter_mm;type:numeric"`
	AngleDeg   *float64 `json:"angle_deg,omitempty" gorm:"column:angle_deg;type:numeric"`
	Material   string   `json:"material,omitempty" gorm:"type:text"`

	ValidFrom time.Time  `json:"valid_from" gorm:"not null"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PriceEntry) TableName() string { return "price_entries" }

// CurrentAt reports whether the entry's validity window contains ts.
func (p *PriceEntry) CurrentAt(ts time.Time) bool {
	if ts.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || ts.Before(*p.ValidTo)
}
