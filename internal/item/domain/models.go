package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a schedule line produced by ingestion. The matching core treats
// items as read-only input: it never mutates them, only records decisions
// about them.
type Item struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID     snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID snowflake.ID `json:"project_id" gorm:"column:project_id;not null;index"`

	Description  string `json:"description" gorm:"type:text;not null"`
	CategoryHint string `json:"category_hint,omitempty" gorm:"type:text"`
	Unit         string `json:"unit,omitempty" gorm:"type:text"`

	WidthMM    *float64 `json:"width_mm,omitempty" gorm:"column:width_mm;type:numeric"`
	HeightMM   *float64 `json:"height_mm,omitempty" gorm:"column:height_mm;type:numeric"`
	DiameterMM *float64 `json:"diameter_mm,omitempty" gorm:"column:diameter_mm;type:numeric"`
	AngleDeg   *float64 `json:"angle_deg,omitempty" gorm:"column:angle_deg;type:numeric"`
	Material   string   `json:"material,omitempty" gorm:"type:text"`

	// ExternalClassCode carries a classification prefilled by the source
	// schedule, when the design tool exported one.
	ExternalClassCode   string `json:"external_class_code,omitempty" gorm:"type:text"`
	ExternalClassSource string `json:"external_class_source,omitempty" gorm:"type:text"`

	Status    string    `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Item) TableName() string { return "items" }
