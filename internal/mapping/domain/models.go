package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ItemMapping is one SCD Type-2 row of the mapping memory. For a given
// (org_id, canonical_key) at most one row has a null end_ts. Rows are closed
// when superseded, never deleted.
type ItemMapping struct {
	ID    snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID snowflake.ID `json:"organization_id" gorm:"column:org_id;not null"`

	CanonicalKey string       `json:"canonical_key" gorm:"column:canonical_key;type:text;not null"`
	PriceEntryID snowflake.ID `json:"price_entry_id" gorm:"column:price_entry_id;not null"`

	EffectiveTS time.Time  `json:"effective_ts" gorm:"column:effective_ts;not null"`
	EndTS       *time.Time `json:"end_ts,omitempty" gorm:"column:end_ts"`

	CreatedBy string `json:"created_by" gorm:"column:created_by;type:text;not null"`
	Reason    string `json:"reason" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ItemMapping) TableName() string { return "item_mappings" }

// ActiveAt reports whether the row's [effective_ts, end_ts) interval contains
// ts. An open end_ts means still active.
func (m *ItemMapping) ActiveAt(ts time.Time) bool {
	if ts.Before(m.EffectiveTS) {
		return false
	}
	return m.EndTS == nil || ts.Before(*m.EndTS)
}
