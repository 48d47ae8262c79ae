package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeReviewer ActorType = "reviewer"
	ActorTypeRouter   ActorType = "router"
)

// AuditLog is one append-only trail entry. Metadata carries the
// action-specific payload, including the human-readable reason for veto and
// rejection records.
type AuditLog struct {
	ID    snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index:idx_audit_logs_org_created"`

	ActorType string  `json:"actor_type" gorm:"column:actor_type;type:text;not null"`
	ActorID   *string `json:"actor_id,omitempty" gorm:"column:actor_id;type:text"`

	Action     string  `json:"action" gorm:"type:text;not null"`
	TargetType string  `json:"target_type" gorm:"column:target_type;type:text;not null"`
	TargetID   *string `json:"target_id,omitempty" gorm:"column:target_id;type:text"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_audit_logs_org_created"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
