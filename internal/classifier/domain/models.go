package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TrustLevel orders classification sources by how much downstream stages may
// rely on them. Sources never blend: the first stage that resolves wins and
// its trust level sticks to the result.
type TrustLevel string

const (
	TrustHigh   TrustLevel = "HIGH"
	TrustMedium TrustLevel = "MEDIUM"
	TrustLow    TrustLevel = "LOW"
	TrustNone   TrustLevel = "NONE"
)

// Rank maps trust onto a comparable ordering, higher is more trusted.
func (t TrustLevel) Rank() int {
	switch t {
	case TrustHigh:
		return 3
	case TrustMedium:
		return 2
	case TrustLow:
		return 1
	default:
		return 0
	}
}

// Source identifies which stage of the hierarchy produced a classification.
type Source string

const (
	SourceExternal     Source = "EXTERNAL"
	SourceRuleTable    Source = "RULE_TABLE"
	SourceCategoryHint Source = "CATEGORY_HINT"
	SourceKeyword      Source = "KEYWORD"
	SourceUnknown      Source = "UNKNOWN"
)

// Classification is the derived result. It is not persisted on its own; the
// match result records code, source and trust for audit.
type Classification struct {
	Code   string     `json:"code"`
	Source Source     `json:"source"`
	Trust  TrustLevel `json:"trust"`
}

// IsUnknown reports whether no stage could resolve a code.
func (c Classification) IsUnknown() bool {
	return c.Code == "" || c.Trust == TrustNone
}

// RuleKind selects which hierarchy stage a curated rule participates in.
type RuleKind string

const (
	RuleKindDescription RuleKind = "DESCRIPTION"
	RuleKindHint        RuleKind = "HINT"
	RuleKindKeyword     RuleKind = "KEYWORD"
)

// Rule is a curated org-scoped classification rule.
type Rule struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID     snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	Kind      RuleKind     `json:"kind" gorm:"type:text;not null"`
	Pattern   string       `json:"pattern" gorm:"type:text;not null"`
	ClassCode string       `json:"class_code" gorm:"column:class_code;type:text;not null"`
	Priority  int          `json:"priority" gorm:"not null;default:0"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Rule) TableName() string { return "classification_rules" }
