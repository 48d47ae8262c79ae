package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"gorm.io/gorm"
)

// Service resolves a classification for an item. Classify never fails: an
// unresolvable item yields the Unknown classification and is routed to
// manual review downstream instead of aborting the pipeline.
type Service interface {
	Classify(ctx context.Context, item *itemdomain.Item) Classification
	CreateRule(ctx context.Context, rule *Rule) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Rule, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRule         = errors.New("invalid_classification_rule")
)
