package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AttributeFilter prefilters escape-hatch candidates on physical attributes
// while the classification filter is relaxed. Only set fields constrain the
// query.
type AttributeFilter struct {
	Unit         string
	WidthMM      *float64
	HeightMM     *float64
	DiameterMM   *float64
	TolerancePct float64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *PriceEntry) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PriceEntry, error)
	ListCurrentByClassCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, classCode string, at time.Time, limit int) ([]PriceEntry, error)
	ListCurrentByCategory(ctx context.Context, db *gorm.DB, orgID snowflake.ID, category string, at time.Time, limit int) ([]PriceEntry, error)
	ListCurrentFiltered(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter AttributeFilter, at time.Time, limit int) ([]PriceEntry, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("price_entry_not_found")
)
