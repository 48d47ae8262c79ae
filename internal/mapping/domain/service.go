package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WriteRequest carries one mapping-memory write. Reason and actor are
// mandatory: every active-row change must be reconstructible from the row
// itself.
type WriteRequest struct {
	CanonicalKey string
	PriceEntryID snowflake.ID
	CreatedBy    string
	Reason       string
}

// Service owns the mapping memory. Lookup reads the active row, Write runs
// the close-then-insert transition, ReadAsOf reconstructs history.
type Service interface {
	Lookup(ctx context.Context, canonicalKey string) (*ItemMapping, error)
	Write(ctx context.Context, req WriteRequest) (*ItemMapping, error)
	ReadAsOf(ctx context.Context, canonicalKey string, at time.Time) (*ItemMapping, error)
	ListActive(ctx context.Context, limit int) ([]ItemMapping, error)
}

type Repository interface {
	// CloseAndInsert atomically closes the current active row for the
	// mapping's (org_id, canonical_key), if any, and inserts the new row.
	// Returns ErrWriteConflict when a concurrent writer won the race.
	CloseAndInsert(ctx context.Context, db *gorm.DB, mapping *ItemMapping) error
	FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, canonicalKey string) (*ItemMapping, error)
	FindAsOf(ctx context.Context, db *gorm.DB, orgID snowflake.ID, canonicalKey string, at time.Time) (*ItemMapping, error)
	ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]ItemMapping, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("item_mapping_not_found")
	ErrValidation          = errors.New("invalid_mapping_write")

	// ErrWriteConflict reports a lost race on the single-active-row invariant.
	// Transient: callers retry with backoff, bounded by configuration.
	ErrWriteConflict = errors.New("mapping_write_conflict")
)
