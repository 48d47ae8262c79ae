package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	pkgdb "github.com/buildquote/matchline/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() mappingdomain.Repository {
	return &repo{}
}

// CloseAndInsert runs the SCD2 transition as one transaction. The partial
// unique index on (org_id, canonical_key) WHERE end_ts IS NULL arbitrates
// concurrent writers: the loser's insert fails and surfaces as
// ErrWriteConflict for the service's bounded retry.
func (r *repo) CloseAndInsert(ctx context.Context, db *gorm.DB, mapping *mappingdomain.ItemMapping) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&mappingdomain.ItemMapping{}).
			Where("org_id = ? AND canonical_key = ? AND end_ts IS NULL", mapping.OrgID, mapping.CanonicalKey).
			Update("end_ts", mapping.EffectiveTS)
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Create(mapping).Error; err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return mappingdomain.ErrWriteConflict
			}
			return err
		}
		return nil
	})
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, canonicalKey string) (*mappingdomain.ItemMapping, error) {
	var mapping mappingdomain.ItemMapping
	err := db.WithContext(ctx).
		Table("item_mappings").
		Where("org_id = ? AND canonical_key = ? AND end_ts IS NULL", orgID, canonicalKey).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappingdomain.ErrNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *repo) FindAsOf(ctx context.Context, db *gorm.DB, orgID snowflake.ID, canonicalKey string, at time.Time) (*mappingdomain.ItemMapping, error) {
	var mapping mappingdomain.ItemMapping
	err := db.WithContext(ctx).
		Table("item_mappings").
		Where("org_id = ? AND canonical_key = ?", orgID, canonicalKey).
		Where("effective_ts <= ?", at).
		Where("end_ts IS NULL OR end_ts > ?", at).
		Order("effective_ts DESC").
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappingdomain.ErrNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit int) ([]mappingdomain.ItemMapping, error) {
	var mappings []mappingdomain.ItemMapping
	query := db.WithContext(ctx).
		Table("item_mappings").
		Where("org_id = ? AND end_ts IS NULL", orgID).
		Order("canonical_key ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}
