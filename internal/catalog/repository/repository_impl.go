package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *catalogdomain.PriceEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*catalogdomain.PriceEntry, error) {
	var entry catalogdomain.PriceEntry
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM price_entries WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, catalogdomain.ErrNotFound
	}
	return &entry, nil
}

func (r *repo) ListCurrentByClassCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, classCode string, at time.Time, limit int) ([]catalogdomain.PriceEntry, error) {
	var entries []catalogdomain.PriceEntry
	err := currentScope(db.WithContext(ctx), orgID, at).
		Where("class_code = ?", classCode).
		Order("valid_from DESC, id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListCurrentByCategory(ctx context.Context, db *gorm.DB, orgID snowflake.ID, category string, at time.Time, limit int) ([]catalogdomain.PriceEntry, error) {
	var entries []catalogdomain.PriceEntry
	err := currentScope(db.WithContext(ctx), orgID, at).
		Where("category = ?", category).
		Order("valid_from DESC, id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListCurrentFiltered(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter catalogdomain.AttributeFilter, at time.Time, limit int) ([]catalogdomain.PriceEntry, error) {
	q := currentScope(db.WithContext(ctx), orgID, at)

	if filter.Unit != "" {
		q = q.Where("unit = ?", filter.Unit)
	}
	tol := filter.TolerancePct
	if tol <= 0 {
		tol = 0.25
	}
	q = rangeClause(q, "width_mm", filter.WidthMM, tol)
	q = rangeClause(q, "height_mm", filter.HeightMM, tol)
	q = rangeClause(q, "diameter_mm", filter.DiameterMM, tol)

	var entries []catalogdomain.PriceEntry
	err := q.Order("valid_from DESC, id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func currentScope(db *gorm.DB, orgID snowflake.ID, at time.Time) *gorm.DB {
	return db.Table("price_entries").
		Where("org_id = ?", orgID).
		Where("valid_from <= ?", at).
		Where("valid_to IS NULL OR valid_to > ?", at)
}

func rangeClause(db *gorm.DB, column string, value *float64, tol float64) *gorm.DB {
	if value == nil {
		return db
	}
	lo := *value * (1 - tol)
	hi := *value * (1 + tol)
	if lo > hi {
		lo, hi = hi, lo
	}
	return db.Where(column+" IS NOT NULL AND "+column+" BETWEEN ? AND ?", lo, hi)
}
