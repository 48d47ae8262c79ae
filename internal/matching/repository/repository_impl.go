package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() matchingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, result *matchingdomain.MatchResult) error {
	return db.WithContext(ctx).Create(result).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*matchingdomain.MatchResult, error) {
	var result matchingdomain.MatchResult
	err := db.WithContext(ctx).
		Table("match_results").
		Where("org_id = ? AND id = ?", orgID, id).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, matchingdomain.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *repo) ListByRun(ctx context.Context, db *gorm.DB, orgID snowflake.ID, runID string) ([]matchingdomain.MatchResult, error) {
	var results []matchingdomain.MatchResult
	err := db.WithContext(ctx).
		Table("match_results").
		Where("org_id = ? AND run_id = ?", orgID, runID).
		Order("item_id ASC, id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
