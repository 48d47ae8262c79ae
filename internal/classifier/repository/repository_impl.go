package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() classifierdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *classifierdomain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]classifierdomain.Rule, error) {
	var rules []classifierdomain.Rule
	err := db.WithContext(ctx).
		Table("classification_rules").
		Where("org_id = ?", orgID).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
