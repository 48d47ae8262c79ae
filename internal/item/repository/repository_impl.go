package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() itemdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *itemdomain.Item) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*itemdomain.Item, error) {
	var item itemdomain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM items WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, itemdomain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, limit int) ([]itemdomain.Item, error) {
	var items []itemdomain.Item
	q := db.WithContext(ctx).
		Table("items").
		Where("org_id = ? AND project_id = ?", orgID, projectID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
