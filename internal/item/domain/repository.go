package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Item) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Item, error)
	ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, limit int) ([]Item, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("item_not_found")
	ErrMissingDescription  = errors.New("item_description_required")
)
