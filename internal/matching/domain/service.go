package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"gorm.io/gorm"
)

// RunRequest scopes one match run. Limit bounds the number of pending items
// pulled from the project; zero means the repository default.
type RunRequest struct {
	ProjectID snowflake.ID `json:"project_id"`
	Limit     int          `json:"limit,omitempty"`
}

// Service is the matching pipeline entrypoint. Run processes a batch,
// Approve and Reject record the human decisions that follow manual review.
type Service interface {
	Run(ctx context.Context, req RunRequest) (*RunSummary, error)
	Approve(ctx context.Context, matchResultID snowflake.ID, actor string) (*mappingdomain.ItemMapping, error)
	Reject(ctx context.Context, matchResultID snowflake.ID, actor, reason string) error
	GetResult(ctx context.Context, matchResultID snowflake.ID) (*MatchResult, error)
	ListByRun(ctx context.Context, runID string) ([]MatchResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, result *MatchResult) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*MatchResult, error)
	ListByRun(ctx context.Context, db *gorm.DB, orgID snowflake.ID, runID string) ([]MatchResult, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("match_result_not_found")
	ErrValidation          = errors.New("validation_error")

	// ErrCriticalFlagVeto rejects any attempt to finalize a result carrying a
	// Critical-Veto flag. There is no override path.
	ErrCriticalFlagVeto = errors.New("critical_flag_veto")
)
