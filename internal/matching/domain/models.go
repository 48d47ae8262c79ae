package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	DecisionPending      = "PENDING"
	DecisionAutoAccepted = "AUTO_ACCEPTED"
	DecisionManualReview = "MANUAL_REVIEW"
	DecisionRejected     = "REJECTED"
)

// Candidate is a catalog entry pulled into the pool for one item. EscapeHatch
// marks entries found by relaxing the classification filter; they are always
// vetoed downstream regardless of score.
type Candidate struct {
	Entry       catalogdomain.PriceEntry
	EscapeHatch bool
}

// ScoredCandidate pairs a candidate with the ranker's confidence and the raw
// text similarity it was derived from.
type ScoredCandidate struct {
	Candidate
	Confidence     float64
	TextSimilarity float64
}

// MatchResult is the append-only audit record of one matching attempt. Rows
// are never updated; approval and rejection write new facts elsewhere.
type MatchResult struct {
	ID    snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index:idx_match_results_org_run;index:idx_match_results_org_item"`

	RunID  string       `json:"run_id" gorm:"column:run_id;type:text;not null;index:idx_match_results_org_run"`
	ItemID snowflake.ID `json:"item_id" gorm:"column:item_id;not null;index:idx_match_results_org_item"`

	CanonicalKey string        `json:"canonical_key" gorm:"column:canonical_key;type:text;not null"`
	PriceEntryID *snowflake.ID `json:"price_entry_id,omitempty" gorm:"column:price_entry_id"`

	Confidence float64 `json:"confidence" gorm:"type:numeric;not null"`
	Decision   string  `json:"decision" gorm:"type:text;not null"`

	FlagCodes pq.StringArray `json:"flag_codes,omitempty" gorm:"column:flag_codes;type:text[]"`
	FlagsJSON datatypes.JSON `json:"flags,omitempty" gorm:"column:flags;type:jsonb"`

	ClassifierSource string `json:"classifier_source" gorm:"column:classifier_source;type:text;not null"`
	ClassifierTrust  string `json:"classifier_trust" gorm:"column:classifier_trust;type:text;not null"`
	EscapeHatch      bool   `json:"escape_hatch" gorm:"column:escape_hatch;not null;default:false"`

	Reason    string    `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MatchResult) TableName() string { return "match_results" }

// SetFlags stores the flag set in both the queryable code column and the
// full JSON payload.
func (m *MatchResult) SetFlags(flags Flags) error {
	m.FlagCodes = flags.Codes()
	if len(flags) == 0 {
		m.FlagsJSON = nil
		return nil
	}
	payload, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	m.FlagsJSON = payload
	return nil
}

// ParseFlags reconstructs the flag set from the stored JSON payload.
func (m *MatchResult) ParseFlags() (Flags, error) {
	if len(m.FlagsJSON) == 0 {
		return nil, nil
	}
	var flags Flags
	if err := json.Unmarshal(m.FlagsJSON, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// RunSummary is the caller-facing outcome of one match run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	OrgID        snowflake.ID  `json:"organization_id"`
	ProjectID    snowflake.ID  `json:"project_id"`
	AutoAccepted int           `json:"auto_accepted"`
	ManualReview int           `json:"manual_review"`
	Rejected     int           `json:"rejected"`
	FastPathHits int           `json:"fast_path_hits"`
	Errored      int           `json:"errored"`
	Duration     time.Duration `json:"duration_ms"`
	Results      []MatchResult `json:"results,omitempty"`
}
