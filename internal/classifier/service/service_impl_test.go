package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/classifier/repository"
	"github.com/buildquote/matchline/internal/clock"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupClassifier(t *testing.T) (classifierdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&classifierdomain.Rule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}, node)

	return svc, db, node
}

func TestClassifyExternalCodeWinsOutright(t *testing.T) {
	svc, db, node := setupClassifier(t)
	orgID := node.Generate()

	// A curated rule that would also match; the external code must win.
	db.Create(&classifierdomain.Rule{
		ID:        node.Generate(),
		OrgID:     orgID,
		Kind:      classifierdomain.RuleKindDescription,
		Pattern:   "Cable Tray 200x50",
		ClassCode: "99.99",
	})

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:             orgID,
		Description:       "Cable Tray 200x50",
		ExternalClassCode: "26.24",
	})

	assert.Equal(t, "26.24", c.Code)
	assert.Equal(t, classifierdomain.SourceExternal, c.Source)
	assert.Equal(t, classifierdomain.TrustHigh, c.Trust)
}

func TestClassifyRuleTableMatchesNormalizedDescription(t *testing.T) {
	svc, db, node := setupClassifier(t)
	orgID := node.Generate()

	db.Create(&classifierdomain.Rule{
		ID:        node.Generate(),
		OrgID:     orgID,
		Kind:      classifierdomain.RuleKindDescription,
		Pattern:   "Cable Tray 200x50",
		ClassCode: "26.24",
	})

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:       orgID,
		Description: "cable tray 200×50", // multiplication glyph
	})

	assert.Equal(t, "26.24", c.Code)
	assert.Equal(t, classifierdomain.SourceRuleTable, c.Source)
	assert.Equal(t, classifierdomain.TrustHigh, c.Trust)
}

func TestClassifyHintStage(t *testing.T) {
	svc, db, node := setupClassifier(t)
	orgID := node.Generate()

	db.Create(&classifierdomain.Rule{
		ID:        node.Generate(),
		OrgID:     orgID,
		Kind:      classifierdomain.RuleKindHint,
		Pattern:   "Containment",
		ClassCode: "26.20",
	})

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:        orgID,
		Description:  "bespoke bracket assembly",
		CategoryHint: "containment",
	})

	assert.Equal(t, "26.20", c.Code)
	assert.Equal(t, classifierdomain.SourceCategoryHint, c.Source)
	assert.Equal(t, classifierdomain.TrustMedium, c.Trust)
}

func TestClassifyKeywordStageIsLowTrust(t *testing.T) {
	svc, _, node := setupClassifier(t)

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:       node.Generate(),
		Description: "perforated cable tray with cover",
	})

	assert.Equal(t, "26.24", c.Code)
	assert.Equal(t, classifierdomain.SourceKeyword, c.Source)
	assert.Equal(t, classifierdomain.TrustLow, c.Trust)
}

func TestClassifyUnknownIsTerminalNotAnError(t *testing.T) {
	svc, _, node := setupClassifier(t)

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:       node.Generate(),
		Description: "miscellaneous site works",
	})

	assert.True(t, c.IsUnknown())
	assert.Equal(t, classifierdomain.SourceUnknown, c.Source)
	assert.Equal(t, classifierdomain.TrustNone, c.Trust)
}

func TestClassifyRulesAreOrgScoped(t *testing.T) {
	svc, db, node := setupClassifier(t)
	orgA := node.Generate()
	orgB := node.Generate()

	db.Create(&classifierdomain.Rule{
		ID:        node.Generate(),
		OrgID:     orgA,
		Kind:      classifierdomain.RuleKindDescription,
		Pattern:   "fire stopping collar",
		ClassCode: "07.84",
	})

	c := svc.Classify(context.Background(), &itemdomain.Item{
		OrgID:       orgB,
		Description: "fire stopping collar",
	})

	assert.NotEqual(t, "07.84", c.Code)
}

func TestCreateRuleRequiresOrgAndValidKind(t *testing.T) {
	svc, _, node := setupClassifier(t)

	err := svc.CreateRule(context.Background(), &classifierdomain.Rule{
		Kind:      classifierdomain.RuleKindKeyword,
		Pattern:   "tray",
		ClassCode: "26.24",
	})
	assert.ErrorIs(t, err, classifierdomain.ErrInvalidOrganization)

	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())
	err = svc.CreateRule(ctx, &classifierdomain.Rule{
		Kind:      classifierdomain.RuleKind("BOGUS"),
		Pattern:   "tray",
		ClassCode: "26.24",
	})
	assert.ErrorIs(t, err, classifierdomain.ErrInvalidRule)

	err = svc.CreateRule(ctx, &classifierdomain.Rule{
		Kind:      classifierdomain.RuleKindKeyword,
		Pattern:   "tray",
		ClassCode: "26.24",
	})
	assert.NoError(t, err)
}
