package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/buildquote/matchline/internal/audit/domain"
	auditrepository "github.com/buildquote/matchline/internal/audit/repository"
	auditservice "github.com/buildquote/matchline/internal/audit/service"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	catalogrepository "github.com/buildquote/matchline/internal/catalog/repository"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	classifierrepository "github.com/buildquote/matchline/internal/classifier/repository"
	classifierservice "github.com/buildquote/matchline/internal/classifier/service"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	itemrepository "github.com/buildquote/matchline/internal/item/repository"
	"github.com/buildquote/matchline/internal/keylock"
	"github.com/buildquote/matchline/internal/matching/candidate"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	matchingrepository "github.com/buildquote/matchline/internal/matching/repository"
	matchingservice "github.com/buildquote/matchline/internal/matching/service"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	mappingrepository "github.com/buildquote/matchline/internal/mapping/repository"
	mappingservice "github.com/buildquote/matchline/internal/mapping/service"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/buildquote/matchline/internal/seed"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	matching matchingdomain.Service
	mappings mappingdomain.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&itemdomain.Item{},
		&catalogdomain.PriceEntry{},
		&classifierdomain.Rule{},
		&matchingdomain.MatchResult{},
		&mappingdomain.ItemMapping{},
		&auditdomain.AuditLog{},
	))
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_item_mappings_active
		 ON item_mappings (org_id, canonical_key) WHERE end_ts IS NULL`,
	).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	holder := config.NewStaticMatchingConfigHolder(config.DefaultMatchingConfig())

	classifier := classifierservice.New(classifierservice.Params{
		DB: db, Log: log, Clock: clk, Repo: classifierrepository.Provide(),
	}, node)

	generator := candidate.New(candidate.Params{
		DB: db, Log: log, Clock: clk, Catalog: catalogrepository.Provide(), Holder: holder,
	})

	mappings := mappingservice.New(mappingservice.Params{
		DB: db, Log: log, Clock: clk, Repo: mappingrepository.Provide(),
		Holder: holder, Lock: keylock.New(),
	}, node)

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, Clock: clk, Repo: auditrepository.Provide(),
	}, node)

	matching := matchingservice.New(matchingservice.Params{
		DB: db, Log: log, Clock: clk, Holder: holder,
		Items:      itemrepository.Provide(),
		Classifier: classifier,
		Generator:  generator,
		Repo:       matchingrepository.Provide(),
		Mappings:   mappings,
		Audit:      audit,
	}, node)

	return &env{db: db, matching: matching, mappings: mappings}
}

// TestSeededInstallMatchesOutOfTheBox runs the full pipeline against the
// bootstrap data a fresh install ships with.
func TestSeededInstallMatchesOutOfTheBox(t *testing.T) {
	e := setup(t)
	require.NoError(t, seed.EnsureDemoData(e.db))

	ctx := orgcontext.WithOrgID(context.Background(), seed.DemoOrgID)
	summary, err := e.matching.Run(ctx, matchingdomain.RunRequest{ProjectID: seed.DemoProjectID})
	require.NoError(t, err)

	assert.Len(t, summary.Results, 4)
	assert.Zero(t, summary.FastPathHits)
	assert.Positive(t, summary.AutoAccepted)
	assert.Zero(t, summary.Rejected)

	for _, result := range summary.Results {
		assert.NotEmpty(t, result.CanonicalKey)
		if result.Decision == matchingdomain.DecisionAutoAccepted {
			require.NotNil(t, result.PriceEntryID)
			assert.Empty(t, result.FlagCodes)
		}
	}

	// A second pass replays remembered decisions for everything the first
	// pass auto-accepted.
	second, err := e.matching.Run(ctx, matchingdomain.RunRequest{ProjectID: seed.DemoProjectID})
	require.NoError(t, err)
	assert.Equal(t, summary.AutoAccepted, second.FastPathHits)
}

func TestSeedIsIdempotent(t *testing.T) {
	e := setup(t)
	require.NoError(t, seed.EnsureDemoData(e.db))
	require.NoError(t, seed.EnsureDemoData(e.db))

	var rules, entries, items int64
	require.NoError(t, e.db.Model(&classifierdomain.Rule{}).Count(&rules).Error)
	require.NoError(t, e.db.Model(&catalogdomain.PriceEntry{}).Count(&entries).Error)
	require.NoError(t, e.db.Model(&itemdomain.Item{}).Count(&items).Error)

	assert.Equal(t, int64(6), rules)
	assert.Equal(t, int64(6), entries)
	assert.Equal(t, int64(4), items)
}
