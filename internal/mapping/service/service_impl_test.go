package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	"github.com/buildquote/matchline/internal/keylock"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"github.com/buildquote/matchline/internal/mapping/repository"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupMapping(t *testing.T, clk clock.Clock) (mappingdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&mappingdomain.ItemMapping{}))

	// AutoMigrate cannot express the partial unique index the write path
	// relies on, so create it the way the SQL migration does.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_item_mappings_active
		 ON item_mappings (org_id, canonical_key) WHERE end_ts IS NULL`,
	).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Repo:   repository.Provide(),
		Holder: config.NewStaticMatchingConfigHolder(config.DefaultMatchingConfig()),
		Lock:   keylock.New(),
	}, node)

	return svc, db, node
}

func TestWriteRequiresOrgScope(t *testing.T) {
	svc, _, node := setupMapping(t, clock.NewSystem())

	_, err := svc.Write(context.Background(), mappingdomain.WriteRequest{
		CanonicalKey: "c=26.24|u=ea",
		PriceEntryID: node.Generate(),
		CreatedBy:    "reviewer",
		Reason:       "manual approval",
	})
	assert.ErrorIs(t, err, mappingdomain.ErrInvalidOrganization)
}

func TestWriteRejectsIncompleteRequests(t *testing.T) {
	svc, _, node := setupMapping(t, clock.NewSystem())
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())

	_, err := svc.Write(ctx, mappingdomain.WriteRequest{
		PriceEntryID: node.Generate(),
		CreatedBy:    "reviewer",
		Reason:       "manual approval",
	})
	assert.ErrorIs(t, err, mappingdomain.ErrValidation)

	_, err = svc.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: "c=26.24|u=ea",
		PriceEntryID: node.Generate(),
		CreatedBy:    "reviewer",
	})
	assert.ErrorIs(t, err, mappingdomain.ErrValidation)
}

func TestWriteSupersedesPriorActiveRow(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupMapping(t, clk)

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	key := "c=26.24|f=cable|t=tray|w=200|h=50|u=ea"
	first, second := node.Generate(), node.Generate()

	_, err := svc.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: first,
		CreatedBy:    "router",
		Reason:       "auto accepted",
	})
	require.NoError(t, err)

	clk.Advance(time.Hour)

	_, err = svc.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: second,
		CreatedBy:    "reviewer",
		Reason:       "catalog correction",
	})
	require.NoError(t, err)

	active, err := svc.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second, active.PriceEntryID)
	assert.Nil(t, active.EndTS)

	var total, open int64
	require.NoError(t, db.Model(&mappingdomain.ItemMapping{}).Where("org_id = ?", orgID).Count(&total).Error)
	require.NoError(t, db.Model(&mappingdomain.ItemMapping{}).Where("org_id = ? AND end_ts IS NULL", orgID).Count(&open).Error)
	assert.EqualValues(t, 2, total)
	assert.EqualValues(t, 1, open)
}

func TestReadAsOfReconstructsHistory(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _, node := setupMapping(t, clk)

	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())
	key := "c=23.31|f=duct|u=m"
	first, second := node.Generate(), node.Generate()

	firstWritten := clk.Now()
	_, err := svc.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: first,
		CreatedBy:    "router",
		Reason:       "auto accepted",
	})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	_, err = svc.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: second,
		CreatedBy:    "reviewer",
		Reason:       "vendor change",
	})
	require.NoError(t, err)

	old, err := svc.ReadAsOf(ctx, key, firstWritten.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, old.PriceEntryID)

	current, err := svc.ReadAsOf(ctx, key, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, second, current.PriceEntryID)

	_, err = svc.ReadAsOf(ctx, key, firstWritten.Add(-time.Minute))
	assert.ErrorIs(t, err, mappingdomain.ErrNotFound)
}

func TestWritesAreOrgIsolated(t *testing.T) {
	svc, _, node := setupMapping(t, clock.NewSystem())

	orgA := orgcontext.WithOrgID(context.Background(), node.Generate())
	orgB := orgcontext.WithOrgID(context.Background(), node.Generate())
	key := "c=22.11|f=pipe|u=m"

	_, err := svc.Write(orgA, mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: node.Generate(),
		CreatedBy:    "router",
		Reason:       "auto accepted",
	})
	require.NoError(t, err)

	_, err = svc.Lookup(orgB, key)
	assert.ErrorIs(t, err, mappingdomain.ErrNotFound)
}

func TestConcurrentWritersKeepSingleActiveRow(t *testing.T) {
	svc, db, node := setupMapping(t, clock.NewSystem())

	orgID := node.Generate()
	key := "c=26.24|f=cable|t=tray|u=ea"

	const writers = 12
	entryIDs := make([]snowflake.ID, writers)
	for i := range entryIDs {
		entryIDs[i] = node.Generate()
	}

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := orgcontext.WithOrgID(context.Background(), orgID)
			_, errs[i] = svc.Write(ctx, mappingdomain.WriteRequest{
				CanonicalKey: key,
				PriceEntryID: entryIDs[i],
				CreatedBy:    "router",
				Reason:       "auto accepted",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Positive(t, succeeded)

	var open int64
	require.NoError(t, db.Model(&mappingdomain.ItemMapping{}).
		Where("org_id = ? AND canonical_key = ? AND end_ts IS NULL", orgID, key).
		Count(&open).Error)
	assert.EqualValues(t, 1, open, "exactly one active row regardless of writer interleaving")

	var total int64
	require.NoError(t, db.Model(&mappingdomain.ItemMapping{}).
		Where("org_id = ? AND canonical_key = ?", orgID, key).
		Count(&total).Error)
	assert.EqualValues(t, succeeded, total, "one row per successful write, losers insert nothing")
}
