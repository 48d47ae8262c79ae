package report

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/buildquote/matchline/internal/canonical"
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
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	mappingrepository "github.com/buildquote/matchline/internal/mapping/repository"
	mappingservice "github.com/buildquote/matchline/internal/mapping/service"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      *Service
	mappings mappingdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	orgID    snowflake.ID
	project  snowflake.ID
}

func (f *fixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), f.orgID)
}

func setupReport(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&itemdomain.Item{},
		&catalogdomain.PriceEntry{},
		&classifierdomain.Rule{},
		&mappingdomain.ItemMapping{},
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

	mappings := mappingservice.New(mappingservice.Params{
		DB: db, Log: log, Clock: clk, Repo: mappingrepository.Provide(),
		Holder: holder, Lock: keylock.New(),
	}, node)

	svc := New(Params{
		DB:         db,
		Log:        log,
		Items:      itemrepository.Provide(),
		Catalog:    catalogrepository.Provide(),
		Classifier: classifier,
		Mappings:   mappings,
	})

	return &fixture{
		svc:      svc,
		mappings: mappings,
		db:       db,
		node:     node,
		clk:      clk,
		orgID:    node.Generate(),
		project:  node.Generate(),
	}
}

func (f *fixture) seed(t *testing.T, desc, classCode string, price float64) (itemdomain.Item, catalogdomain.PriceEntry) {
	t.Helper()

	entry := catalogdomain.PriceEntry{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		ClassCode:   classCode,
		Category:    "containment",
		Description: desc,
		Unit:        "ea",
		UnitPrice:   price,
		Currency:    "EUR",
		ValidFrom:   f.clk.Now().AddDate(0, -1, 0),
	}
	require.NoError(t, f.db.Create(&entry).Error)

	item := itemdomain.Item{
		ID:                f.node.Generate(),
		OrgID:             f.orgID,
		ProjectID:         f.project,
		Description:       desc,
		Unit:              "ea",
		ExternalClassCode: classCode,
		Status:            "PENDING",
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item, entry
}

func (f *fixture) mapItem(t *testing.T, item itemdomain.Item, entryID snowflake.ID) string {
	t.Helper()
	key := canonical.Key(item.ExternalClassCode, &item)
	_, err := f.mappings.Write(f.ctx(), mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: entryID,
		CreatedBy:    "router",
		Reason:       "auto accepted",
	})
	require.NoError(t, err)
	return key
}

func TestAsOfRequiresOrgScope(t *testing.T) {
	f := setupReport(t)
	_, err := f.svc.AsOf(context.Background(), f.project, f.clk.Now())
	assert.ErrorIs(t, err, ErrInvalidOrganization)
}

func TestAsOfCoversMappedAndUnmappedItems(t *testing.T) {
	f := setupReport(t)
	item, entry := f.seed(t, "perforated cable tray", "26.24", 42.50)
	f.seed(t, "galvanized duct 200", "23.31", 18.00) // never mapped

	f.mapItem(t, item, entry.ID)

	report, err := f.svc.AsOf(f.ctx(), f.project, f.clk.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Mapped)
	assert.Equal(t, 1, report.Unmapped)
	require.Len(t, report.Rows, 2)

	for _, row := range report.Rows {
		if row.ItemID == item.ID {
			assert.Equal(t, RowStatusMapped, row.Status)
			require.NotNil(t, row.PriceEntryID)
			assert.Equal(t, entry.ID, *row.PriceEntryID)
			assert.Equal(t, 42.50, row.UnitPrice)
		} else {
			assert.Equal(t, RowStatusUnmapped, row.Status)
			assert.Nil(t, row.PriceEntryID)
		}
	}
}

func TestAsOfReturnsHistoricalPriceAfterSupersede(t *testing.T) {
	f := setupReport(t)
	item, entry := f.seed(t, "perforated cable tray", "26.24", 42.50)
	key := f.mapItem(t, item, entry.ID)
	firstMapped := f.clk.Now()

	// A newer catalog entry supersedes the mapping two days later.
	newEntry := catalogdomain.PriceEntry{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		ClassCode:   "26.24",
		Category:    "containment",
		Description: "perforated cable tray",
		Unit:        "ea",
		UnitPrice:   39.00,
		Currency:    "EUR",
		ValidFrom:   f.clk.Now(),
	}
	require.NoError(t, f.db.Create(&newEntry).Error)

	f.clk.Advance(48 * time.Hour)
	_, err := f.mappings.Write(f.ctx(), mappingdomain.WriteRequest{
		CanonicalKey: key,
		PriceEntryID: newEntry.ID,
		CreatedBy:    "reviewer",
		Reason:       "vendor price update",
	})
	require.NoError(t, err)

	past, err := f.svc.AsOf(f.ctx(), f.project, firstMapped.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, past.Mapped)
	assert.Equal(t, 42.50, past.Rows[0].UnitPrice)

	current, err := f.svc.AsOf(f.ctx(), f.project, f.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 39.00, current.Rows[0].UnitPrice)
}

func TestAsOfSurvivesMappingToRemovedCatalogEntry(t *testing.T) {
	f := setupReport(t)
	item, entry := f.seed(t, "perforated cable tray", "26.24", 42.50)
	f.mapItem(t, item, entry.ID)

	// Mappings are history; the catalog row they point at is not.
	require.NoError(t, f.db.Delete(&catalogdomain.PriceEntry{}, entry.ID).Error)

	report, err := f.svc.AsOf(f.ctx(), f.project, f.clk.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, report.Mapped)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, RowStatusMapped, row.Status)
	require.NotNil(t, row.PriceEntryID)
	assert.Equal(t, entry.ID, *row.PriceEntryID)
	assert.Zero(t, row.UnitPrice)
	assert.Empty(t, row.Currency)
	assert.Equal(t, "router", row.MappedBy)
}

func TestAsOfIsByteIdenticalAcrossReruns(t *testing.T) {
	f := setupReport(t)

	descs := []struct {
		desc  string
		class string
		price float64
	}{
		{"perforated cable tray 200x50", "26.24", 42.50},
		{"galvanized duct 300", "23.31", 18.00},
		{"fire damper 250", "23.33", 120.00},
		{"steel pipe dn50", "22.11", 9.75},
	}
	for _, d := range descs {
		item, entry := f.seed(t, d.desc, d.class, d.price)
		f.mapItem(t, item, entry.ID)
	}

	asOf := f.clk.Now().Add(time.Minute)

	first, err := f.svc.AsOf(f.ctx(), f.project, asOf)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := f.svc.AsOf(f.ctx(), f.project, asOf)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
}
