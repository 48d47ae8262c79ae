// Package candidate produces the bounded price-entry pool for one item. The
// pool is blocked on classification; the escape hatch is the only path that
// relaxes that filter, and its results are always vetoed downstream.
package candidate

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/buildquote/matchline/internal/canonical"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// escapeHatchTolerancePct is deliberately wider than the veto tolerance: the
// hatch exists to surface catalog gaps, so it casts a broad net and lets the
// flag engine explain the mismatch.
const escapeHatchTolerancePct = 0.25

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Catalog catalogdomain.Repository
	Holder  *config.MatchingConfigHolder
}

type Generator struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	catalog catalogdomain.Repository
	holder  *config.MatchingConfigHolder
}

func New(p Params) *Generator {
	return &Generator{
		db:      p.DB,
		log:     p.Log.Named("matching.candidate"),
		clock:   p.Clock,
		catalog: p.Catalog,
		holder:  p.Holder,
	}
}

// Generate returns the candidate pool for an item plus whether the escape
// hatch was used. An empty pool with a nil error is a valid outcome: the
// router absorbs it into the decision space.
func (g *Generator) Generate(ctx context.Context, item *itemdomain.Item, cls classifierdomain.Classification) ([]matchingdomain.Candidate, bool, error) {
	cfg := g.holder.Get()
	at := g.clock.Now()

	entries, err := g.primaryPool(ctx, item, cls, at, cfg.CandidatePoolLimit)
	if err != nil {
		return nil, false, err
	}
	if len(entries) > 0 {
		candidates := make([]matchingdomain.Candidate, 0, len(entries))
		for _, entry := range entries {
			candidates = append(candidates, matchingdomain.Candidate{Entry: entry})
		}
		return candidates, false, nil
	}

	return g.escapeHatch(ctx, item, at, cfg)
}

func (g *Generator) primaryPool(ctx context.Context, item *itemdomain.Item, cls classifierdomain.Classification, at time.Time, limit int) ([]catalogdomain.PriceEntry, error) {
	if cls.IsUnknown() {
		return nil, nil
	}

	// Low-trust classifications broaden to a category query so a shaky
	// keyword hit does not over-block the pool.
	if cls.Trust == classifierdomain.TrustLow || cls.Trust == classifierdomain.TrustNone {
		category := canonical.Normalize(item.CategoryHint)
		if category != "" {
			return g.catalog.ListCurrentByCategory(ctx, g.db, item.OrgID, category, at, limit)
		}
	}

	return g.catalog.ListCurrentByClassCode(ctx, g.db, item.OrgID, cls.Code, at, limit)
}

func (g *Generator) escapeHatch(ctx context.Context, item *itemdomain.Item, at time.Time, cfg config.MatchingConfig) ([]matchingdomain.Candidate, bool, error) {
	attrs := canonical.Parse(item)
	filter := catalogdomain.AttributeFilter{
		Unit:         attrs.Unit,
		WidthMM:      attrs.WidthMM,
		HeightMM:     attrs.HeightMM,
		DiameterMM:   attrs.DiameterMM,
		TolerancePct: escapeHatchTolerancePct,
	}

	entries, err := g.catalog.ListCurrentFiltered(ctx, g.db, item.OrgID, filter, at, cfg.CandidatePoolLimit)
	if err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return nil, false, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := attributeDistance(attrs, &entries[i]), attributeDistance(attrs, &entries[j])
		if di != dj {
			return di < dj
		}
		return entries[i].ID < entries[j].ID
	})

	limit := cfg.EscapeHatchLimit
	if limit > len(entries) {
		limit = len(entries)
	}

	candidates := make([]matchingdomain.Candidate, 0, limit)
	for _, entry := range entries[:limit] {
		candidates = append(candidates, matchingdomain.Candidate{Entry: entry, EscapeHatch: true})
	}

	g.log.Debug("escape hatch engaged",
		zap.String("item_id", item.ID.String()),
		zap.Int("pool", len(entries)),
		zap.Int("returned", len(candidates)),
	)
	return candidates, true, nil
}

// attributeDistance orders escape-hatch entries by how close their physical
// attributes sit to the item's. Missing attributes on either side count as a
// full unit of distance so fully specified entries win.
func attributeDistance(attrs canonical.Attributes, entry *catalogdomain.PriceEntry) float64 {
	total := 0.0
	total += relativeDelta(attrs.WidthMM, entry.WidthMM)
	total += relativeDelta(attrs.HeightMM, entry.HeightMM)
	total += relativeDelta(attrs.DiameterMM, entry.DiameterMM)
	total += relativeDelta(attrs.AngleDeg, entry.AngleDeg)
	return total
}

func relativeDelta(want, have *float64) float64 {
	if want == nil {
		return 0
	}
	if have == nil {
		return 1
	}
	base := math.Abs(*want)
	if base == 0 {
		base = 1
	}
	return math.Abs(*want-*have) / base
}
