package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
)

// DemoOrgID is the organization used by local bootstrap data. Requests scope
// to it with the X-Org-ID header.
const DemoOrgID snowflake.ID = 1

// DemoProjectID groups the seeded schedule items.
const DemoProjectID snowflake.ID = 1

// EnsureDemoData seeds a small catalog, curated classification rules and a
// handful of schedule items so a fresh install can run a match immediately.
// It is idempotent per table: existing rows for the demo org are left alone.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureClassificationRules(ctx, tx, node); err != nil {
			return err
		}
		if err := ensurePriceEntries(ctx, tx, node); err != nil {
			return err
		}
		return ensureItems(ctx, tx, node)
	})
}

func ensureClassificationRules(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&classifierdomain.Rule{}).
		Where("org_id = ?", DemoOrgID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	rules := []classifierdomain.Rule{
		{Kind: classifierdomain.RuleKindDescription, Pattern: "Steel beam HEA 200", ClassCode: "21.05", Priority: 100},
		{Kind: classifierdomain.RuleKindDescription, Pattern: "Concrete slab 200 mm C30/37", ClassCode: "13.01", Priority: 100},
		{Kind: classifierdomain.RuleKindHint, Pattern: "structural steel", ClassCode: "21.05", Priority: 50},
		{Kind: classifierdomain.RuleKindHint, Pattern: "ventilation", ClassCode: "57.10", Priority: 50},
		{Kind: classifierdomain.RuleKindKeyword, Pattern: "duct", ClassCode: "57.10", Priority: 10},
		{Kind: classifierdomain.RuleKindKeyword, Pattern: "rebar", ClassCode: "13.20", Priority: 10},
	}
	for i := range rules {
		rules[i].ID = node.Generate()
		rules[i].OrgID = DemoOrgID
		rules[i].CreatedAt = now
	}
	return tx.WithContext(ctx).Create(&rules).Error
}

func ensurePriceEntries(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&catalogdomain.PriceEntry{}).
		Where("org_id = ?", DemoOrgID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	validFrom := now.AddDate(0, -6, 0)
	width := func(v float64) *float64 { return &v }

	entries := []catalogdomain.PriceEntry{
		{
			ClassCode: "21.05", Category: "Structural steel",
			Description: "Steel beam HEA 200 S355", Unit: "m",
			UnitPrice: 84.50, Currency: "EUR", VATRate: 0.25,
			VendorCode: "STL-HEA200", WidthMM: width(200), Material: "steel",
		},
		{
			ClassCode: "21.05", Category: "Structural steel",
			Description: "Steel beam HEA 300 S355", Unit: "m",
			UnitPrice: 131.00, Currency: "EUR", VATRate: 0.25,
			VendorCode: "STL-HEA300", WidthMM: width(300), Material: "steel",
		},
		{
			ClassCode: "13.01", Category: "Concrete works",
			Description: "Concrete slab C30/37 200mm", Unit: "m2",
			UnitPrice: 46.20, Currency: "EUR", VATRate: 0.25,
			VendorCode: "CON-SLAB200", HeightMM: width(200), Material: "concrete",
		},
		{
			ClassCode: "13.20", Category: "Concrete works",
			Description: "Reinforcement rebar B500B 12mm", Unit: "kg",
			UnitPrice: 1.45, Currency: "EUR", VATRate: 0.25,
			VendorCode: "CON-RB12", DiameterMM: width(12), Material: "steel",
		},
		{
			ClassCode: "57.10", Category: "Ventilation",
			Description: "Circular duct galvanized 160mm", Unit: "m",
			UnitPrice: 12.80, Currency: "EUR", VATRate: 0.25,
			VendorCode: "VEN-D160", DiameterMM: width(160), Material: "galvanized steel",
		},
		{
			ClassCode: "57.10", Category: "Ventilation",
			Description: "Circular duct galvanized 250mm", Unit: "m",
			UnitPrice: 19.40, Currency: "EUR", VATRate: 0.25,
			VendorCode: "VEN-D250", DiameterMM: width(250), Material: "galvanized steel",
		},
	}
	for i := range entries {
		entries[i].ID = node.Generate()
		entries[i].OrgID = DemoOrgID
		entries[i].ValidFrom = validFrom
		entries[i].CreatedAt = now
		entries[i].UpdatedAt = now
	}
	return tx.WithContext(ctx).Create(&entries).Error
}

func ensureItems(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&itemdomain.Item{}).
		Where("org_id = ?", DemoOrgID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	dim := func(v float64) *float64 { return &v }

	items := []itemdomain.Item{
		{
			Description: "Steel beam HEA 200", CategoryHint: "structural steel",
			Unit: "m", WidthMM: dim(200), Material: "steel",
		},
		{
			Description: "Concrete slab 200 mm C30/37", CategoryHint: "concrete",
			Unit: "m2", HeightMM: dim(200), Material: "concrete",
		},
		{
			Description: "Spiral duct 160", CategoryHint: "ventilation",
			Unit: "m", DiameterMM: dim(160),
		},
		{
			Description: "Rebar 12mm B500B", Unit: "kg", DiameterMM: dim(12),
			ExternalClassCode: "13.20", ExternalClassSource: "design_tool",
		},
	}
	for i := range items {
		items[i].ID = node.Generate()
		items[i].OrgID = DemoOrgID
		items[i].ProjectID = DemoProjectID
		items[i].Status = "PENDING"
		items[i].CreatedAt = now
		items[i].UpdatedAt = now
	}
	return tx.WithContext(ctx).Create(&items).Error
}
