// Package report assembles deterministic as-of cost reports from the mapping
// memory. The same (org, project, as-of timestamp) inputs always produce the
// same rows in the same order: rows are keyed and sorted by canonical key,
// and every price fact is read through the temporal mapping query rather
// than from live matching state.
package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/buildquote/matchline/internal/canonical"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	RowStatusMapped   = "MAPPED"
	RowStatusUnmapped = "UNMAPPED"
)

// Row is one report line. Unmapped items appear with an empty price so the
// report always covers the full project.
type Row struct {
	ItemID       snowflake.ID  `json:"item_id"`
	Description  string        `json:"description"`
	CanonicalKey string        `json:"canonical_key"`
	Status       string        `json:"status"`
	PriceEntryID *snowflake.ID `json:"price_entry_id,omitempty"`
	UnitPrice    float64       `json:"unit_price,omitempty"`
	Currency     string        `json:"currency,omitempty"`
	MappedAt     *time.Time    `json:"mapped_at,omitempty"`
	MappedBy     string        `json:"mapped_by,omitempty"`
}

type Report struct {
	ProjectID snowflake.ID `json:"project_id"`
	AsOf      time.Time    `json:"as_of"`
	Rows      []Row        `json:"rows"`
	Mapped    int          `json:"mapped"`
	Unmapped  int          `json:"unmapped"`
}

var ErrInvalidOrganization = errors.New("invalid_organization")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Items      itemdomain.Repository
	Catalog    catalogdomain.Repository
	Classifier classifierdomain.Service
	Mappings   mappingdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	items      itemdomain.Repository
	catalog    catalogdomain.Repository
	classifier classifierdomain.Service
	mappings   mappingdomain.Service
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("report.service"),
		items:      p.Items,
		catalog:    p.Catalog,
		classifier: p.Classifier,
		mappings:   p.Mappings,
	}
}

// AsOf reconstructs the project's cost assignment at the given instant.
func (s *Service) AsOf(ctx context.Context, projectID snowflake.ID, asOf time.Time) (*Report, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, ErrInvalidOrganization
	}

	items, err := s.items.ListByProject(ctx, s.db, orgID, projectID, 0)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ProjectID: projectID,
		AsOf:      asOf.UTC(),
		Rows:      make([]Row, 0, len(items)),
	}

	for i := range items {
		item := &items[i]
		cls := s.classifier.Classify(ctx, item)
		key := canonical.Key(cls.Code, item)

		row := Row{
			ItemID:       item.ID,
			Description:  item.Description,
			CanonicalKey: key,
			Status:       RowStatusUnmapped,
		}

		mapping, err := s.mappings.ReadAsOf(ctx, key, asOf)
		switch {
		case err == nil:
			row.Status = RowStatusMapped
			row.PriceEntryID = &mapping.PriceEntryID
			effective := mapping.EffectiveTS
			row.MappedAt = &effective
			row.MappedBy = mapping.CreatedBy
			report.Mapped++

			entry, err := s.catalog.FindByID(ctx, s.db, orgID, mapping.PriceEntryID)
			switch {
			case err == nil:
				row.UnitPrice = entry.UnitPrice
				row.Currency = entry.Currency
			case errors.Is(err, catalogdomain.ErrNotFound):
				// Mappings outlive catalog rows; a mapping whose entry has
				// since been removed still reports as mapped, without a
				// price fact.
				s.log.Warn("mapped price entry no longer in catalog",
					zap.String("canonical_key", key),
					zap.String("price_entry_id", mapping.PriceEntryID.String()),
				)
			default:
				return nil, err
			}
		case errors.Is(err, mappingdomain.ErrNotFound):
			report.Unmapped++
		default:
			return nil, err
		}

		report.Rows = append(report.Rows, row)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		if report.Rows[i].CanonicalKey != report.Rows[j].CanonicalKey {
			return report.Rows[i].CanonicalKey < report.Rows[j].CanonicalKey
		}
		return report.Rows[i].ItemID < report.Rows[j].ItemID
	})

	return report, nil
}
