package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/buildquote/matchline/internal/cache"
	"github.com/buildquote/matchline/internal/canonical"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/clock"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ruleCacheTTL = time.Minute

// builtinKeywords backs the lowest hierarchy stage when an org has not
// curated keyword rules of its own. Org rules always take precedence.
var builtinKeywords = []struct {
	keyword string
	code    string
}{
	{"cable tray", "26.24"},
	{"cable ladder", "26.25"},
	{"conduit", "26.05"},
	{"duct", "23.31"},
	{"damper", "23.33"},
	{"pipe", "22.11"},
	{"valve", "22.05"},
	{"insulation", "23.07"},
	{"luminaire", "26.51"},
	{"switchboard", "26.24.13"},
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  classifierdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  classifierdomain.Repository
	genID func() snowflake.ID

	rules *cache.TTLCache[snowflake.ID, []classifierdomain.Rule]
}

func New(p Params, genID *snowflake.Node) classifierdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("classifier.service"),
		clock: p.Clock,
		repo:  p.Repo,
		genID: genID.Generate,
		rules: cache.NewTTLCacheWithNow[snowflake.ID, []classifierdomain.Rule](p.Clock.Now),
	}
}

// Classify walks the trust hierarchy in strict order and stops at the first
// stage that resolves. Rule-table failures degrade to the heuristic stages
// rather than failing the item.
func (s *Service) Classify(ctx context.Context, item *itemdomain.Item) classifierdomain.Classification {
	if code := strings.TrimSpace(item.ExternalClassCode); code != "" {
		return s.resolved(item, classifierdomain.Classification{
			Code:   code,
			Source: classifierdomain.SourceExternal,
			Trust:  classifierdomain.TrustHigh,
		})
	}

	rules := s.rulesFor(ctx, item.OrgID)
	desc := canonical.Normalize(item.Description)
	hint := canonical.Normalize(item.CategoryHint)

	for _, rule := range rules {
		if rule.Kind != classifierdomain.RuleKindDescription {
			continue
		}
		if canonical.Normalize(rule.Pattern) == desc {
			return s.resolved(item, classifierdomain.Classification{
				Code:   rule.ClassCode,
				Source: classifierdomain.SourceRuleTable,
				Trust:  classifierdomain.TrustHigh,
			})
		}
	}

	if hint != "" {
		for _, rule := range rules {
			if rule.Kind != classifierdomain.RuleKindHint {
				continue
			}
			if canonical.Normalize(rule.Pattern) == hint {
				return s.resolved(item, classifierdomain.Classification{
					Code:   rule.ClassCode,
					Source: classifierdomain.SourceCategoryHint,
					Trust:  classifierdomain.TrustMedium,
				})
			}
		}
	}

	for _, rule := range rules {
		if rule.Kind != classifierdomain.RuleKindKeyword {
			continue
		}
		if strings.Contains(desc, canonical.Normalize(rule.Pattern)) {
			return s.resolved(item, classifierdomain.Classification{
				Code:   rule.ClassCode,
				Source: classifierdomain.SourceKeyword,
				Trust:  classifierdomain.TrustLow,
			})
		}
	}
	haystack := desc
	if hint != "" {
		haystack = desc + " " + hint
	}
	for _, kw := range builtinKeywords {
		if strings.Contains(haystack, kw.keyword) {
			return s.resolved(item, classifierdomain.Classification{
				Code:   kw.code,
				Source: classifierdomain.SourceKeyword,
				Trust:  classifierdomain.TrustLow,
			})
		}
	}

	return s.resolved(item, classifierdomain.Classification{
		Source: classifierdomain.SourceUnknown,
		Trust:  classifierdomain.TrustNone,
	})
}

func (s *Service) CreateRule(ctx context.Context, rule *classifierdomain.Rule) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return classifierdomain.ErrInvalidOrganization
	}

	switch rule.Kind {
	case classifierdomain.RuleKindDescription, classifierdomain.RuleKindHint, classifierdomain.RuleKindKeyword:
	default:
		return classifierdomain.ErrInvalidRule
	}
	if strings.TrimSpace(rule.Pattern) == "" || strings.TrimSpace(rule.ClassCode) == "" {
		return classifierdomain.ErrInvalidRule
	}

	rule.ID = s.genID()
	rule.OrgID = orgID
	rule.CreatedAt = s.clock.Now()

	if err := s.repo.Insert(ctx, s.db, rule); err != nil {
		return err
	}

	s.rules.Delete(orgID)
	return nil
}

func (s *Service) resolved(item *itemdomain.Item, c classifierdomain.Classification) classifierdomain.Classification {
	s.log.Debug("classified item",
		zap.String("item_id", item.ID.String()),
		zap.String("code", c.Code),
		zap.String("source", string(c.Source)),
		zap.String("trust", string(c.Trust)),
	)
	return c
}

func (s *Service) rulesFor(ctx context.Context, orgID snowflake.ID) []classifierdomain.Rule {
	if rules, ok := s.rules.Get(orgID); ok {
		return rules
	}

	rules, err := s.repo.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		s.log.Warn("classification rule load failed, falling back to heuristics",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		stale, _ := s.rules.GetStale(orgID)
		return stale
	}

	s.rules.Set(orgID, rules, ruleCacheTTL)
	return rules
}
