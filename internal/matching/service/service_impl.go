package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/buildquote/matchline/internal/audit/domain"
	"github.com/buildquote/matchline/internal/canonical"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/buildquote/matchline/internal/matching/candidate"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"github.com/buildquote/matchline/internal/matching/ranker"
	"github.com/buildquote/matchline/internal/matching/riskflag"
	"github.com/buildquote/matchline/internal/matching/router"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	obsmetrics "github.com/buildquote/matchline/internal/observability/metrics"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/buildquote/matchline/pkg/telemetry/correlation"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Holder     *config.MatchingConfigHolder
	Items      itemdomain.Repository
	Classifier classifierdomain.Service
	Generator  *candidate.Generator
	Repo       matchingdomain.Repository
	Mappings   mappingdomain.Service
	Audit      auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	holder     *config.MatchingConfigHolder
	items      itemdomain.Repository
	classifier classifierdomain.Service
	generator  *candidate.Generator
	repo       matchingdomain.Repository
	mappings   mappingdomain.Service
	audit      auditdomain.Service
	genID      func() snowflake.ID
}

func New(p Params, genID *snowflake.Node) matchingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("matching.service"),
		clock:      p.Clock,
		holder:     p.Holder,
		items:      p.Items,
		classifier: p.Classifier,
		generator:  p.Generator,
		repo:       p.Repo,
		mappings:   p.Mappings,
		audit:      p.Audit,
		genID:      genID.Generate,
	}
}

// Run processes a project's pending items through the pipeline. Items are
// independent up to the mapping write, so they fan out over a worker pool;
// each worker gets a per-item timeout budget so one pathological item cannot
// stall the batch.
func (s *Service) Run(ctx context.Context, req matchingdomain.RunRequest) (*matchingdomain.RunSummary, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, matchingdomain.ErrInvalidOrganization
	}
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("%w: project_id is required", matchingdomain.ErrValidation)
	}

	cfg := s.holder.Get()
	started := s.clock.Now()
	runID := ulid.Make().String()
	// The run ID doubles as the correlation ID so every log line and span
	// produced while matching ties back to the run.
	ctx = correlation.ContextWithCorrelationID(ctx, runID)
	obsmetrics.Pipeline().IncRun()

	items, err := s.items.ListByProject(ctx, s.db, orgID, req.ProjectID, req.Limit)
	if err != nil {
		return nil, err
	}

	summary := &matchingdomain.RunSummary{
		RunID:     runID,
		OrgID:     orgID,
		ProjectID: req.ProjectID,
	}

	type slot struct {
		result  *matchingdomain.MatchResult
		errored bool
	}
	slots := make([]slot, len(items))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				item := items[idx]
				itemCtx, cancel := context.WithTimeout(ctx, cfg.ItemTimeout())
				result, err := s.processItem(itemCtx, orgID, runID, &item, cfg)
				cancel()

				if err != nil {
					if errors.Is(err, context.DeadlineExceeded) {
						result = s.timeoutResult(orgID, runID, &item)
					} else {
						s.log.Error("item match failed",
							zap.String("run_id", runID),
							zap.String("item_id", item.ID.String()),
							zap.Error(err),
						)
						obsmetrics.Pipeline().IncPipelineError(obsmetrics.PipelineStageRank, err)
						slots[idx] = slot{errored: true}
						continue
					}
				}

				if err := s.repo.Insert(ctx, s.db, result); err != nil {
					s.log.Error("match result persist failed",
						zap.String("run_id", runID),
						zap.String("item_id", item.ID.String()),
						zap.Error(err),
					)
					obsmetrics.Pipeline().IncPipelineError(obsmetrics.PipelineStagePersist, err)
					slots[idx] = slot{errored: true}
					continue
				}
				slots[idx] = slot{result: result}
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	results := make([]matchingdomain.MatchResult, 0, len(items))
	for _, sl := range slots {
		if sl.errored {
			summary.Errored++
			continue
		}
		if sl.result == nil {
			continue
		}
		results = append(results, *sl.result)
		obsmetrics.Pipeline().IncItemDecision(string(sl.result.Decision))
		switch sl.result.Decision {
		case matchingdomain.DecisionAutoAccepted:
			summary.AutoAccepted++
		case matchingdomain.DecisionManualReview:
			summary.ManualReview++
		case matchingdomain.DecisionRejected:
			summary.Rejected++
		}
		if sl.result.Confidence == 1.0 && sl.result.Reason == fastPathReason {
			summary.FastPathHits++
			obsmetrics.Pipeline().IncFastPathHit()
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ItemID != results[j].ItemID {
			return results[i].ItemID < results[j].ItemID
		}
		return results[i].ID < results[j].ID
	})
	summary.Results = results
	summary.Duration = s.clock.Now().Sub(started)
	obsmetrics.Pipeline().ObserveRunDuration(summary.Duration)

	s.log.Info("match run complete",
		zap.String("run_id", runID),
		zap.String("project_id", req.ProjectID.String()),
		zap.Int("items", len(items)),
		zap.Int("auto_accepted", summary.AutoAccepted),
		zap.Int("manual_review", summary.ManualReview),
		zap.Int("rejected", summary.Rejected),
		zap.Int("fast_path_hits", summary.FastPathHits),
		zap.Int("errored", summary.Errored),
	)
	return summary, nil
}

const fastPathReason = "mapping memory fast path"

func (s *Service) processItem(ctx context.Context, orgID snowflake.ID, runID string, item *itemdomain.Item, cfg config.MatchingConfig) (*matchingdomain.MatchResult, error) {
	if strings.TrimSpace(item.Description) == "" {
		result := s.newResult(orgID, runID, item)
		result.Decision = matchingdomain.DecisionRejected
		result.ClassifierSource = string(classifierdomain.SourceUnknown)
		result.ClassifierTrust = string(classifierdomain.TrustNone)
		result.Reason = "item has no description"
		return result, nil
	}

	cls := s.classifier.Classify(ctx, item)
	key := canonical.Key(cls.Code, item)

	result := s.newResult(orgID, runID, item)
	result.CanonicalKey = key
	result.ClassifierSource = string(cls.Source)
	result.ClassifierTrust = string(cls.Trust)

	// Fast path: a remembered decision for this identity key resolves the
	// item without re-matching, with full confidence. This is what makes a
	// second pass over the same schedule instant and byte-stable.
	mapping, err := s.mappings.Lookup(ctx, key)
	if err == nil {
		result.PriceEntryID = &mapping.PriceEntryID
		result.Confidence = 1.0
		result.Decision = matchingdomain.DecisionAutoAccepted
		result.Reason = fastPathReason
		return result, nil
	}
	if !errors.Is(err, mappingdomain.ErrNotFound) {
		return nil, err
	}

	pool, escapeHatch, err := s.generator.Generate(ctx, item, cls)
	if err != nil {
		return nil, err
	}
	result.EscapeHatch = escapeHatch

	scored := ranker.Rank(item, cls, pool, cfg, cfg.RankLimit)

	var best *matchingdomain.ScoredCandidate
	var flags matchingdomain.Flags
	if len(scored) > 0 {
		best = &scored[0]
		flags = riskflag.Compute(item, cls, *best, cfg, s.clock.Now())
		result.PriceEntryID = &best.Entry.ID
		result.Confidence = best.Confidence
	}

	result.Decision = router.Decide(cls, best, flags, cfg)
	if err := result.SetFlags(flags); err != nil {
		return nil, err
	}
	switch {
	case best == nil && cls.IsUnknown():
		result.Reason = "unknown classification with no viable candidate"
	case best == nil:
		result.Reason = "no current catalog entry for classification " + cls.Code
	case result.Decision == matchingdomain.DecisionRejected:
		result.Reason = fmt.Sprintf("confidence %.2f below reject floor %.2f", best.Confidence, cfg.RejectFloor)
	case result.Decision == matchingdomain.DecisionManualReview && len(flags) > 0:
		result.Reason = flags[0].Message
	}

	if result.Decision == matchingdomain.DecisionAutoAccepted {
		_, err := s.mappings.Write(ctx, mappingdomain.WriteRequest{
			CanonicalKey: key,
			PriceEntryID: best.Entry.ID,
			CreatedBy:    string(auditdomain.ActorTypeRouter),
			Reason:       fmt.Sprintf("auto accepted with confidence %.2f", best.Confidence),
		})
		if err != nil {
			// The decision stands only once the memory records it. A write
			// that cannot land leaves the item for a reviewer.
			s.log.Warn("auto-accept mapping write failed, routing to manual review",
				zap.String("canonical_key", key),
				zap.Error(err),
			)
			result.Decision = matchingdomain.DecisionManualReview
			result.Reason = "mapping write failed: " + err.Error()
		}
	}

	return result, nil
}

func (s *Service) timeoutResult(orgID snowflake.ID, runID string, item *itemdomain.Item) *matchingdomain.MatchResult {
	obsmetrics.Pipeline().IncItemTimeout()
	result := s.newResult(orgID, runID, item)
	result.Decision = matchingdomain.DecisionManualReview
	result.ClassifierSource = string(classifierdomain.SourceUnknown)
	result.ClassifierTrust = string(classifierdomain.TrustNone)
	result.Reason = "item processing exceeded timeout budget"
	_ = result.SetFlags(matchingdomain.Flags{
		matchingdomain.Advisory(matchingdomain.FlagTimeout, "processing timed out"),
	})
	return result
}

func (s *Service) newResult(orgID snowflake.ID, runID string, item *itemdomain.Item) *matchingdomain.MatchResult {
	return &matchingdomain.MatchResult{
		ID:        s.genID(),
		OrgID:     orgID,
		RunID:     runID,
		ItemID:    item.ID,
		CreatedAt: s.clock.Now(),
	}
}

// Approve finalizes a manually reviewed result into the mapping memory. The
// Critical-Veto guard runs unconditionally first: no actor, flag state, or
// request shape can bypass it.
func (s *Service) Approve(ctx context.Context, matchResultID snowflake.ID, actor string) (*mappingdomain.ItemMapping, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, matchingdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", matchingdomain.ErrValidation)
	}

	result, err := s.repo.FindByID(ctx, s.db, orgID, matchResultID)
	if err != nil {
		return nil, err
	}

	flags, err := result.ParseFlags()
	if err != nil {
		return nil, err
	}
	if flags.HasCriticalVeto() {
		s.auditRecord(ctx, auditdomain.ActorTypeReviewer, actor, "match_result.approve.vetoed", result, map[string]any{
			"flag_codes": flags.Codes(),
		})
		return nil, fmt.Errorf("%w: result %s carries critical-veto flags %v",
			matchingdomain.ErrCriticalFlagVeto, matchResultID, flags.Codes())
	}

	if result.PriceEntryID == nil {
		return nil, fmt.Errorf("%w: result has no candidate to approve", matchingdomain.ErrValidation)
	}

	mapping, err := s.mappings.Write(ctx, mappingdomain.WriteRequest{
		CanonicalKey: result.CanonicalKey,
		PriceEntryID: *result.PriceEntryID,
		CreatedBy:    actor,
		Reason:       "manual approval of match result " + matchResultID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, auditdomain.ActorTypeReviewer, actor, "match_result.approved", result, map[string]any{
		"price_entry_id": result.PriceEntryID.String(),
		"confidence":     result.Confidence,
	})
	return mapping, nil
}

// Reject records a human rejection as a fresh append-only result. No mapping
// is written and the original result is left untouched.
func (s *Service) Reject(ctx context.Context, matchResultID snowflake.ID, actor, reason string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return matchingdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(actor) == "" || strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: actor and reason are required", matchingdomain.ErrValidation)
	}

	result, err := s.repo.FindByID(ctx, s.db, orgID, matchResultID)
	if err != nil {
		return err
	}

	rejection := &matchingdomain.MatchResult{
		ID:               s.genID(),
		OrgID:            orgID,
		RunID:            result.RunID,
		ItemID:           result.ItemID,
		CanonicalKey:     result.CanonicalKey,
		PriceEntryID:     result.PriceEntryID,
		Confidence:       result.Confidence,
		Decision:         matchingdomain.DecisionRejected,
		FlagCodes:        result.FlagCodes,
		FlagsJSON:        result.FlagsJSON,
		ClassifierSource: result.ClassifierSource,
		ClassifierTrust:  result.ClassifierTrust,
		EscapeHatch:      result.EscapeHatch,
		Reason:           reason,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, rejection); err != nil {
		return err
	}

	s.auditRecord(ctx, auditdomain.ActorTypeReviewer, actor, "match_result.rejected", result, map[string]any{
		"reason": reason,
	})
	return nil
}

func (s *Service) GetResult(ctx context.Context, matchResultID snowflake.ID) (*matchingdomain.MatchResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, matchingdomain.ErrInvalidOrganization
	}
	return s.repo.FindByID(ctx, s.db, orgID, matchResultID)
}

func (s *Service) ListByRun(ctx context.Context, runID string) ([]matchingdomain.MatchResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, matchingdomain.ErrInvalidOrganization
	}
	return s.repo.ListByRun(ctx, s.db, orgID, runID)
}

func (s *Service) auditRecord(ctx context.Context, actorType auditdomain.ActorType, actorID, action string, result *matchingdomain.MatchResult, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actorType, actorID, action, "match_result", result.ID.String(), metadata); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
