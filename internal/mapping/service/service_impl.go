package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/config"
	"github.com/buildquote/matchline/internal/keylock"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	obsmetrics "github.com/buildquote/matchline/internal/observability/metrics"
	"github.com/buildquote/matchline/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const distributedLockTTL = 5 * time.Second

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   mappingdomain.Repository
	Holder *config.MatchingConfigHolder
	Lock   *keylock.KeyLock
	Locker *keylock.Locker `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   mappingdomain.Repository
	holder *config.MatchingConfigHolder
	lock   *keylock.KeyLock
	locker *keylock.Locker
	genID  func() snowflake.ID
}

func New(p Params, genID *snowflake.Node) mappingdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("mapping.service"),
		clock:  p.Clock,
		repo:   p.Repo,
		holder: p.Holder,
		lock:   p.Lock,
		locker: p.Locker,
		genID:  genID.Generate,
	}
}

func (s *Service) Lookup(ctx context.Context, canonicalKey string) (*mappingdomain.ItemMapping, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	return s.repo.FindActive(ctx, s.db, orgID, canonicalKey)
}

// Write runs the close-then-insert transition for one identity key. Writers
// on the same key are serialized by a per-key lock; conflicts that slip past
// it (other replicas, lock expiry) are retried a bounded number of times.
func (s *Service) Write(ctx context.Context, req mappingdomain.WriteRequest) (*mappingdomain.ItemMapping, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(req.CanonicalKey) == "" || req.PriceEntryID == 0 {
		return nil, mappingdomain.ErrValidation
	}
	if strings.TrimSpace(req.CreatedBy) == "" || strings.TrimSpace(req.Reason) == "" {
		return nil, mappingdomain.ErrValidation
	}

	lockKey := fmt.Sprintf("mapping:%d:%s", orgID, req.CanonicalKey)
	lockStart := s.clock.Now()
	s.lock.Lock(lockKey)
	defer s.lock.Unlock(lockKey)
	obsmetrics.Pipeline().ObserveLockWait(obsmetrics.LockResourceMappingWrite, s.clock.Now().Sub(lockStart))

	if s.locker != nil {
		token, acquired, err := s.locker.TryLock(ctx, lockKey, distributedLockTTL)
		if err != nil {
			s.log.Warn("distributed lock unavailable, relying on conflict retry", zap.Error(err))
		} else if acquired {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					s.log.Warn("distributed lock release failed", zap.Error(err))
				}
			}()
		}
	}

	cfg := s.holder.Get()

	var lastErr error
	for attempt := 0; attempt < cfg.WriteRetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := cfg.WriteRetryBackoff() * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		mapping := &mappingdomain.ItemMapping{
			ID:           s.genID(),
			OrgID:        orgID,
			CanonicalKey: req.CanonicalKey,
			PriceEntryID: req.PriceEntryID,
			EffectiveTS:  s.clock.Now(),
			CreatedBy:    req.CreatedBy,
			Reason:       req.Reason,
		}

		err := s.repo.CloseAndInsert(ctx, s.db, mapping)
		if err == nil {
			s.log.Info("mapping written",
				zap.String("canonical_key", req.CanonicalKey),
				zap.String("price_entry_id", req.PriceEntryID.String()),
				zap.String("created_by", req.CreatedBy),
			)
			return mapping, nil
		}
		if !errors.Is(err, mappingdomain.ErrWriteConflict) {
			return nil, err
		}
		lastErr = err
		obsmetrics.Pipeline().IncMappingConflict()
		s.log.Debug("mapping write conflict, retrying",
			zap.String("canonical_key", req.CanonicalKey),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, lastErr
}

func (s *Service) ReadAsOf(ctx context.Context, canonicalKey string, at time.Time) (*mappingdomain.ItemMapping, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	return s.repo.FindAsOf(ctx, s.db, orgID, canonicalKey, at)
}

func (s *Service) ListActive(ctx context.Context, limit int) ([]mappingdomain.ItemMapping, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, mappingdomain.ErrInvalidOrganization
	}
	return s.repo.ListActive(ctx, s.db, orgID, limit)
}
