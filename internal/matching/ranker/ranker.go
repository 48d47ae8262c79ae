// Package ranker scores and orders a candidate pool by confidence. Scoring
// is a pure function of the item, the pool, and the tunable config, so a
// rerun over identical inputs always produces the identical order.
package ranker

import (
	"math"
	"sort"

	"github.com/buildquote/matchline/internal/canonical"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
)

// unitConflictCeiling caps confidence when item and candidate disagree on
// unit. A unit conflict can never be out-scored by text similarity, and the
// cap sits above the default reject floor so the conflict reaches a reviewer
// instead of being dropped.
const unitConflictCeiling = 0.5

// Rank scores candidates and returns the top k in descending confidence.
// Returns an empty slice only when the pool is empty.
func Rank(item *itemdomain.Item, cls classifierdomain.Classification, pool []matchingdomain.Candidate, cfg config.MatchingConfig, k int) []matchingdomain.ScoredCandidate {
	if len(pool) == 0 {
		return nil
	}
	if k <= 0 {
		k = cfg.RankLimit
	}

	attrs := canonical.Parse(item)
	scored := make([]matchingdomain.ScoredCandidate, 0, len(pool))
	for _, cand := range pool {
		sim := Similarity(item.Description, cand.Entry.Description)
		conf := confidence(sim, attrs, cand, cfg)
		scored = append(scored, matchingdomain.ScoredCandidate{
			Candidate:      cand,
			Confidence:     conf,
			TextSimilarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		// Tie-break: in-class candidates beat escape-hatch or broadened
		// ones, then newer catalog entries, then ID for a stable order.
		iExact := boolRank(scored[i].Entry.ClassCode == cls.Code)
		jExact := boolRank(scored[j].Entry.ClassCode == cls.Code)
		if iExact != jExact {
			return iExact > jExact
		}
		if !scored[i].Entry.ValidFrom.Equal(scored[j].Entry.ValidFrom) {
			return scored[i].Entry.ValidFrom.After(scored[j].Entry.ValidFrom)
		}
		return scored[i].Entry.ID < scored[j].Entry.ID
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

func confidence(sim float64, attrs canonical.Attributes, cand matchingdomain.Candidate, cfg config.MatchingConfig) float64 {
	conf := sim

	conf -= dimensionPenalty(attrs.WidthMM, cand.Entry.WidthMM, cfg.DimensionTolerancePct)
	conf -= dimensionPenalty(attrs.HeightMM, cand.Entry.HeightMM, cfg.DimensionTolerancePct)
	conf -= dimensionPenalty(attrs.DiameterMM, cand.Entry.DiameterMM, cfg.DimensionTolerancePct)
	conf -= anglePenalty(attrs.AngleDeg, cand.Entry.AngleDeg, cfg.AngleToleranceDeg)

	if attrs.Material != "" && cand.Entry.Material != "" && attrs.Material != canonical.NormalizeMaterial(cand.Entry.Material) {
		conf -= 0.15
	}

	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	if unitConflict(attrs.Unit, cand.Entry.Unit) && conf > unitConflictCeiling {
		conf = unitConflictCeiling
	}
	return conf
}

func unitConflict(itemUnit, entryUnit string) bool {
	if itemUnit == "" || entryUnit == "" {
		return false
	}
	return itemUnit != canonical.NormalizeUnit(entryUnit)
}

// dimensionPenalty grows with the relative delta once it leaves tolerance,
// capped at 0.4 per dimension so a single bad axis cannot zero out an
// otherwise plausible candidate on its own.
func dimensionPenalty(want, have *float64, tolerancePct float64) float64 {
	if want == nil || have == nil {
		return 0
	}
	base := math.Abs(*want)
	if base == 0 {
		base = 1
	}
	delta := math.Abs(*want-*have) / base
	if delta <= tolerancePct {
		return 0
	}
	penalty := delta - tolerancePct
	if penalty > 0.4 {
		penalty = 0.4
	}
	return penalty
}

func anglePenalty(want, have *float64, toleranceDeg float64) float64 {
	if want == nil || have == nil {
		return 0
	}
	delta := math.Abs(*want - *have)
	if delta <= toleranceDeg {
		return 0
	}
	penalty := delta / 90
	if penalty > 0.4 {
		penalty = 0.4
	}
	return penalty
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
