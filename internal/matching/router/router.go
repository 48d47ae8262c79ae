// Package router is the terminal decision state machine. Decisions are
// computed from confidence and flags, never mutated afterwards: each run
// writes a fresh match result.
package router

import (
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
)

// Decide maps the best candidate (nil when the pool was empty) and its flag
// set onto a terminal decision.
//
// AutoAccepted requires confidence at or above the floor AND an empty flag
// set. Any flag, advisory included, forces manual review. Rejection happens
// only below the reject floor or when an unknown classification produced no
// viable candidate.
func Decide(cls classifierdomain.Classification, best *matchingdomain.ScoredCandidate, flags matchingdomain.Flags, cfg config.MatchingConfig) string {
	if best == nil {
		if cls.IsUnknown() {
			return matchingdomain.DecisionRejected
		}
		return matchingdomain.DecisionManualReview
	}

	if best.Confidence < cfg.RejectFloor {
		return matchingdomain.DecisionRejected
	}

	if best.Confidence >= cfg.AutoAcceptFloor && len(flags) == 0 {
		return matchingdomain.DecisionAutoAccepted
	}

	return matchingdomain.DecisionManualReview
}
