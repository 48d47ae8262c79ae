package router

import (
	"testing"

	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"github.com/stretchr/testify/assert"
)

func known() classifierdomain.Classification {
	return classifierdomain.Classification{
		Code:   "26.24",
		Source: classifierdomain.SourceExternal,
		Trust:  classifierdomain.TrustHigh,
	}
}

func unknown() classifierdomain.Classification {
	return classifierdomain.Classification{
		Source: classifierdomain.SourceUnknown,
		Trust:  classifierdomain.TrustNone,
	}
}

func scored(conf float64) *matchingdomain.ScoredCandidate {
	return &matchingdomain.ScoredCandidate{Confidence: conf}
}

func TestDecide(t *testing.T) {
	cfg := config.DefaultMatchingConfig()

	advisory := matchingdomain.Flags{
		matchingdomain.Advisory(matchingdomain.FlagStalePrice, "old price"),
	}
	critical := matchingdomain.Flags{
		matchingdomain.Critical(matchingdomain.FlagUnitConflict, "ea vs m"),
	}

	tests := []struct {
		name  string
		cls   classifierdomain.Classification
		best  *matchingdomain.ScoredCandidate
		flags matchingdomain.Flags
		want  string
	}{
		{"high confidence no flags", known(), scored(0.97), nil, matchingdomain.DecisionAutoAccepted},
		{"exactly at floor", known(), scored(cfg.AutoAcceptFloor), nil, matchingdomain.DecisionAutoAccepted},
		{"advisory flag blocks auto accept", known(), scored(0.99), advisory, matchingdomain.DecisionManualReview},
		{"critical flag blocks auto accept", known(), scored(0.99), critical, matchingdomain.DecisionManualReview},
		{"mid confidence", known(), scored(0.70), nil, matchingdomain.DecisionManualReview},
		{"below reject floor", known(), scored(0.20), nil, matchingdomain.DecisionRejected},
		{"no candidate known class", known(), nil, nil, matchingdomain.DecisionManualReview},
		{"no candidate unknown class", unknown(), nil, nil, matchingdomain.DecisionRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.cls, tt.best, tt.flags, cfg))
		})
	}
}
