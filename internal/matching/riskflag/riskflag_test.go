package riskflag

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func cls(code string) classifierdomain.Classification {
	return classifierdomain.Classification{
		Code:   code,
		Source: classifierdomain.SourceExternal,
		Trust:  classifierdomain.TrustHigh,
	}
}

func cleanPair() (*itemdomain.Item, matchingdomain.ScoredCandidate) {
	item := &itemdomain.Item{
		Description: "perforated cable tray",
		Unit:        "ea",
		WidthMM:     ptr(200),
	}
	cand := matchingdomain.ScoredCandidate{
		Candidate: matchingdomain.Candidate{
			Entry: catalogdomain.PriceEntry{
				ID:          snowflake.ID(1),
				ClassCode:   "26.24",
				Description: "perforated cable tray",
				Unit:        "ea",
				Currency:    "EUR",
				WidthMM:     ptr(200),
				ValidFrom:   now.AddDate(0, -1, 0),
			},
		},
		Confidence: 0.98,
	}
	return item, cand
}

func codes(flags matchingdomain.Flags) []string {
	return flags.Codes()
}

func TestCleanPairHasNoFlags(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.Empty(t, flags)
}

func TestUnitConflictIsCritical(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.Unit = "m"

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagUnitConflict))
	assert.True(t, flags.HasCriticalVeto())
}

func TestSizeMismatchBeyondToleranceIsCritical(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.WidthMM = ptr(200)
	cand.Entry.WidthMM = ptr(250)

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagSizeMismatch))
	assert.True(t, flags.HasCriticalVeto())
}

func TestSizeWithinToleranceIsClean(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.WidthMM = ptr(200)
	cand.Entry.WidthMM = ptr(202)

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.NotContains(t, codes(flags), string(matchingdomain.FlagSizeMismatch))
}

func TestAngleMismatchIsCritical(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.AngleDeg = ptr(90)
	cand.Entry.AngleDeg = ptr(45)

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.Contains(t, codes(flags), string(matchingdomain.FlagAngleMismatch))
}

func TestMaterialMismatchIsCritical(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.Material = "stainless"
	cand.Entry.Material = "galvanized"

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.Contains(t, codes(flags), string(matchingdomain.FlagMaterialMismatch))
}

func TestEscapeHatchAlwaysGetsClassificationVeto(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.EscapeHatch = true
	cand.Confidence = 0.99

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagClassificationMismatch))
	assert.True(t, flags.HasCriticalVeto())
}

func TestClassCodeDisagreementIsCritical(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.Entry.ClassCode = "23.31"

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.Contains(t, codes(flags), string(matchingdomain.FlagClassificationMismatch))
}

func TestStalePriceIsAdvisory(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.Entry.ValidFrom = now.AddDate(-2, 0, 0)

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagStalePrice))
	assert.False(t, flags.HasCriticalVeto())
}

func TestCurrencyMismatchIsAdvisory(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.Entry.Currency = "SEK"

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagCurrencyMismatch))
	assert.False(t, flags.HasCriticalVeto())
}

func TestVATMismatchOnlyWhenStandardConfigured(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.Entry.VATRate = 12

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	assert.NotContains(t, codes(flags), string(matchingdomain.FlagVATMismatch))

	cfg.StandardVATRate = 25
	flags = Compute(item, cls("26.24"), cand, cfg, now)
	assert.Contains(t, codes(flags), string(matchingdomain.FlagVATMismatch))
}

func TestLowConfidenceIsAdvisory(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	cand.Confidence = 0.60

	flags := Compute(item, cls("26.24"), cand, cfg, now)
	require.Contains(t, codes(flags), string(matchingdomain.FlagLowConfidence))
	assert.False(t, flags.HasCriticalVeto())
}

func TestComputeIsDeterministic(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	item, cand := cleanPair()
	item.Unit = "m"
	item.Material = "stainless"
	cand.Entry.Material = "galvanized"
	cand.Entry.Currency = "SEK"
	cand.Confidence = 0.50

	first := Compute(item, cls("26.24"), cand, cfg, now)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Compute(item, cls("26.24"), cand, cfg, now))
	}
}
