// Package riskflag derives the risk-flag set for an item/candidate pair.
// Flag computation is a pure comparison of attributes: no storage access, no
// clock reads beyond the caller-supplied timestamp, identical inputs always
// yield the identical flag set.
package riskflag

import (
	"math"
	"time"

	"github.com/buildquote/matchline/internal/canonical"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/config"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
)

// Compute returns every flag the candidate earns against the item. The order
// is fixed (critical kinds first, each kind at most once) so the persisted
// flag list is deterministic.
func Compute(item *itemdomain.Item, cls classifierdomain.Classification, cand matchingdomain.ScoredCandidate, cfg config.MatchingConfig, now time.Time) matchingdomain.Flags {
	attrs := canonical.Parse(item)
	entry := cand.Entry

	var flags matchingdomain.Flags

	if attrs.Unit != "" && entry.Unit != "" {
		entryUnit := canonical.NormalizeUnit(entry.Unit)
		if attrs.Unit != entryUnit {
			flags = append(flags, matchingdomain.Critical(matchingdomain.FlagUnitConflict,
				"item unit %q conflicts with catalog unit %q", attrs.Unit, entryUnit))
		}
	}

	if msg, ok := sizeMismatch(attrs, &entry, cfg.DimensionTolerancePct); ok {
		flags = append(flags, matchingdomain.Critical(matchingdomain.FlagSizeMismatch, "%s", msg))
	}

	if attrs.AngleDeg != nil && entry.AngleDeg != nil {
		delta := math.Abs(*attrs.AngleDeg - *entry.AngleDeg)
		if delta > cfg.AngleToleranceDeg {
			flags = append(flags, matchingdomain.Critical(matchingdomain.FlagAngleMismatch,
				"angle differs by %.1f deg, tolerance %.1f", delta, cfg.AngleToleranceDeg))
		}
	}

	if attrs.Material != "" && entry.Material != "" {
		entryMaterial := canonical.NormalizeMaterial(entry.Material)
		if attrs.Material != entryMaterial {
			flags = append(flags, matchingdomain.Critical(matchingdomain.FlagMaterialMismatch,
				"item material %q conflicts with catalog material %q", attrs.Material, entryMaterial))
		}
	}

	// Every escape-hatch candidate is a classification mismatch regardless of
	// how well it scored. Candidates from the primary pool mismatch only when
	// a trusted code disagrees with the entry's code.
	if cand.EscapeHatch {
		flags = append(flags, matchingdomain.Critical(matchingdomain.FlagClassificationMismatch,
			"candidate found outside classification %q via escape hatch", cls.Code))
	} else if !cls.IsUnknown() && cls.Code != entry.ClassCode {
		flags = append(flags, matchingdomain.Critical(matchingdomain.FlagClassificationMismatch,
			"candidate class %q does not match item classification %q", entry.ClassCode, cls.Code))
	}

	staleAfter := time.Duration(cfg.StalePriceAfterDays) * 24 * time.Hour
	if now.Sub(entry.ValidFrom) > staleAfter {
		flags = append(flags, matchingdomain.Advisory(matchingdomain.FlagStalePrice,
			"price valid from %s, older than %d days", entry.ValidFrom.Format("2006-01-02"), cfg.StalePriceAfterDays))
	}

	if cfg.BaseCurrency != "" && entry.Currency != "" && entry.Currency != cfg.BaseCurrency {
		flags = append(flags, matchingdomain.Advisory(matchingdomain.FlagCurrencyMismatch,
			"price in %s, reporting currency is %s", entry.Currency, cfg.BaseCurrency))
	}

	if cfg.StandardVATRate > 0 && entry.VATRate != cfg.StandardVATRate {
		flags = append(flags, matchingdomain.Advisory(matchingdomain.FlagVATMismatch,
			"vat rate %.1f%% differs from standard %.1f%%", entry.VATRate, cfg.StandardVATRate))
	}

	if cand.Confidence < cfg.AdvisoryFloor {
		flags = append(flags, matchingdomain.Advisory(matchingdomain.FlagLowConfidence,
			"confidence %.2f below advisory floor %.2f", cand.Confidence, cfg.AdvisoryFloor))
	}

	return flags
}

func sizeMismatch(attrs canonical.Attributes, entry *catalogdomain.PriceEntry, tolerancePct float64) (string, bool) {
	type axis struct {
		name string
		want *float64
		have *float64
	}
	for _, a := range []axis{
		{"width", attrs.WidthMM, entry.WidthMM},
		{"height", attrs.HeightMM, entry.HeightMM},
		{"diameter", attrs.DiameterMM, entry.DiameterMM},
	} {
		if a.want == nil || a.have == nil {
			continue
		}
		base := math.Abs(*a.want)
		if base == 0 {
			base = 1
		}
		delta := math.Abs(*a.want-*a.have) / base
		if delta > tolerancePct {
			return a.name + " differs beyond tolerance", true
		}
	}
	return "", false
}
