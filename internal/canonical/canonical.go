// Package canonical derives the deterministic identity key used by the
// mapping memory. Two schedule lines describing the same component must
// produce byte-identical keys across runs and process restarts, so every
// function in this package is pure: no clock, no randomness, no locale
// dependence.
package canonical

import (
	"strconv"
	"strings"

	itemdomain "github.com/buildquote/matchline/internal/item/domain"
)

const separator = "|"

// Key builds the canonical identity key for an item under the given
// classification code. Absent fields are omitted rather than encoded empty,
// keeping keys stable when ingestion adds optional columns.
func Key(classCode string, item *itemdomain.Item) string {
	desc := Normalize(item.Description)
	attrs := parseAttributes(desc)

	// Structured fields from ingestion win over values parsed out of the
	// description text.
	if item.WidthMM != nil {
		attrs.WidthMM = item.WidthMM
	}
	if item.HeightMM != nil {
		attrs.HeightMM = item.HeightMM
	}
	if item.DiameterMM != nil {
		attrs.DiameterMM = item.DiameterMM
	}
	if item.AngleDeg != nil {
		attrs.AngleDeg = item.AngleDeg
	}
	if item.Material != "" {
		attrs.Material = NormalizeMaterial(item.Material)
	}
	if item.Unit != "" {
		attrs.Unit = NormalizeUnit(item.Unit)
	}

	family, typ := descriptorTokens(desc)

	parts := make([]string, 0, 9)
	if classCode != "" {
		parts = append(parts, "c="+classCode)
	}
	if family != "" {
		parts = append(parts, "f="+family)
	}
	if typ != "" {
		parts = append(parts, "t="+typ)
	}
	if attrs.WidthMM != nil {
		parts = append(parts, "w="+formatNumber(*attrs.WidthMM))
	}
	if attrs.HeightMM != nil {
		parts = append(parts, "h="+formatNumber(*attrs.HeightMM))
	}
	if attrs.DiameterMM != nil {
		parts = append(parts, "d="+formatNumber(*attrs.DiameterMM))
	}
	if attrs.AngleDeg != nil {
		parts = append(parts, "a="+formatNumber(*attrs.AngleDeg))
	}
	if attrs.Material != "" {
		parts = append(parts, "m="+attrs.Material)
	}
	if attrs.Unit != "" {
		parts = append(parts, "u="+attrs.Unit)
	}

	return strings.Join(parts, separator)
}

// Attributes are the physical properties recognized in a schedule line.
type Attributes struct {
	WidthMM    *float64
	HeightMM   *float64
	DiameterMM *float64
	AngleDeg   *float64
	Material   string
	Unit       string
}

// Parse extracts physical attributes from an item, merging structured fields
// with values recognized in the description. Used by the flag engine so item
// and candidate are compared on the same normalized basis.
func Parse(item *itemdomain.Item) Attributes {
	attrs := parseAttributes(Normalize(item.Description))
	if item.WidthMM != nil {
		attrs.WidthMM = item.WidthMM
	}
	if item.HeightMM != nil {
		attrs.HeightMM = item.HeightMM
	}
	if item.DiameterMM != nil {
		attrs.DiameterMM = item.DiameterMM
	}
	if item.AngleDeg != nil {
		attrs.AngleDeg = item.AngleDeg
	}
	if item.Material != "" {
		attrs.Material = NormalizeMaterial(item.Material)
	}
	if item.Unit != "" {
		attrs.Unit = NormalizeUnit(item.Unit)
	}
	return attrs
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
