package canonical

import (
	"testing"

	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeFoldsEquivalentSymbols(t *testing.T) {
	assert.Equal(t, Normalize("Cable Tray 200×50"), Normalize("cable tray 200x50"))
	assert.Equal(t, Normalize("Tray 200*50"), Normalize("tray 200x50"))
	assert.Equal(t, Normalize("Rohr Ø110"), Normalize("rohr ø110"))
	assert.Equal(t, "bogen 90°", Normalize("Bogen  90º"))
}

func TestNormalizeStripsDiacritics(t *testing.T) {
	assert.Equal(t, "kabelrinne verzinkt", Normalize("Kabelrinne verzinkt"))
	assert.Equal(t, "echelle a cables", Normalize("Échelle à câbles"))
}

func TestKeyIsDeterministic(t *testing.T) {
	item := &itemdomain.Item{
		Description: "Cable Tray 200×50 galvanized",
		Unit:        "EA",
		AngleDeg:    floatPtr(90),
	}

	first := Key("26.24", item)
	for range 50 {
		assert.Equal(t, first, Key("26.24", item))
	}
}

func TestKeyContainsParsedAttributes(t *testing.T) {
	item := &itemdomain.Item{
		Description: "Cable Tray bend",
		CategoryHint: "Cable Tray",
		WidthMM:     floatPtr(200),
		HeightMM:    floatPtr(50),
		AngleDeg:    floatPtr(90),
		Unit:        "ea",
	}

	key := Key("26.24", item)
	assert.Contains(t, key, "w=200|h=50|a=90")
	assert.Contains(t, key, "u=ea")
	assert.Contains(t, key, "c=26.24")
}

func TestKeyParsesDimensionsFromDescription(t *testing.T) {
	structured := &itemdomain.Item{
		Description: "Cable tray straight",
		WidthMM:     floatPtr(300),
		HeightMM:    floatPtr(60),
		Unit:        "m",
	}
	textual := &itemdomain.Item{
		Description: "Cable tray straight 300×60 m",
	}

	assert.Equal(t, Key("26.24", structured), Key("26.24", textual))
}

func TestKeyOmitsAbsentFields(t *testing.T) {
	item := &itemdomain.Item{Description: "Fire damper"}
	key := Key("", item)

	assert.NotContains(t, key, "w=")
	assert.NotContains(t, key, "c=")
	assert.Equal(t, "f=fire|t=damper", key)
}

func TestParseMergesStructuredAndTextualAttributes(t *testing.T) {
	item := &itemdomain.Item{
		Description: "Duct bend 45° galvanized Ø250",
		Unit:        "pcs",
	}

	attrs := Parse(item)
	require.NotNil(t, attrs.AngleDeg)
	require.NotNil(t, attrs.DiameterMM)
	assert.Equal(t, 45.0, *attrs.AngleDeg)
	assert.Equal(t, 250.0, *attrs.DiameterMM)
	assert.Equal(t, "gvz", attrs.Material)
	assert.Equal(t, "ea", attrs.Unit)
}

func TestNormalizeUnitAliases(t *testing.T) {
	assert.Equal(t, "ea", NormalizeUnit("PCS"))
	assert.Equal(t, "ea", NormalizeUnit("Stk"))
	assert.Equal(t, "m", NormalizeUnit("mtr"))
	assert.Equal(t, "m2", NormalizeUnit("sqm"))
	assert.Equal(t, "bundle", NormalizeUnit("Bundle"))
}

func TestDecimalCommaParsing(t *testing.T) {
	item := &itemdomain.Item{Description: "Profile 12,5x30 steel"}
	attrs := Parse(item)
	require.NotNil(t, attrs.WidthMM)
	assert.Equal(t, 12.5, *attrs.WidthMM)
}

func TestTokens(t *testing.T) {
	tokens := Tokens("Cable Tray 200×50 Galvanized")
	assert.Equal(t, []string{"cable", "tray", "200x50", "galvanized"}, tokens)
}
