package canonical

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// symbolFolder maps visually distinct but semantically equal glyphs onto
// their canonical ASCII form before tokenizing. The multiplication sign and
// the letter x are the classic offender in dimension strings.
var symbolFolder = strings.NewReplacer(
	"×", "x",
	"✕", "x",
	"*", "x",
	"Ø", "ø",
	"⌀", "ø",
	"º", "°",
	"–", "-",
	"—", "-",
	" ", " ",
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize lower-cases and unicode-normalizes a description: combining
// marks stripped, equivalent symbols folded, whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = symbolFolder.Replace(s)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return s
}

var (
	dimensionsRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*x\s*(\d+(?:[.,]\d+)?)`)
	diameterRe   = regexp.MustCompile(`(?:ø|dn|dia\.?)\s*(\d+(?:[.,]\d+)?)`)
	angleRe      = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:°|deg\b|degree[s]?\b)`)
	unitTokenRe  = regexp.MustCompile(`\b(ea|pc|pcs|st|stk|m|mtr|lm|m2|sqm|m3|kg|set|roll|ls)\b`)
)

var materialAliases = map[string]string{
	"galvanized": "gvz",
	"galvanised": "gvz",
	"gvz":        "gvz",
	"sendzimir":  "gvz",
	"stainless":  "ss",
	"inox":       "ss",
	"ss":         "ss",
	"steel":      "steel",
	"aluminium":  "alu",
	"aluminum":   "alu",
	"alu":        "alu",
	"copper":     "cu",
	"cu":         "cu",
	"pvc":        "pvc",
	"plastic":    "pvc",
	"hdpe":       "hdpe",
	"pe":         "pe",
}

var unitAliases = map[string]string{
	"ea":   "ea",
	"pc":   "ea",
	"pcs":  "ea",
	"st":   "ea",
	"stk":  "ea",
	"set":  "set",
	"m":    "m",
	"mtr":  "m",
	"lm":   "m",
	"m2":   "m2",
	"sqm":  "m2",
	"m3":   "m3",
	"kg":   "kg",
	"roll": "roll",
	"ls":   "ls",
}

// NormalizeUnit maps unit spellings onto the canonical short form. Unknown
// units pass through lower-cased so mismatches stay visible instead of
// collapsing silently.
func NormalizeUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	if mapped, ok := unitAliases[u]; ok {
		return mapped
	}
	return u
}

// NormalizeMaterial maps material spellings onto the canonical short form.
func NormalizeMaterial(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if mapped, ok := materialAliases[m]; ok {
		return mapped
	}
	return slug.Make(m)
}

func parseAttributes(desc string) Attributes {
	var attrs Attributes

	if m := dimensionsRe.FindStringSubmatch(desc); m != nil {
		if w, err := parseDecimal(m[1]); err == nil {
			attrs.WidthMM = &w
		}
		if h, err := parseDecimal(m[2]); err == nil {
			attrs.HeightMM = &h
		}
	}
	if m := diameterRe.FindStringSubmatch(desc); m != nil {
		if d, err := parseDecimal(m[1]); err == nil {
			attrs.DiameterMM = &d
		}
	}
	if m := angleRe.FindStringSubmatch(desc); m != nil {
		if a, err := parseDecimal(m[1]); err == nil {
			attrs.AngleDeg = &a
		}
	}
	for _, word := range strings.Fields(desc) {
		if mapped, ok := materialAliases[strings.Trim(word, ".,;()")]; ok {
			attrs.Material = mapped
			break
		}
	}
	if m := unitTokenRe.FindStringSubmatch(desc); m != nil {
		attrs.Unit = NormalizeUnit(m[1])
	}

	return attrs
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// descriptorTokens returns the family and type tokens: the first two
// alphabetic tokens of the normalized description once dimension, angle and
// unit fragments are removed.
func descriptorTokens(desc string) (string, string) {
	cleaned := dimensionsRe.ReplaceAllString(desc, " ")
	cleaned = diameterRe.ReplaceAllString(cleaned, " ")
	cleaned = angleRe.ReplaceAllString(cleaned, " ")
	cleaned = unitTokenRe.ReplaceAllString(cleaned, " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		word = strings.Trim(word, ".,;:()-/")
		if word == "" || !isAlphabetic(word) {
			continue
		}
		if _, isMaterial := materialAliases[word]; isMaterial {
			continue
		}
		tokens = append(tokens, slug.Make(word))
		if len(tokens) == 2 {
			break
		}
	}

	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], tokens[1]
	}
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Tokens exposes the slugged word list of a normalized description for
// similarity scoring.
func Tokens(desc string) []string {
	normalized := Normalize(desc)
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, word := range fields {
		word = strings.Trim(word, ".,;:()-/")
		if word == "" {
			continue
		}
		tokens = append(tokens, slug.Make(word))
	}
	return tokens
}
