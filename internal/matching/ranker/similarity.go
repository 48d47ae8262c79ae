package ranker

import (
	"strings"

	"github.com/buildquote/matchline/internal/canonical"
)

// Similarity scores two descriptions in [0,1]. It blends a token-set Dice
// coefficient with a character-bigram Dice coefficient: the token term is
// robust to word order, the bigram term to compound words and abbreviations.
func Similarity(a, b string) float64 {
	tokensA, tokensB := canonical.Tokens(a), canonical.Tokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	tokenScore := diceTokens(tokensA, tokensB)
	bigramScore := diceBigrams(strings.Join(tokensA, " "), strings.Join(tokensB, " "))

	return 0.6*tokenScore + 0.4*bigramScore
}

func diceTokens(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	common := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			common++
		}
	}
	return 2 * float64(common) / float64(len(setA)+len(setB))
}

func diceBigrams(a, b string) float64 {
	bigramsA, bigramsB := bigrams(a), bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, g := range bigramsA {
		counts[g]++
	}

	common := 0
	for _, g := range bigramsB {
		if counts[g] > 0 {
			counts[g]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(bigramsA)+len(bigramsB))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}
