// Package tokenizer provides text tokenisation and normalization for the
// meaning engine. Normalization decomposes to NFKD, drops combining marks,
// and lowercases, so case and diacritic variants of a word always collide.
// Both the indexing path and the query path go through GetWords, keeping the
// two sides consistent.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	digitRuns = regexp.MustCompile(`(\d+)`)
	wordRuns  = regexp.MustCompile(`[\p{L}\p{N}_]+(?:'[\p{L}\p{N}_]+)?`)
)

// Tokenize returns all words and figures in the text, in order. Internal
// apostrophes stay joined to their word ("l'automne", "bob's"), while digit
// runs are split out from attached letters ("ss34" -> "ss", "34").
func Tokenize(text string) []string {
	spaced := digitRuns.ReplaceAllString(text, " $1 ")
	return wordRuns.FindAllString(spaced, -1)
}

// Normalize strips diacritical marks from all symbols in the string and
// converts it to lower case. Idempotent.
func Normalize(text string) string {
	stripped, _, err := transform.String(markStripper(), text)
	if err != nil {
		stripped = text
	}
	return strings.ToLower(stripped)
}

// GetWords tokenizes the normalized form of the text.
func GetWords(text string) []string {
	return Tokenize(Normalize(text))
}

func markStripper() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
}
