// Package similarity provides lexical text normalization and Jaccard similarity
// used to find near-duplicate questions and answer options.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// minTokenRunes is the shortest token kept after normalization
const minTokenRunes = 2

// TokenSet is the set of distinct normalized tokens of a text
type TokenSet map[string]struct{}

// Normalize lowercases text, replaces every punctuation rune with a space and
// splits the result into tokens, dropping single-character tokens.
// Blank input yields an empty, non-nil slice.
func Normalize(text string) []string {
	// cases.Caser carries state and is not safe for concurrent use
	lowered := cases.Lower(language.Und).String(text)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, lowered)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// NewTokenSet normalizes text and collapses duplicate tokens
func NewTokenSet(text string) TokenSet {
	tokens := Normalize(text)
	set := make(TokenSet, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// Tokenized pairs a text with its precomputed token set so repeated
// comparisons do not normalize the same text again.
type Tokenized struct {
	Text   string
	Tokens TokenSet
}

// Tokenize builds a Tokenized value for text
func Tokenize(text string) Tokenized {
	return Tokenized{Text: text, Tokens: NewTokenSet(text)}
}
