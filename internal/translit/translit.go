// Package translit holds the pure text functions used to deduplicate terms
// and to find cross-references between them: a Greek to Latin
// transliteration key and a word tokenizer.
package translit

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// greekToLatin maps lower-case Greek letters, accented forms included, onto
// Latin. Letters outside the table pass through unchanged and are then
// subject to the alphanumeric filter.
var greekToLatin = map[rune]string{
	'α': "a", 'ά': "a",
	'β': "v",
	'γ': "g",
	'δ': "d",
	'ε': "e", 'έ': "e",
	'ζ': "z",
	'η': "i", 'ή': "i",
	'θ': "th",
	'ι': "i", 'ί': "i", 'ϊ': "i", 'ΐ': "i",
	'κ': "k",
	'λ': "l",
	'μ': "m",
	'ν': "n",
	'ξ': "x",
	'ο': "o", 'ό': "o",
	'π': "p",
	'ρ': "r",
	'σ': "s", 'ς': "s",
	'τ': "t",
	'υ': "y", 'ύ': "y", 'ϋ': "y", 'ΰ': "y",
	'φ': "f",
	'χ': "ch",
	'ψ': "ps",
	'ω': "o", 'ώ': "o",
}

var lowerGreek = cases.Lower(language.Greek)

// Key returns the transliteration key of text: lower-cased, each Greek
// letter substituted through the table, everything but [a-z0-9] dropped.
// Two texts with the same key denote the same term.
func Key(text string) string {
	lowered := lowerGreek.String(norm.NFC.String(text))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if latin, ok := greekToLatin[r]; ok {
			b.WriteString(latin)
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MinWordLength is the shortest token ExtractWords keeps.
const MinWordLength = 3

// ExtractWords lower-cases text and splits it on whitespace, punctuation
// and symbols, so "γαμάτο/κουλ" yields both words. Tokens shorter than
// MinWordLength runes are discarded. Order and duplicates are preserved.
func ExtractWords(text string) []string {
	lowered := lowerGreek.String(norm.NFC.String(text))
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, lowered)

	fields := strings.Fields(stripped)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) < MinWordLength {
			continue
		}
		words = append(words, field)
	}
	return words
}

var (
	dialogueTurn  = regexp.MustCompile(`(^|\s)-\s`)
	dialogueSplit = regexp.MustCompile(`\s+-\s`)
)

// FormatDialogue puts every dialogue turn on its own line. Text counts as
// dialogue when it holds at least two "- " turns (at the start or after
// whitespace); anything else is returned unchanged.
func FormatDialogue(text string) string {
	if len(dialogueTurn.FindAllStringIndex(text, -1)) < 2 {
		return text
	}
	return dialogueSplit.ReplaceAllString(strings.TrimSpace(text), "\n- ")
}
