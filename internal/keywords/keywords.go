// Package keywords extracts normalized significant tokens for lexical recall.
package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinLength is the shortest token kept.
const MinLength = 3

var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "again": true, "all": true, "also": true,
	"am": true, "an": true, "and": true, "any": true, "are": true, "as": true,
	"at": true, "be": true, "been": true, "before": true, "being": true, "but": true,
	"by": true, "can": true, "could": true, "did": true, "does": true, "doing": true,
	"for": true, "from": true, "had": true, "has": true, "have": true, "having": true,
	"her": true, "here": true, "hers": true, "him": true, "his": true, "how": true,
	"into": true, "its": true, "just": true, "more": true, "most": true,
	"not": true, "now": true, "off": true, "once": true, "only": true, "other": true,
	"our": true, "ours": true, "out": true, "over": true, "own": true, "same": true,
	"she": true, "should": true, "some": true, "such": true, "than": true, "that": true,
	"the": true, "their": true, "theirs": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true, "too": true,
	"under": true, "until": true, "very": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true, "whom": true,
	"why": true, "will": true, "with": true, "would": true, "you": true, "your": true,
	"yours": true, "yourself": true, "myself": true, "himself": true, "herself": true,
	"itself": true, "themselves": true, "ourselves": true, "each": true, "few": true,
	"both": true, "between": true, "during": true, "above": true, "below": true,
	"down": true, "further": true, "nor": true, "don": true, "didn": true, "doesn": true,
	"isn": true, "wasn": true, "aren": true, "weren": true, "won": true, "cannot": true,
}

// Normalize applies NFKC and case folding. A Caser is stateful, so each call
// builds its own.
func Normalize(text string) string {
	return cases.Fold().String(norm.NFKC.String(text))
}

// Tokens splits normalized text on anything that is not a letter or digit.
func Tokens(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Extract returns the distinct significant tokens of text in order of first
// appearance. Stop-words and tokens shorter than MinLength are dropped.
func Extract(text string) []string {
	toks := lo.Filter(Tokens(text), func(tok string, _ int) bool {
		return utf8.RuneCountInString(tok) >= MinLength && !stopWords[tok]
	})
	return lo.Uniq(toks)
}

// IsStopWord reports whether tok is dropped by Extract.
func IsStopWord(tok string) bool { return stopWords[Normalize(tok)] }

// Overlaps reports whether any keyword occurs in content, either as a
// substring of the normalized content or as one of its tokens.
func Overlaps(keywords []string, content string) bool {
	if len(keywords) == 0 {
		return false
	}
	normalized := Normalize(content)
	tokens := lo.SliceToMap(Tokens(content), func(t string) (string, struct{}) { return t, struct{}{} })
	for _, kw := range keywords {
		if _, ok := tokens[kw]; ok {
			return true
		}
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
