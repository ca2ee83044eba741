// Package relevance scores articles against layered keyword sets.
package relevance

import (
	"regexp"
	"strings"
)

// RE2's \b only knows ASCII word characters, so boundaries are spelled out with Unicode classes.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// KeywordSet is a compiled, de-duplicated list of lowercase keywords matched at word boundaries.
type KeywordSet struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeywordSet lowercases, trims and de-duplicates keywords, keeping first-seen order.
func NewKeywordSet(keywords []string) KeywordSet {
	seen := make(map[string]struct{}, len(keywords))
	ks := KeywordSet{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		ks.keywords = append(ks.keywords, kw)
		ks.patterns = append(ks.patterns, regexp.MustCompile(wordStart+regexp.QuoteMeta(kw)+wordEnd))
	}
	return ks
}

// Keywords returns the normalised keywords in config order.
func (ks KeywordSet) Keywords() []string {
	return ks.keywords
}

// Len returns the number of distinct keywords.
func (ks KeywordSet) Len() int {
	return len(ks.keywords)
}

// Match counts distinct keywords with at least one word-boundary occurrence in text.
// "defence" matches "defence," and "defence." but not "defenceless".
func (ks KeywordSet) Match(text string) (int, []string) {
	if text == "" || len(ks.patterns) == 0 {
		return 0, nil
	}
	lower := strings.ToLower(text)
	var matched []string
	for i, re := range ks.patterns {
		if re.MatchString(lower) {
			matched = append(matched, ks.keywords[i])
		}
	}
	return len(matched), matched
}

// ContainsAny reports the first keyword found as a plain substring of text, without
// word-boundary restriction.
func (ks KeywordSet) ContainsAny(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range ks.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// CountMatches is a one-shot form of NewKeywordSet(keywords).Match(text).
func CountMatches(text string, keywords []string) (int, []string) {
	return NewKeywordSet(keywords).Match(text)
}
