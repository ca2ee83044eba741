package feeds

import (
	"strings"
	"unicode"

	"github.com/starford/newsbot/internal/models"
)

const (
	titlePrefixLen = 60
	minTitleLen    = 20
)

// normalizeTitle lowercases, drops punctuation and collapses whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseTitles keeps the first article of every group whose normalised titles are
// longer than minTitleLen and share the first titlePrefixLen characters.
func collapseTitles(articles []models.Article) []models.Article {
	prefixes := make(map[string]struct{})
	unique := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		norm := []rune(normalizeTitle(a.Title))
		if len(norm) <= minTitleLen {
			unique = append(unique, a)
			continue
		}
		key := string(norm[:min(len(norm), titlePrefixLen)])
		if _, dup := prefixes[key]; dup {
			continue
		}
		prefixes[key] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}
