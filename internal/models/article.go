// Package models holds the value types shared across the collection, scoring and delivery stages.
package models

import "time"

// SourceCategory classifies where an article came from.
type SourceCategory string

// Known source categories.
const (
	CategoryGovernment SourceCategory = "government"
	CategoryThinkTank  SourceCategory = "think_tank"
	CategoryGoogleNews SourceCategory = "google_news"
	CategoryLinkedIn   SourceCategory = "linkedin"
	CategoryOther      SourceCategory = "other"
)

// ParseCategory maps a config string to a SourceCategory, falling back to CategoryOther.
func ParseCategory(s string) SourceCategory {
	switch c := SourceCategory(s); c {
	case CategoryGovernment, CategoryThinkTank, CategoryGoogleNews, CategoryLinkedIn:
		return c
	default:
		return CategoryOther
	}
}

// Article is a single collected news item. It is not modified after collection.
type Article struct {
	Title          string
	Link           string
	Description    string
	PublishedAt    *time.Time
	SourceName     string
	SourceCategory SourceCategory
}

// Eligible reports whether the article has the title and link required downstream.
func (a Article) Eligible() bool {
	return a.Title != "" && a.Link != ""
}

// PublishedString is the human-readable publish date used in digests.
func (a Article) PublishedString() string {
	if a.PublishedAt == nil {
		return "Unknown date"
	}
	return a.PublishedAt.Format("Jan 02, 2006")
}

// ScoredArticle pairs an article with the relevance annotation produced by the scorer.
type ScoredArticle struct {
	Article         Article
	Score           float64
	MatchedKeywords []string
}
