package notify

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/newsbot/internal/models"
)

const (
	// MaxPerCategory is the number of articles a single card shows per category.
	MaxPerCategory = 30
	maxTitleLen    = 150
	googleNewsName = "Google News - "
	cardTitle      = "Defence & Sovereignty News"
	noNewsText     = "No new relevant articles found today. All sources checked."
	cardSchema     = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardVersion    = "1.4"
	cardMediaType  = "application/vnd.microsoft.card.adaptive"
)

var categoryOrder = []models.SourceCategory{
	models.CategoryGovernment,
	models.CategoryThinkTank,
	models.CategoryGoogleNews,
	models.CategoryLinkedIn,
}

var categoryLabels = map[models.SourceCategory]string{
	models.CategoryGovernment: "Government",
	models.CategoryThinkTank:  "Research & Analysis",
	models.CategoryGoogleNews: "News & Media",
	models.CategoryLinkedIn:   "LinkedIn",
}

var categoryColors = map[models.SourceCategory]string{
	models.CategoryGovernment: "Light",
	models.CategoryThinkTank:  "Good",
	models.CategoryGoogleNews: "Accent",
	models.CategoryLinkedIn:   "Warning",
}

// Message is the Teams Workflows webhook payload.
type Message struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment wraps one Adaptive Card.
type Attachment struct {
	ContentType string  `json:"contentType"`
	ContentURL  *string `json:"contentUrl"`
	Content     Card    `json:"content"`
}

// Card is an Adaptive Card document.
type Card struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
}

// Element covers the subset of Adaptive Card elements the digest uses:
// Container, ColumnSet, Column and TextBlock.
type Element struct {
	Type                     string    `json:"type"`
	Text                     string    `json:"text,omitempty"`
	Style                    string    `json:"style,omitempty"`
	Bleed                    bool      `json:"bleed,omitempty"`
	Weight                   string    `json:"weight,omitempty"`
	Size                     string    `json:"size,omitempty"`
	Color                    string    `json:"color,omitempty"`
	Spacing                  string    `json:"spacing,omitempty"`
	Width                    string    `json:"width,omitempty"`
	VerticalContentAlignment string    `json:"verticalContentAlignment,omitempty"`
	Wrap                     bool      `json:"wrap,omitempty"`
	IsSubtle                 bool      `json:"isSubtle,omitempty"`
	Separator                bool      `json:"separator,omitempty"`
	Items                    []Element `json:"items,omitempty"`
	Columns                  []Element `json:"columns,omitempty"`
}

type group struct {
	category models.SourceCategory
	articles []models.ScoredArticle
}

func groupKey(it models.ScoredArticle) models.SourceCategory {
	if it.Article.SourceCategory == "" {
		return models.CategoryGoogleNews
	}
	return it.Article.SourceCategory
}

// CapPerCategory keeps at most MaxPerCategory articles of each category, in input
// order. It is exactly the set a digest card can show.
func CapPerCategory(items []models.ScoredArticle) []models.ScoredArticle {
	counts := make(map[models.SourceCategory]int)
	out := make([]models.ScoredArticle, 0, len(items))
	for _, it := range items {
		cat := groupKey(it)
		if counts[cat] >= MaxPerCategory {
			continue
		}
		counts[cat]++
		out = append(out, it)
	}
	return out
}

// groupByCategory buckets articles in display order: the known categories first,
// then any others in order of first appearance. Empty groups are omitted.
func groupByCategory(items []models.ScoredArticle) []group {
	buckets := make(map[models.SourceCategory][]models.ScoredArticle)
	var extra []models.SourceCategory
	for _, it := range items {
		cat := groupKey(it)
		if _, ok := buckets[cat]; !ok && categoryLabels[cat] == "" {
			extra = append(extra, cat)
		}
		buckets[cat] = append(buckets[cat], it)
	}

	var out []group
	for _, cat := range append(append([]models.SourceCategory{}, categoryOrder...), extra...) {
		if list := buckets[cat]; len(list) > 0 {
			out = append(out, group{category: cat, articles: list})
		}
	}
	return out
}

func categoryLabel(cat models.SourceCategory) string {
	if l, ok := categoryLabels[cat]; ok {
		return l
	}
	words := strings.Fields(strings.ReplaceAll(string(cat), "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func categoryColor(cat models.SourceCategory) string {
	if c, ok := categoryColors[cat]; ok {
		return c
	}
	return "Default"
}

func displaySource(name string) string {
	return strings.TrimPrefix(name, googleNewsName)
}

func displayTitle(title string, limit int) string {
	r := []rune(title)
	if len(r) <= limit {
		return title
	}
	return string(r[:limit]) + "..."
}

func header(dateStr string, count int, withCount bool) Element {
	sub := dateStr
	if withCount {
		sub = fmt.Sprintf("%s  •  %d articles", dateStr, count)
	}
	return Element{
		Type:  "Container",
		Style: "emphasis",
		Bleed: true,
		Items: []Element{
			{Type: "TextBlock", Text: cardTitle, Weight: "Bolder", Size: "Large", Wrap: true, Color: "Light"},
			{Type: "TextBlock", Text: sub, Size: "Small", IsSubtle: true, Spacing: "None", Wrap: true},
		},
	}
}

func articleBlock(it models.ScoredArticle) Element {
	a := it.Article
	subtitle := displaySource(a.SourceName)
	if a.PublishedAt != nil {
		subtitle += " · " + a.PublishedString()
	}
	return Element{
		Type:    "Container",
		Spacing: "Medium",
		Items: []Element{{
			Type: "ColumnSet",
			Columns: []Element{
				{
					Type:                     "Column",
					Width:                    "auto",
					Spacing:                  "None",
					VerticalContentAlignment: "Top",
					Items: []Element{
						{Type: "TextBlock", Text: "▪", Color: "Accent", Spacing: "None", Size: "Small"},
					},
				},
				{
					Type:    "Column",
					Width:   "stretch",
					Spacing: "Small",
					Items: []Element{
						{
							Type:    "TextBlock",
							Text:    fmt.Sprintf("[%s](%s)", displayTitle(a.Title, maxTitleLen), a.Link),
							Wrap:    true,
							Spacing: "None",
							Weight:  "Bolder",
							Size:    "Default",
						},
						{Type: "TextBlock", Text: subtitle, IsSubtle: true, Spacing: "None", Size: "Small", Wrap: true},
					},
				},
			},
		}},
	}
}

// BuildMessage renders the digest card. An empty list produces the no-news card.
func BuildMessage(items []models.ScoredArticle, dateStr string) Message {
	var body []Element
	if len(items) == 0 {
		body = []Element{
			header(dateStr, 0, false),
			{Type: "TextBlock", Text: noNewsText, Wrap: true, Spacing: "Large", IsSubtle: true},
		}
	} else {
		body = append(body, header(dateStr, len(items), true))
		for _, g := range groupByCategory(items) {
			body = append(body, Element{
				Type:      "TextBlock",
				Text:      categoryLabel(g.category),
				Weight:    "Bolder",
				Size:      "Medium",
				Spacing:   "Large",
				Color:     categoryColor(g.category),
				Wrap:      true,
				Separator: true,
			})
			for _, it := range g.articles[:min(len(g.articles), MaxPerCategory)] {
				body = append(body, articleBlock(it))
			}
		}
	}

	return Message{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: cardMediaType,
			Content: Card{
				Schema:  cardSchema,
				Type:    "AdaptiveCard",
				Version: cardVersion,
				Body:    body,
			},
		}},
	}
}
