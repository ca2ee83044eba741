// Package feeds collects articles from the configured RSS and Atom sources.
package feeds

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/starford/newsbot/internal/models"
)

// DefaultGoogleNewsBaseURL is the search feed template; {query} is replaced by the escaped query.
const DefaultGoogleNewsBaseURL = "https://news.google.com/rss/search?q={query}&hl=en-CA&gl=CA&ceid=CA:en"

const googleNewsPrefix = "Google News - "

// Source is a directly configured feed.
type Source struct {
	Name     string `yaml:"name"`
	FeedURL  string `yaml:"feed_url"`
	Category string `yaml:"category"`
}

// Validate implements validation.Validatable.
func (s Source) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.FeedURL, validation.Required, is.URL),
	)
}

// Query is a Google News keyword search.
type Query struct {
	Query string `yaml:"query"`
	Label string `yaml:"label"`
}

// Validate implements validation.Validatable.
func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Query, validation.Required),
		validation.Field(&q.Label, validation.Required),
	)
}

// SourcesConfig mirrors config/sources.yaml.
type SourcesConfig struct {
	Government        []Source `yaml:"government"`
	ThinkTanks        []Source `yaml:"think_tanks"`
	Media             []Source `yaml:"media"`
	LinkedIn          []Source `yaml:"linkedin_rss"`
	GoogleNewsQueries []Query  `yaml:"google_news_queries"`
	GoogleNewsBaseURL string   `yaml:"google_news_base_url"`
}

// Validate implements validation.Validatable.
func (c SourcesConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Government),
		validation.Field(&c.ThinkTanks),
		validation.Field(&c.Media),
		validation.Field(&c.LinkedIn),
		validation.Field(&c.GoogleNewsQueries),
	)
}

// Feed is one resolved fetch target.
type Feed struct {
	Name     string
	URL      string
	Category models.SourceCategory
}

// Feeds expands the configuration into fetch targets in collection order:
// government, think tanks, media, Google News queries, then LinkedIn.
func (c *SourcesConfig) Feeds() []Feed {
	if c == nil {
		return nil
	}
	var out []Feed
	add := func(list []Source, fallback models.SourceCategory) {
		for _, s := range list {
			cat := fallback
			if s.Category != "" {
				cat = models.ParseCategory(s.Category)
			}
			out = append(out, Feed{Name: s.Name, URL: s.FeedURL, Category: cat})
		}
	}
	add(c.Government, models.CategoryGovernment)
	add(c.ThinkTanks, models.CategoryThinkTank)
	add(c.Media, models.CategoryGoogleNews)

	base := c.GoogleNewsBaseURL
	if base == "" {
		base = DefaultGoogleNewsBaseURL
	}
	for _, q := range c.GoogleNewsQueries {
		out = append(out, Feed{
			Name:     googleNewsPrefix + q.Label,
			URL:      strings.ReplaceAll(base, "{query}", url.QueryEscape(q.Query)),
			Category: models.CategoryGoogleNews,
		})
	}

	add(c.LinkedIn, models.CategoryLinkedIn)
	return out
}

// ParseSources decodes and validates a sources document.
func ParseSources(data []byte) (*SourcesConfig, error) {
	var cfg SourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("feeds: parse sources: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feeds: validate sources: %w", err)
	}
	return &cfg, nil
}

// LoadSources reads and parses the sources file at path.
func LoadSources(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feeds: read sources: %w", err)
	}
	return ParseSources(data)
}
