package relevance

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Scoring holds the weights and thresholds of the relevance score.
type Scoring struct {
	TitleMultiplier       float64 `yaml:"title_multiplier"`
	DescriptionMultiplier float64 `yaml:"description_multiplier"`
	MinScoreTrusted       float64 `yaml:"min_score_trusted"`
	MinScoreGeneral       float64 `yaml:"min_score_general"`
}

// Validate validates the scoring parameters.
func (s *Scoring) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.TitleMultiplier, validation.Min(0.0)),
		validation.Field(&s.DescriptionMultiplier, validation.Min(0.0)),
		validation.Field(&s.MinScoreTrusted, validation.Min(0.0)),
		validation.Field(&s.MinScoreGeneral, validation.Min(0.0)),
	)
}

// DefaultScoring returns the stock weights: title 3, description 1, thresholds 1 (trusted) and 3 (general).
func DefaultScoring() Scoring {
	return Scoring{
		TitleMultiplier:       3,
		DescriptionMultiplier: 1,
		MinScoreTrusted:       1,
		MinScoreGeneral:       3,
	}
}

// keywordsFile mirrors config/keywords.yaml.
type keywordsFile struct {
	Primary           []string `yaml:"primary_keywords"`
	Canada            []string `yaml:"canada_keywords"`
	Context           []string `yaml:"context_keywords"`
	Negative          []string `yaml:"negative_keywords"`
	TrustedCategories []string `yaml:"trusted_categories"`
	Scoring           Scoring  `yaml:"scoring"`
}

// KeywordConfig is the read-only keyword configuration for one run.
type KeywordConfig struct {
	Primary  KeywordSet
	Canada   KeywordSet
	Context  KeywordSet
	Negative KeywordSet
	Trusted  map[string]struct{}
	Scoring  Scoring
}

// KeywordLists is the plain-data form used to build a KeywordConfig in code.
type KeywordLists struct {
	Primary           []string
	Canada            []string
	Context           []string
	Negative          []string
	TrustedCategories []string
}

// NewKeywordConfig compiles keyword lists with the given scoring parameters.
func NewKeywordConfig(lists KeywordLists, scoring Scoring) *KeywordConfig {
	trusted := make(map[string]struct{}, len(lists.TrustedCategories))
	for _, c := range lists.TrustedCategories {
		trusted[c] = struct{}{}
	}
	return &KeywordConfig{
		Primary:  NewKeywordSet(lists.Primary),
		Canada:   NewKeywordSet(lists.Canada),
		Context:  NewKeywordSet(lists.Context),
		Negative: NewKeywordSet(lists.Negative),
		Trusted:  trusted,
		Scoring:  scoring,
	}
}

// EmptyKeywordConfig has no keywords, so nothing passes.
func EmptyKeywordConfig() *KeywordConfig {
	return NewKeywordConfig(KeywordLists{}, DefaultScoring())
}

// IsTrusted reports whether category is exempt from the regional and context gates.
func (c *KeywordConfig) IsTrusted(category string) bool {
	_, ok := c.Trusted[category]
	return ok
}

// LoadKeywords reads a keywords YAML file. Missing scoring keys keep their defaults.
func LoadKeywords(path string) (*KeywordConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relevance: read keywords %s: %w", path, err)
	}
	return ParseKeywords(data)
}

// ParseKeywords decodes keyword YAML.
func ParseKeywords(data []byte) (*KeywordConfig, error) {
	// Pre-filled so absent scoring keys keep their defaults.
	file := keywordsFile{Scoring: DefaultScoring()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("relevance: parse keywords: %w", err)
	}

	scoring := file.Scoring
	if err := scoring.Validate(); err != nil {
		return nil, fmt.Errorf("relevance: invalid scoring: %w", err)
	}

	return NewKeywordConfig(KeywordLists{
		Primary:           file.Primary,
		Canada:            file.Canada,
		Context:           file.Context,
		Negative:          file.Negative,
		TrustedCategories: file.TrustedCategories,
	}, scoring), nil
}
