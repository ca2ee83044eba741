package relevance

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/newsbot/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scenarioConfig() *KeywordConfig {
	return NewKeywordConfig(KeywordLists{
		Primary:           []string{"defence", "sovereignty"},
		Canada:            []string{"canada", "ottawa"},
		Context:           []string{"funding", "spending", "military", "procurement"},
		Negative:          []string{"championship"},
		TrustedCategories: []string{"government", "think_tank"},
	}, DefaultScoring())
}

func TestScore_TrustedPrimaryOnly(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "New defence update",
		Description:    "nothing else here",
		SourceCategory: models.CategoryGovernment,
	})
	assert.True(t, res.Passed)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, ReasonPassed, res.Reason)
	assert.Empty(t, res.MatchedContext)
}

func TestScore_NonTrustedNotRegional(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "European defence spending rises",
		Description:    "military budgets grow across the EU",
		SourceCategory: models.CategoryGoogleNews,
	})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonNotRegional, res.Reason)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, []string{"defence"}, res.MatchedPrimary)
}

func TestScore_NonTrustedNoContext(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "Canada talks sovereignty",
		Description:    "a panel discussion",
		SourceCategory: models.CategoryGoogleNews,
	})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonNoContext, res.Reason)
	assert.Equal(t, 3.0, res.Score)
}

func TestScore_ContextBonus(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "Canada defence plan",
		Description:    "new funding for military procurement",
		SourceCategory: models.CategoryGoogleNews,
	})
	require.True(t, res.Passed)
	// primary 3 (title) + bonus 3 context matches - 1.
	assert.Equal(t, 5.0, res.Score)
	assert.ElementsMatch(t, []string{"funding", "military", "procurement"}, res.MatchedContext)
}

func TestScore_NonTrustedBelowThreshold(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "Ottawa news roundup",
		Description:    "defence funding mentioned once",
		SourceCategory: models.CategoryGoogleNews,
	})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonBelowThreshold, res.Reason)
	assert.Equal(t, 1.0, res.Score)
}

func TestScore_NoPrimary(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{Title: "Weather in Ottawa", SourceCategory: models.CategoryGovernment})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonNoPrimaryMatch, res.Reason)
	assert.Zero(t, res.Score)
}

func TestScore_NegativeIsSubstringAndWins(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	res := s.Score(models.Article{
		Title:          "Canada defence funding",
		Description:    "championships aside",
		SourceCategory: models.CategoryGovernment,
	})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonExcludedNegative, res.Reason)
	assert.Zero(t, res.Score)
}

func TestScore_EmptyConfigPassesNothing(t *testing.T) {
	s := NewScorer(nil, quietLogger())
	res := s.Score(models.Article{Title: "Canada defence", SourceCategory: models.CategoryGovernment})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonNoPrimaryMatch, res.Reason)
}

func TestFilter_EndToEndScenario(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	articles := []models.Article{
		{
			Title:          "Canada boosts Arctic defence spending",
			Description:    "Ottawa announced new funding for northern sovereignty.",
			Link:           "https://example.gc.ca/1",
			SourceCategory: models.CategoryGovernment,
		},
		{
			Title:          "Local team wins defence championship",
			Description:    "sports recap",
			Link:           "https://news.example.com/2",
			SourceCategory: models.CategoryGoogleNews,
		},
	}

	assert.Equal(t, ReasonExcludedNegative, s.Score(articles[1]).Reason)

	out := s.Filter(articles)
	require.Len(t, out, 1)
	assert.Equal(t, "https://example.gc.ca/1", out[0].Article.Link)
	// Title hit (3) plus "sovereignty" in the description (1).
	assert.Equal(t, 4.0, out[0].Score)
	assert.ElementsMatch(t, []string{"defence", "sovereignty"}, out[0].MatchedKeywords)
}

func TestFilter_EndToEndScenarioTitleWeightOnly(t *testing.T) {
	scoring := DefaultScoring()
	scoring.DescriptionMultiplier = 0
	cfg := NewKeywordConfig(KeywordLists{
		Primary:           []string{"defence", "sovereignty"},
		Canada:            []string{"canada", "ottawa"},
		Context:           []string{"funding", "spending"},
		Negative:          []string{"championship"},
		TrustedCategories: []string{"government"},
	}, scoring)
	s := NewScorer(cfg, quietLogger())

	res := s.Score(models.Article{
		Title:          "Canada boosts Arctic defence spending",
		Description:    "Ottawa announced new funding for northern sovereignty.",
		SourceCategory: models.CategoryGovernment,
	})
	assert.True(t, res.Passed)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, ReasonPassed, res.Reason)
}

func TestFilter_OrderByScoreThenNewest(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	items := []models.ScoredArticle{
		{Article: models.Article{Title: "undated"}, Score: 5},
		{Article: models.Article{Title: "older", PublishedAt: &t1}, Score: 5},
		{Article: models.Article{Title: "low", PublishedAt: &t2}, Score: 3},
		{Article: models.Article{Title: "newer", PublishedAt: &t2}, Score: 5},
		{Article: models.Article{Title: "undated-2"}, Score: 5},
	}
	SortScored(items)

	var titles []string
	for _, it := range items {
		titles = append(titles, it.Article.Title)
	}
	assert.Equal(t, []string{"newer", "older", "undated", "undated-2", "low"}, titles)
}

func TestFilter_AnnotatesSurvivors(t *testing.T) {
	s := NewScorer(scenarioConfig(), quietLogger())
	out := s.Filter([]models.Article{
		{Title: "Think tank on sovereignty", SourceCategory: models.CategoryThinkTank},
		{Title: "Unrelated", SourceCategory: models.CategoryThinkTank},
	})
	require.Len(t, out, 1)
	assert.Equal(t, 3.0, out[0].Score)
	assert.Equal(t, []string{"sovereignty"}, out[0].MatchedKeywords)
}

func TestScore_RegionalKeywordInsideAccentedWord(t *testing.T) {
	cfg := NewKeywordConfig(KeywordLists{
		Primary: []string{"defence"},
		Canada:  []string{"caf"},
		Context: []string{"funding"},
	}, DefaultScoring())
	res := NewScorer(cfg, quietLogger()).Score(models.Article{
		Title:          "Defence funding talk at a Paris café",
		SourceCategory: models.CategoryGoogleNews,
	})
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonNotRegional, res.Reason)
}
