package relevance

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/newsbot/internal/models"
)

// Reason classifies the outcome of scoring one article.
type Reason string

// Scoring outcomes.
const (
	ReasonExcludedNegative Reason = "EXCLUDED_NEGATIVE"
	ReasonNoPrimaryMatch   Reason = "NO_PRIMARY_MATCH"
	ReasonNotRegional      Reason = "NOT_REGIONAL"
	ReasonNoContext        Reason = "NO_CONTEXT"
	ReasonBelowThreshold   Reason = "BELOW_THRESHOLD"
	ReasonPassed           Reason = "PASSED"
)

// Result is the scoring verdict for one article.
type Result struct {
	Score          float64
	Passed         bool
	MatchedPrimary []string
	MatchedContext []string
	Reason         Reason
	// Detail is a human-readable explanation for logs.
	Detail string
}

// Scorer applies a KeywordConfig to articles.
type Scorer struct {
	cfg    *KeywordConfig
	logger *slog.Logger
}

// NewScorer builds a scorer. A nil config scores every article as NO_PRIMARY_MATCH.
func NewScorer(cfg *KeywordConfig, logger *slog.Logger) *Scorer {
	if cfg == nil {
		cfg = EmptyKeywordConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

// Score runs the layered keyword checks. Each failing step short-circuits:
//
//  1. any negative keyword (plain substring) excludes the article with score 0
//  2. primary keywords weighted by title/description multipliers must score above 0
//  3. non-trusted sources must also mention a regional keyword and a context keyword;
//     each context keyword beyond the first adds 1
//  4. the score must reach the trusted or general threshold
func (s *Scorer) Score(a models.Article) Result {
	cfg := s.cfg
	combined := a.Title + " " + a.Description

	if kw, found := cfg.Negative.ContainsAny(combined); found {
		return Result{
			Reason: ReasonExcludedNegative,
			Detail: fmt.Sprintf("Excluded by negative keyword %q", kw),
		}
	}

	titleCount, titleMatched := cfg.Primary.Match(a.Title)
	descCount, descMatched := cfg.Primary.Match(a.Description)
	score := float64(titleCount)*cfg.Scoring.TitleMultiplier + float64(descCount)*cfg.Scoring.DescriptionMultiplier
	if score == 0 {
		return Result{
			Reason: ReasonNoPrimaryMatch,
			Detail: "No primary keyword match",
		}
	}
	primary := union(titleMatched, descMatched)

	trusted := cfg.IsTrusted(string(a.SourceCategory))
	minScore := cfg.Scoring.MinScoreGeneral
	tier := "general"
	if trusted {
		minScore = cfg.Scoring.MinScoreTrusted
		tier = "trusted"
	}

	var contextMatched []string
	if !trusted {
		if n, _ := cfg.Canada.Match(combined); n == 0 {
			return Result{
				Score:          score,
				MatchedPrimary: primary,
				Reason:         ReasonNotRegional,
				Detail:         "Not about Canada",
			}
		}

		var n int
		n, contextMatched = cfg.Context.Match(combined)
		if n == 0 {
			return Result{
				Score:          score,
				MatchedPrimary: primary,
				Reason:         ReasonNoContext,
				Detail:         "Primary match but no context validation",
			}
		}
		score += float64(n - 1)
	}

	res := Result{
		Score:          score,
		Passed:         score >= minScore,
		MatchedPrimary: primary,
		MatchedContext: contextMatched,
	}
	if res.Passed {
		res.Reason = ReasonPassed
		res.Detail = fmt.Sprintf("Score %g >= %g (%s source)", score, minScore, tier)
	} else {
		res.Reason = ReasonBelowThreshold
		res.Detail = fmt.Sprintf("Score %g < %g (%s source)", score, minScore, tier)
	}
	return res
}

// Filter scores every article and returns those that passed, ordered by score
// descending, then newest first. Articles without a publish time sort after dated
// ones; remaining ties keep collection order.
func (s *Scorer) Filter(articles []models.Article) []models.ScoredArticle {
	passed := make([]models.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		res := s.Score(a)
		if !res.Passed {
			s.logger.Debug("relevance: skip",
				slog.String("title", truncate(a.Title, 60)),
				slog.String("reason", string(res.Reason)),
				slog.String("detail", res.Detail))
			continue
		}
		s.logger.Debug("relevance: pass",
			slog.String("title", truncate(a.Title, 60)),
			slog.Float64("score", res.Score),
			slog.String("detail", res.Detail))
		passed = append(passed, models.ScoredArticle{
			Article:         a,
			Score:           res.Score,
			MatchedKeywords: res.MatchedPrimary,
		})
	}

	SortScored(passed)

	s.logger.Info("relevance: filter complete",
		slog.Int("total", len(articles)),
		slog.Int("passed", len(passed)),
		slog.Int("filtered", len(articles)-len(passed)))
	return passed
}

// SortScored orders articles by score descending, then publish time descending
// (undated last), keeping input order for full ties.
func SortScored(items []models.ScoredArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.Article.PublishedAt == nil:
			return false
		case b.Article.PublishedAt == nil:
			return true
		default:
			return a.Article.PublishedAt.After(*b.Article.PublishedAt)
		}
	})
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, kw := range list {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
