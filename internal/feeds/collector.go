package feeds

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/starford/newsbot/internal/models"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; NewsBot/1.0)"
	DefaultWorkers   = 8

	maxDescriptionLen = 500
)

// Options configures a Collector.
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Workers       int
	InsecureRetry bool
	// HTTPClient replaces the transport, mainly for tests.
	HTTPClient *http.Client
}

// Collector fetches every configured feed and returns recent, eligible articles.
type Collector struct {
	client   *resty.Client
	insecure *resty.Client
	workers  int
	sources  atomic.Pointer[SourcesConfig]
	logger   *slog.Logger
	now      func() time.Time
}

// NewCollector creates a Collector for the given sources.
func NewCollector(sources *SourcesConfig, opts Options, logger *slog.Logger) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		client:  newRestyClient(opts, false),
		workers: opts.Workers,
		logger:  logger.With("component", "feeds"),
		now:     time.Now,
	}
	if opts.InsecureRetry {
		c.insecure = newRestyClient(opts, true)
	}
	c.SetSources(sources)
	return c
}

func newRestyClient(opts Options, insecure bool) *resty.Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		if t, ok := hc.Transport.(*http.Transport); ok && insecure {
			hc.Transport = t.Clone()
		}
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if insecure {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in retry for misconfigured hosts
	}
	return rc
}

// SetSources swaps the source list used by subsequent collections.
func (c *Collector) SetSources(cfg *SourcesConfig) {
	if cfg == nil {
		cfg = &SourcesConfig{}
	}
	c.sources.Store(cfg)
}

// Sources returns the current source list.
func (c *Collector) Sources() *SourcesConfig {
	return c.sources.Load()
}

// CollectAll fetches every feed in parallel. A failing source contributes nothing and
// never aborts the others. Output follows source order, with cross-source duplicate
// titles collapsed.
func (c *Collector) CollectAll(ctx context.Context, maxAgeHours int) []models.Article {
	feeds := c.Sources().Feeds()
	cutoff := c.now().Add(-time.Duration(maxAgeHours) * time.Hour)

	c.logger.Info("collection started", slog.Int("feeds", len(feeds)), slog.Int("max_age_hours", maxAgeHours))

	results := make([][]models.Article, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, f := range feeds {
		g.Go(func() error {
			results[i] = c.collectFeed(gctx, f, cutoff)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.Article
	for _, r := range results {
		all = append(all, r...)
	}
	unique := collapseTitles(all)
	if removed := len(all) - len(unique); removed > 0 {
		c.logger.Info("removed cross-source duplicates", slog.Int("removed", removed))
	}
	c.logger.Info("collection finished", slog.Int("articles", len(unique)))
	return unique
}

func (c *Collector) collectFeed(ctx context.Context, f Feed, cutoff time.Time) []models.Article {
	body, err := c.fetch(ctx, f.URL)
	if err != nil {
		c.logger.Warn("feed fetch failed",
			slog.String("source", f.Name),
			slog.String("url", f.URL),
			slog.String("error", err.Error()))
		return nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("feed parse failed",
			slog.String("source", f.Name),
			slog.String("url", f.URL),
			slog.String("error", err.Error()))
		return nil
	}

	articles := extractArticles(parsed, f, cutoff)
	c.logger.Debug("feed collected",
		slog.String("source", f.Name),
		slog.Int("articles", len(articles)))
	return articles
}

func (c *Collector) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil && c.insecure != nil && isTLSVerifyError(err) {
		c.logger.Warn("TLS verification failed, retrying without verification", slog.String("url", url))
		resp, err = c.insecure.R().SetContext(ctx).Get(url)
	}
	if err != nil {
		return nil, fmt.Errorf("feeds: get: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("feeds: unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func isTLSVerifyError(err error) bool {
	var verr *tls.CertificateVerificationError
	return errors.As(err, &verr)
}

func extractArticles(feed *gofeed.Feed, f Feed, cutoff time.Time) []models.Article {
	var out []models.Article
	for _, item := range feed.Items {
		published := itemTime(item)
		if published != nil && published.Before(cutoff) {
			continue
		}
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		a := models.Article{
			Title:          strings.TrimSpace(item.Title),
			Link:           strings.TrimSpace(item.Link),
			Description:    truncateRunes(htmlToText(desc), maxDescriptionLen),
			PublishedAt:    published,
			SourceName:     f.Name,
			SourceCategory: f.Category,
		}
		if !a.Eligible() {
			continue
		}
		out = append(out, a)
	}
	return out
}

func itemTime(item *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case item.PublishedParsed != nil:
		t = item.PublishedParsed
	case item.UpdatedParsed != nil:
		t = item.UpdatedParsed
	default:
		return nil
	}
	utc := t.UTC()
	return &utc
}

// htmlToText keeps only the text nodes of an HTML fragment, separated by single spaces.
func htmlToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
