// Package notify delivers the daily digest to a Microsoft Teams channel.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starford/newsbot/internal/models"
)

// DefaultTimeout bounds a webhook POST.
const DefaultTimeout = 30 * time.Second

const errorSnippetLen = 300

// Options configures a Teams notifier.
type Options struct {
	WebhookURL string
	Timeout    time.Duration
	// Preview receives the plain-text digest in preview mode. Defaults to stdout.
	Preview io.Writer
	// HTTPClient replaces the transport, mainly for tests.
	HTTPClient *http.Client
}

// Teams posts Adaptive Card digests to a Teams Workflows webhook.
type Teams struct {
	client  *resty.Client
	url     string
	preview io.Writer
	logger  *slog.Logger
	now     func() time.Time
}

// NewTeams creates a Teams notifier.
func NewTeams(opts Options, logger *slog.Logger) *Teams {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Preview == nil {
		opts.Preview = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(opts.Timeout).SetHeader("Content-Type", "application/json")

	return &Teams{
		client:  rc,
		url:     opts.WebhookURL,
		preview: opts.Preview,
		logger:  logger.With("component", "notify"),
		now:     time.Now,
	}
}

// SendDigest delivers the digest. Preview mode writes a text rendering and never
// touches the network. It reports success; failures are logged, not returned.
func (t *Teams) SendDigest(ctx context.Context, items []models.ScoredArticle, preview bool) bool {
	dateStr := t.now().UTC().Format("Monday, January 02, 2006")

	if preview {
		t.logger.Info("preview mode, digest not sent", slog.Int("articles", len(items)))
		if err := RenderPreview(t.preview, items, dateStr); err != nil {
			t.logger.Warn("preview render failed", slog.String("error", err.Error()))
		}
		return true
	}

	if t.url == "" {
		t.logger.Error("webhook URL not configured, digest not sent")
		return false
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(BuildMessage(items, dateStr)).
		Post(t.url)
	if err != nil {
		t.logger.Error("webhook request failed", slog.String("error", err.Error()))
		return false
	}
	if !resp.IsSuccess() {
		t.logger.Error("webhook rejected digest",
			slog.Int("status", resp.StatusCode()),
			slog.String("body", snippet(resp.String(), errorSnippetLen)))
		return false
	}

	t.logger.Info("digest sent",
		slog.Int("articles", len(items)),
		slog.Int("status", resp.StatusCode()))
	return true
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// RenderPreview writes a plain-text version of the digest.
func RenderPreview(w io.Writer, items []models.ScoredArticle, dateStr string) error {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n  %s\n  %s  •  %d articles\n%s\n", rule, cardTitle, dateStr, len(items), rule)

	if len(items) == 0 {
		b.WriteString("\n  No new relevant articles found today.\n\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, g := range groupByCategory(items) {
		fmt.Fprintf(&b, "\n  %s\n  %s\n", categoryLabel(g.category), strings.Repeat("-", 40))
		for _, it := range g.articles {
			a := it.Article
			fmt.Fprintf(&b, "  ▪ %s\n", snippet(a.Title, 80))
			fmt.Fprintf(&b, "    %s · %s · score %.1f\n", displaySource(a.SourceName), a.PublishedString(), it.Score)
			fmt.Fprintf(&b, "    %s\n", snippet(a.Link, 80))
		}
	}
	fmt.Fprintf(&b, "\n%s\n\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}
