package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/newsbot/internal/models"
)

var collectNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rssDoc(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title><link>https://example.com</link><description>d</description>
` + strings.Join(items, "\n") + `
</channel></rss>`
}

func rssItem(title, link, desc string, published *time.Time) string {
	pub := ""
	if published != nil {
		pub = "<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>"
	}
	return fmt.Sprintf("<item><title>%s</title><link>%s</link><description><![CDATA[%s]]></description>%s</item>",
		title, link, desc, pub)
}

func newTestCollector(sources *SourcesConfig, client *http.Client, insecureRetry bool) *Collector {
	c := NewCollector(sources, Options{HTTPClient: client, InsecureRetry: insecureRetry, Workers: 2}, quiet())
	c.now = func() time.Time { return collectNow }
	return c
}

func TestCollectAll_FiltersAgeAndIneligible(t *testing.T) {
	recent := collectNow.Add(-2 * time.Hour)
	old := collectNow.Add(-72 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssDoc(
			rssItem("Fresh defence news", "https://example.com/fresh", "<p>Hello <b>world</b></p><p>again</p>", &recent),
			rssItem("Stale story", "https://example.com/stale", "old", &old),
			rssItem("Undated story", "https://example.com/undated", "no date", nil),
			rssItem("No link", "", "missing link", &recent),
		))
	}))
	defer srv.Close()

	c := newTestCollector(&SourcesConfig{
		Government: []Source{{Name: "Gov", FeedURL: srv.URL}},
	}, srv.Client(), false)

	got := c.CollectAll(context.Background(), 48)
	require.Len(t, got, 2)

	assert.Equal(t, "Fresh defence news", got[0].Title)
	assert.Equal(t, "Hello world again", got[0].Description)
	assert.Equal(t, models.CategoryGovernment, got[0].SourceCategory)
	assert.Equal(t, "Gov", got[0].SourceName)
	require.NotNil(t, got[0].PublishedAt)
	assert.True(t, got[0].PublishedAt.Equal(recent))

	assert.Equal(t, "Undated story", got[1].Title)
	assert.Nil(t, got[1].PublishedAt)
}

func TestCollectAll_FailingSourceDoesNotAbortOthers(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc(rssItem("Working feed item", "https://example.com/ok", "ok", nil)))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer garbage.Close()

	c := newTestCollector(&SourcesConfig{
		Government: []Source{{Name: "Bad", FeedURL: bad.URL}, {Name: "Garbage", FeedURL: garbage.URL}},
		ThinkTanks: []Source{{Name: "Good", FeedURL: good.URL}},
	}, nil, false)

	got := c.CollectAll(context.Background(), 48)
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got[0].SourceName)
	assert.Equal(t, models.CategoryThinkTank, got[0].SourceCategory)
}

func TestCollectAll_KeepsSourceOrder(t *testing.T) {
	mux := http.NewServeMux()
	for _, name := range []string{"a", "b", "c"} {
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			if name == "a" {
				time.Sleep(20 * time.Millisecond)
			}
			fmt.Fprint(w, rssDoc(rssItem("item "+name, "https://example.com/"+name, "", nil)))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCollector(&SourcesConfig{
		Government: []Source{{Name: "A", FeedURL: srv.URL + "/a"}},
		ThinkTanks: []Source{{Name: "B", FeedURL: srv.URL + "/b"}},
		LinkedIn:   []Source{{Name: "C", FeedURL: srv.URL + "/c"}},
	}, nil, false)

	got := c.CollectAll(context.Background(), 48)
	require.Len(t, got, 3)
	assert.Equal(t, "item a", got[0].Title)
	assert.Equal(t, "item b", got[1].Title)
	assert.Equal(t, "item c", got[2].Title)
	assert.Equal(t, models.CategoryLinkedIn, got[2].SourceCategory)
}

func TestCollectAll_CollapsesDuplicateTitles(t *testing.T) {
	title := "Canada announces major new Arctic defence investment package for the north"
	mux := http.NewServeMux()
	mux.HandleFunc("/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc(rssItem(title, "https://example.com/1", "", nil)))
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc(rssItem(strings.ToUpper(title)+"!", "https://mirror.example.com/1", "", nil)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCollector(&SourcesConfig{
		Government: []Source{{Name: "One", FeedURL: srv.URL + "/one"}},
		Media:      []Source{{Name: "Two", FeedURL: srv.URL + "/two"}},
	}, nil, false)

	got := c.CollectAll(context.Background(), 48)
	require.Len(t, got, 1)
	assert.Equal(t, "One", got[0].SourceName)
}

func TestCollectAll_InsecureRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, rssDoc(rssItem("Self-signed host item", "https://example.com/tls", "", nil)))
	}))
	defer srv.Close()

	sources := &SourcesConfig{Government: []Source{{Name: "TLS", FeedURL: srv.URL}}}

	strict := newTestCollector(sources, nil, false)
	assert.Empty(t, strict.CollectAll(context.Background(), 48))

	lenient := newTestCollector(sources, nil, true)
	got := lenient.CollectAll(context.Background(), 48)
	require.Len(t, got, 1)
	assert.Equal(t, "Self-signed host item", got[0].Title)
	assert.Equal(t, int32(1), hits.Load(), "only the insecure retry reaches the handler")
}

func TestCollectAll_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		fmt.Fprint(w, rssDoc())
	}))
	defer srv.Close()

	c := newTestCollector(&SourcesConfig{Government: []Source{{Name: "UA", FeedURL: srv.URL}}}, nil, false)
	c.CollectAll(context.Background(), 48)
	assert.Equal(t, DefaultUserAgent, ua.Load())
}

func TestSetSourcesSwapsFeeds(t *testing.T) {
	c := newTestCollector(nil, nil, false)
	assert.Empty(t, c.Sources().Feeds())
	c.SetSources(&SourcesConfig{Government: []Source{{Name: "X", FeedURL: "https://x.example"}}})
	assert.Len(t, c.Sources().Feeds(), 1)
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "", htmlToText("   "))
	assert.Equal(t, "plain text", htmlToText("plain   text"))
	assert.Equal(t, "a & b", htmlToText("a &amp; b"))
	assert.Equal(t, "visible", htmlToText("<script>var x;</script><div>visible</div>"))
}

func TestExtractArticlesTruncatesDescription(t *testing.T) {
	long := strings.Repeat("x", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc(rssItem("Long item", "https://example.com/long", long, nil)))
	}))
	defer srv.Close()

	c := newTestCollector(&SourcesConfig{Government: []Source{{Name: "L", FeedURL: srv.URL}}}, nil, false)
	got := c.CollectAll(context.Background(), 48)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Description, maxDescriptionLen)
}
