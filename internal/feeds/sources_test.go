package feeds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/newsbot/internal/models"
)

func TestParseSources_FeedsOrderAndCategories(t *testing.T) {
	cfg, err := ParseSources([]byte(`
government:
  - name: DND News
    feed_url: https://www.canada.ca/dnd.rss
think_tanks:
  - name: CGAI
    feed_url: https://www.cgai.ca/rss
media:
  - name: CBC Politics
    feed_url: https://www.cbc.ca/politics.xml
  - name: Gov Mirror
    feed_url: https://mirror.example.com/rss
    category: government
google_news_queries:
  - query: Canada defence "sovereignty"
    label: Defence
linkedin_rss:
  - name: Minister Page
    feed_url: https://rss.app/feeds/abc.xml
`))
	require.NoError(t, err)

	feeds := cfg.Feeds()
	require.Len(t, feeds, 6)

	assert.Equal(t, Feed{Name: "DND News", URL: "https://www.canada.ca/dnd.rss", Category: models.CategoryGovernment}, feeds[0])
	assert.Equal(t, models.CategoryThinkTank, feeds[1].Category)
	assert.Equal(t, models.CategoryGoogleNews, feeds[2].Category)
	assert.Equal(t, models.CategoryGovernment, feeds[3].Category, "explicit category overrides the group default")

	assert.Equal(t, "Google News - Defence", feeds[4].Name)
	assert.Equal(t,
		"https://news.google.com/rss/search?q=Canada+defence+%22sovereignty%22&hl=en-CA&gl=CA&ceid=CA:en",
		feeds[4].URL)
	assert.Equal(t, models.CategoryGoogleNews, feeds[4].Category)

	assert.Equal(t, models.CategoryLinkedIn, feeds[5].Category)
}

func TestParseSources_CustomBaseURL(t *testing.T) {
	cfg, err := ParseSources([]byte(`
google_news_base_url: https://news.example.com/search?q={query}
google_news_queries:
  - query: arctic
    label: Arctic
`))
	require.NoError(t, err)
	assert.Equal(t, "https://news.example.com/search?q=arctic", cfg.Feeds()[0].URL)
}

func TestParseSources_RejectsIncompleteEntries(t *testing.T) {
	_, err := ParseSources([]byte(`
government:
  - name: Missing URL
`))
	assert.Error(t, err)

	_, err = ParseSources([]byte(`
google_news_queries:
  - query: no label
`))
	assert.Error(t, err)
}

func TestLoadSources(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("government: []\n"), 0o644))
	cfg, err := LoadSources(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Feeds())
}

func TestCollapseTitles(t *testing.T) {
	in := []models.Article{
		{Title: "Short dup", Link: "1"},
		{Title: "Short dup", Link: "2"},
		{Title: "Ottawa confirms new defence procurement timeline for frigates", Link: "3"},
		{Title: "Ottawa confirms new defence procurement timeline, for frigates!", Link: "4"},
		{Title: "A completely different headline about sovereignty", Link: "5"},
	}
	out := collapseTitles(in)

	var links []string
	for _, a := range out {
		links = append(links, a.Link)
	}
	// Titles of 20 characters or fewer are never collapsed.
	assert.Equal(t, []string{"1", "2", "3", "5"}, links)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "canadas arctic defence", normalizeTitle("  Canada's   Arctic: Defence "))
}
