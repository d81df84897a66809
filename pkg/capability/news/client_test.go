package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoglobals // fixed clock for feed fixtures
var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func rssItem(title, link string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><pubDate>%s</pubDate></item>`,
		title, link, title, published.Format(time.RFC1123Z))
}

func rssFeed(items ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>t</title>`
	for _, it := range items {
		out += it
	}
	return out + `</channel></rss>`
}

func feedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(feeds map[string]string, maxItems int) *Client {
	c := New(feeds, maxItems, 7*24*time.Hour, time.Second)
	c.now = func() time.Time { return now }
	return c
}

func TestLookupNewsCoinFilter(t *testing.T) {
	a := feedServer(t, rssFeed(
		rssItem("Bitcoin ETF inflows hit record", "https://a/1", now.Add(-2*time.Hour)),
		rssItem("Ethereum upgrade scheduled", "https://a/2", now.Add(-time.Hour)),
		rssItem("BTC miners sell", "https://a/3", now.Add(-10*24*time.Hour)),
	), http.StatusOK)
	b := feedServer(t, rssFeed(
		rssItem("bitcoin etf inflows hit record", "https://b/1", now.Add(-3*time.Hour)),
		rssItem("Why BTC could rally", "https://b/2", now.Add(-30*time.Minute)),
	), http.StatusOK)

	client := newTestClient(map[string]string{"alpha": a.URL, "beta": b.URL}, 5)

	content, err := client.LookupNews(context.Background(), "btc news")
	require.NoError(t, err)

	assert.Contains(t, content, "**Latest News - BITCOIN**")
	assert.Contains(t, content, "1. **[Why BTC could rally](https://b/2)**")
	assert.Contains(t, content, "2. **[Bitcoin ETF inflows hit record](https://a/1)**")
	assert.NotContains(t, content, "Ethereum")
	assert.NotContains(t, content, "miners")
	assert.NotContains(t, content, "https://b/1")
}

func TestLookupNewsGeneral(t *testing.T) {
	a := feedServer(t, rssFeed(
		rssItem("Crypto markets steady", "https://a/1", now.Add(-time.Hour)),
		rssItem("Fed holds rates", "https://a/2", now.Add(-time.Hour)),
		rssItem("Blockchain gaming grows", "https://a/3", now.Add(-2*time.Hour)),
	), http.StatusOK)

	items, err := newTestClient(map[string]string{"alpha": a.URL}, 1).Fetch(context.Background(), detectCoin("latest news"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Crypto markets steady", items[0].Title)
	assert.Equal(t, "alpha", items[0].Source)
}

func TestLookupNewsNoMatches(t *testing.T) {
	a := feedServer(t, rssFeed(rssItem("Fed holds rates", "https://a/1", now)), http.StatusOK)

	content, err := newTestClient(map[string]string{"alpha": a.URL}, 5).LookupNews(context.Background(), "solana news")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestLookupNewsFeedFailures(t *testing.T) {
	good := feedServer(t, rssFeed(rssItem("Solana outage resolved", "https://g/1", now)), http.StatusOK)
	bad := feedServer(t, "nope", http.StatusInternalServerError)

	content, err := newTestClient(map[string]string{"good": good.URL, "bad": bad.URL}, 5).
		LookupNews(context.Background(), "sol news")
	require.NoError(t, err)
	assert.Contains(t, content, "Solana outage resolved")

	_, err = newTestClient(map[string]string{"bad": bad.URL}, 5).LookupNews(context.Background(), "news")
	assert.ErrorContains(t, err, "all news feeds failed")

	_, err = newTestClient(nil, 5).LookupNews(context.Background(), "news")
	assert.Error(t, err)
}

func TestDetectCoin(t *testing.T) {
	assert.Equal(t, "bitcoin", detectCoin("BTC news today").name)
	assert.Equal(t, "ethereum", detectCoin("what about eth?").name)
	assert.Nil(t, detectCoin("crypto news"))
	assert.Nil(t, detectCoin("solar energy"))
}
