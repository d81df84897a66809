// Package news aggregates recent headlines from crypto RSS and Atom feeds.
package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/ntclick/ai-research-roma/pkg/capability"
	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// entriesPerFeed is how many of each feed's newest entries are considered.
const entriesPerFeed = 30

type coinPattern struct {
	name    string
	pattern *regexp.Regexp
}

//nolint:gochecknoglobals // compiled once
var (
	coinPatterns = []coinPattern{
		{"bitcoin", regexp.MustCompile(`(?i)\b(btc|bitcoin)\b`)},
		{"ethereum", regexp.MustCompile(`(?i)\b(eth|ethereum)\b`)},
		{"solana", regexp.MustCompile(`(?i)\b(sol|solana)\b`)},
		{"sui", regexp.MustCompile(`(?i)\bsui\b`)},
		{"cardano", regexp.MustCompile(`(?i)\b(ada|cardano)\b`)},
		{"polkadot", regexp.MustCompile(`(?i)\b(dot|polkadot)\b`)},
		{"chainlink", regexp.MustCompile(`(?i)\b(link|chainlink)\b`)},
		{"avalanche", regexp.MustCompile(`(?i)\b(avax|avalanche)\b`)},
		{"polygon", regexp.MustCompile(`(?i)\b(matic|polygon)\b`)},
		{"ripple", regexp.MustCompile(`(?i)\b(xrp|ripple)\b`)},
		{"arbitrum", regexp.MustCompile(`(?i)\b(arb|arbitrum)\b`)},
		{"optimism", regexp.MustCompile(`(?i)\b(op|optimism)\b`)},
		{"cosmos", regexp.MustCompile(`(?i)\b(atom|cosmos)\b`)},
		{"near", regexp.MustCompile(`(?i)\bnear\b`)},
		{"aptos", regexp.MustCompile(`(?i)\b(apt|aptos)\b`)},
	}
	generalKeywords = []string{"crypto", "bitcoin", "blockchain"}
)

// Item is one headline.
type Item struct {
	Title     string
	Link      string
	Source    string
	Published *time.Time
}

// Client reads a fixed set of feeds.
type Client struct {
	feeds    map[string]string
	maxItems int
	maxAge   time.Duration
	http     *http.Client
	now      func() time.Time
}

// New creates a client over feeds (name -> URL).
func New(feeds map[string]string, maxItems int, maxAge, timeout time.Duration) *Client {
	if maxItems <= 0 {
		maxItems = 5
	}
	return &Client{
		feeds:    feeds,
		maxItems: maxItems,
		maxAge:   maxAge,
		http:     capability.NewHTTPClient(timeout),
		now:      time.Now,
	}
}

// LookupNews implements roma.NewsSource. It returns "" when nothing matched.
func (c *Client) LookupNews(ctx context.Context, query string) (string, error) {
	coin := detectCoin(query)

	items, err := c.Fetch(ctx, coin)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	return Render(items, coin), nil
}

// Fetch reads every feed concurrently and returns filtered, deduplicated items,
// newest first. It fails only when no feed could be read.
func (c *Client) Fetch(ctx context.Context, coin *coinPattern) ([]Item, error) {
	if len(c.feeds) == 0 {
		return nil, errors.New("no news feeds configured")
	}

	names := make([]string, 0, len(c.feeds))
	for name := range c.feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	perFeed := make([][]Item, len(names))
	feedErrs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			items, err := c.fetchFeed(gctx, name, c.feeds[name], coin)
			if err != nil {
				logx.Debug(ctx, "news", "feed %s failed: %v", name, err)
				feedErrs[i] = fmt.Errorf("%s: %w", name, err)
				return nil
			}
			perFeed[i] = items
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range feedErrs {
		if err != nil {
			failed++
		}
	}
	if failed == len(names) {
		return nil, fmt.Errorf("all news feeds failed: %w", errors.Join(feedErrs...))
	}

	var all []Item
	for _, items := range perFeed {
		all = append(all, items...)
	}
	return c.selectItems(all), nil
}

func (c *Client) fetchFeed(ctx context.Context, name, url string, coin *coinPattern) ([]Item, error) {
	parser := gofeed.NewParser()
	parser.Client = c.http

	feed, err := parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller with the feed name
	}

	entries := feed.Items
	if len(entries) > entriesPerFeed {
		entries = entries[:entriesPerFeed]
	}

	var items []Item
	for _, e := range entries {
		title := cleanTitle(e.Title)
		if title == "" || !matches(coin, title, e.Description) {
			continue
		}
		published := e.PublishedParsed
		if published == nil {
			published = e.UpdatedParsed
		}
		items = append(items, Item{Title: title, Link: e.Link, Source: name, Published: published})
	}
	return items, nil
}

func (c *Client) selectItems(all []Item) []Item {
	cutoff := c.now().Add(-c.maxAge)
	seen := make(map[string]bool, len(all))

	var out []Item
	for _, it := range all {
		if c.maxAge > 0 && it.Published != nil && it.Published.Before(cutoff) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(it.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Published, out[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	if len(out) > c.maxItems {
		out = out[:c.maxItems]
	}
	return out
}

func detectCoin(query string) *coinPattern {
	for i := range coinPatterns {
		if coinPatterns[i].pattern.MatchString(query) {
			return &coinPatterns[i]
		}
	}
	return nil
}

func matches(coin *coinPattern, title, description string) bool {
	if coin != nil {
		return coin.pattern.MatchString(title) || coin.pattern.MatchString(description)
	}
	lower := strings.ToLower(title)
	for _, kw := range generalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func cleanTitle(s string) string {
	r := strings.NewReplacer("’", "'", "‘", "'", "–", "-", "—", "-", "\n", " ")
	return strings.TrimSpace(r.Replace(s))
}

// Render formats items as a numbered markdown list.
func Render(items []Item, coin *coinPattern) string {
	var b strings.Builder
	b.WriteString("**Latest News")
	if coin != nil {
		fmt.Fprintf(&b, " - %s", strings.ToUpper(coin.name))
	}
	b.WriteString("**\n\n")

	for i, it := range items {
		fmt.Fprintf(&b, "%d. **[%s](%s)**\n", i+1, it.Title, it.Link)
		if it.Published != nil {
			fmt.Fprintf(&b, "   %s, %s\n\n", it.Source, it.Published.UTC().Format("2006-01-02 15:04 UTC"))
		} else {
			fmt.Fprintf(&b, "   %s\n\n", it.Source)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
