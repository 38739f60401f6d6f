// Package feeds retrieves the provider's announcement feed and turns it into
// a bounded batch of announcements for the pipeline.
package feeds

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

const (
	httpTimeout = 30 * time.Second
	// fetchRetries is how many times a failed feed fetch is retried before
	// the fetcher degrades to an empty result. The feed is a soft
	// dependency: a missed poll is recoverable on the next run.
	fetchRetries = 1
)

// FetchOptions controls how the feed is fetched.
type FetchOptions struct {
	// DaysBack filters announcements published within the last N days.
	DaysBack int

	// FetchFullContent fetches the announcement page body for entries
	// whose feed summary is empty.
	FetchFullContent bool
}

// FetchResult contains the announcements within the window plus counts of
// what was dropped along the way.
type FetchResult struct {
	Items []models.Announcement
	// Skipped counts malformed entries (missing title or link, or an
	// unparseable publish date) dropped from an otherwise good feed.
	Skipped int
	// FetchErr holds the terminal fetch error when the feed itself was
	// unreachable or unparseable and the result degraded to empty.
	FetchErr string
}

// Fetcher retrieves and parses a single announcement feed.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a Fetcher for the given feed URL with a 30-second
// HTTP timeout.
func NewFetcher(url string) *Fetcher {
	return &Fetcher{
		url: url,
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// Fetch retrieves the feed and returns all announcements published within
// the lookback window, fully materialized and in feed order. A fetch or
// parse failure of the whole feed is retried once; if that also fails the
// result degrades to zero announcements with a warning rather than an error,
// so the run can still complete.
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOptions) *FetchResult {
	slog.Info("fetching announcement feed", "url", f.url, "days_back", opts.DaysBack)

	fp := gofeed.NewParser()
	fp.Client = f.client

	var feed *gofeed.Feed
	var err error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		feed, err = fp.ParseURLWithContext(f.url, ctx)
		if err == nil {
			break
		}
		slog.Warn("feed fetch failed",
			"url", f.url,
			"attempt", attempt+1,
			"error", err,
		)
	}
	if err != nil {
		slog.Warn("announcement feed unavailable, continuing with no announcements", "url", f.url)
		return &FetchResult{FetchErr: err.Error()}
	}

	items, skipped := parseFeedItems(feed, opts.DaysBack)

	if opts.FetchFullContent {
		f.enrich(ctx, items)
	}

	slog.Info("fetched announcement feed",
		"total_entries", len(feed.Items),
		"in_window", len(items),
		"skipped_malformed", skipped,
	)
	return &FetchResult{Items: items, Skipped: skipped}
}

// enrich fills FullContent for announcements whose feed summary is empty,
// using readability extraction on the announcement page. Extraction failures
// leave the announcement as-is; the classifier can still work from the title.
func (f *Fetcher) enrich(ctx context.Context, items []models.Announcement) {
	for i := range items {
		if items[i].Description != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}

		text, err := extractFullText(items[i].Link, httpTimeout)
		if err != nil {
			slog.Debug("full content extraction failed",
				"link", items[i].Link,
				"error", err,
			)
			continue
		}
		items[i].FullContent = truncateWords(text, maxContentWords)
	}
}
