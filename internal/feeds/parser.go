package feeds

import (
	"crypto/sha256"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

var (
	htmlTagPattern    = regexp.MustCompile("<[^>]*>")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// parseFeedItems converts gofeed items into Announcements, filtering to the
// lookback window. Malformed entries (empty title or link, or no parseable
// publish date) are skipped and counted; entries older than the window are
// dropped silently.
func parseFeedItems(feed *gofeed.Feed, daysBack int) (items []models.Announcement, skipped int) {
	cutoff := time.Now().AddDate(0, 0, -daysBack)

	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			skipped++
			continue
		}
		if item.PublishedParsed == nil {
			skipped++
			continue
		}
		if item.PublishedParsed.Before(cutoff) {
			continue
		}

		items = append(items, models.Announcement{
			ID:          announcementID(item),
			Title:       item.Title,
			Description: stripHTML(item.Description),
			Link:        item.Link,
			PublishedAt: *item.PublishedParsed,
		})
	}

	return items, skipped
}

// announcementID returns the stable identity for a feed entry: the feed GUID
// when the feed provides one, otherwise a hash of title and link. The same
// entry always hashes to the same id across runs, which is what the dedup
// ledger keys on.
func announcementID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return computeHash(item.Title + "|" + item.Link)
}

// computeHash returns the SHA-256 hex digest of the given string.
func computeHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

// stripHTML removes HTML tags from s, unescapes HTML entities, and collapses
// runs of whitespace left behind by removed tags.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, " ")
	clean = html.UnescapeString(clean)
	clean = whitespacePattern.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}
