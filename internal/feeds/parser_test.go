package feeds

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestParseFeedItems(t *testing.T) {
	now := time.Now()
	recent := timePtr(now.Add(-24 * time.Hour))
	old := timePtr(now.AddDate(0, 0, -30))

	feed := &gofeed.Feed{
		Items: []*gofeed.Item{
			{
				GUID:            "guid-1",
				Title:           "EC2 announcement",
				Link:            "https://example.com/ec2",
				Description:     "<p>New &amp; improved   instances</p>",
				PublishedParsed: recent,
			},
			{
				// Missing title: malformed.
				Link:            "https://example.com/untitled",
				PublishedParsed: recent,
			},
			{
				// Missing link: malformed.
				Title:           "No link",
				PublishedParsed: recent,
			},
			{
				// No parseable date: malformed.
				Title: "No date",
				Link:  "https://example.com/nodate",
			},
			{
				// Outside the window: dropped silently.
				Title:           "Ancient news",
				Link:            "https://example.com/old",
				PublishedParsed: old,
			},
		},
	}

	items, skipped := parseFeedItems(feed, 7)

	if len(items) != 1 {
		t.Fatalf("expected 1 item in window, got %d", len(items))
	}
	if skipped != 3 {
		t.Errorf("expected 3 malformed entries skipped, got %d", skipped)
	}

	got := items[0]
	if got.ID != "guid-1" {
		t.Errorf("id = %q, want feed guid", got.ID)
	}
	if got.Title != "EC2 announcement" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Description != "New & improved instances" {
		t.Errorf("description = %q, want stripped and unescaped text", got.Description)
	}
}

func TestAnnouncementID(t *testing.T) {
	t.Run("prefers feed guid", func(t *testing.T) {
		item := &gofeed.Item{GUID: "guid-x", Title: "T", Link: "L"}
		if got := announcementID(item); got != "guid-x" {
			t.Errorf("id = %q, want guid-x", got)
		}
	})

	t.Run("hash is stable without guid", func(t *testing.T) {
		a := &gofeed.Item{Title: "Same title", Link: "https://example.com/a"}
		b := &gofeed.Item{Title: "Same title", Link: "https://example.com/a"}
		if announcementID(a) != announcementID(b) {
			t.Error("identical entries should produce identical ids")
		}

		c := &gofeed.Item{Title: "Same title", Link: "https://example.com/other"}
		if announcementID(a) == announcementID(c) {
			t.Error("different links should produce different ids")
		}
	})
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"tags removed", "<p>hello <b>world</b></p>", "hello world"},
		{"entities unescaped", "a &amp; b &lt;c&gt;", "a & b <c>"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripHTML(tt.input); got != tt.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
