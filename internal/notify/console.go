package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

// Console writes human-readable notifications to a writer, normally stdout.
// It is the primary sink: writing locally is the one delivery that cannot
// meaningfully be retried, so its successes gate the ledger mark.
type Console struct {
	w io.Writer
}

// Compile-time interface check.
var _ Sink = (*Console)(nil)

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

// Send prints one announcement with its summary, mentioned services, and
// link.
func (c *Console) Send(_ context.Context, v models.Verdict) error {
	a := v.Announcement

	fmt.Fprintf(c.w, "%s\n", a.Title)
	fmt.Fprintf(c.w, "Posted: %s\n", a.PublishedAt.Format(time.RFC1123))

	if v.Summary != "" {
		fmt.Fprintf(c.w, "\nSummary: %s\n", v.Summary)
	}
	if len(v.Services) > 0 {
		fmt.Fprintf(c.w, "\nMentioned services: %s\n", strings.Join(v.Services, ", "))
	}

	fmt.Fprintf(c.w, "\nMore info: %s\n", a.Link)
	fmt.Fprintln(c.w, strings.Repeat("-", 80))
	return nil
}

// PrintServiceSummary writes the resolved usage profile in columns, for
// verbose runs.
func PrintServiceSummary(w io.Writer, services []string) {
	if len(services) == 0 {
		return
	}

	fmt.Fprintf(w, "\nServices found in your environment:\n")

	colWidth := 0
	for _, s := range services {
		if len(s) > colWidth {
			colWidth = len(s)
		}
	}
	colWidth += 2

	const cols = 3
	rows := (len(services) + cols - 1) / cols

	for i := 0; i < rows; i++ {
		var line strings.Builder
		for j := 0; j < cols; j++ {
			idx := i + j*rows
			if idx < len(services) {
				line.WriteString(fmt.Sprintf("%-*s", colWidth, services[idx]))
			}
		}
		fmt.Fprintf(w, "  %s\n", strings.TrimRight(line.String(), " "))
	}
	fmt.Fprintln(w)
}

// PrintVerdictList writes a titled list of announcements with the services
// the classifier detected in each, for verbose runs.
func PrintVerdictList(w io.Writer, title string, verdicts []models.Verdict) {
	if len(verdicts) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s:\n\n", title)
	for i, v := range verdicts {
		fmt.Fprintf(w, "  %d. %s\n", i+1, v.Announcement.Title)
		if len(v.Services) > 0 {
			fmt.Fprintf(w, "     [Services detected: %s]\n\n", strings.Join(v.Services, ", "))
		}
	}
}
