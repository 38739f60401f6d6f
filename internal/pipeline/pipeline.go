// Package pipeline sequences a cloudbrief run: resolve the usage profile,
// fetch announcements, filter out previously delivered ids, classify the rest
// against the profile on a bounded worker pool, dispatch the relevant ones,
// and record the delivered ids in the ledger.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowanlabs/cloudbrief/internal/ai"
	"github.com/rowanlabs/cloudbrief/internal/feeds"
	"github.com/rowanlabs/cloudbrief/internal/ledger"
	"github.com/rowanlabs/cloudbrief/internal/models"
	"github.com/rowanlabs/cloudbrief/internal/notify"
	"github.com/rowanlabs/cloudbrief/internal/usage"
)

// State names the coordinator's position in a run. Failed is reachable only
// before any announcement work begins: once the usage profile is resolved,
// downstream failures degrade the run instead of aborting it.
type State string

const (
	StateInit        State = "init"
	StateResolving   State = "resolving_profile"
	StateFetching    State = "fetching_announcements"
	StateClassifying State = "classifying"
	StateDispatching State = "dispatching"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Fetcher is the announcement source consumed by the coordinator.
type Fetcher interface {
	Fetch(ctx context.Context, opts feeds.FetchOptions) *feeds.FetchResult
}

// Options controls a single run.
type Options struct {
	WindowDays       int
	Scope            usage.Scope
	DaysBack         int
	FetchFullContent bool
	MaxWorkers       int
	ItemTimeout      time.Duration
	Verbose          bool
}

// Report summarizes a completed (or failed) run. A run with zero relevant
// announcements and an empty warning tally is a clean success, distinct from
// a run that aborted before producing output.
type Report struct {
	State                State                  `json:"state"`
	ServiceCount         int                    `json:"service_count"`
	AnnouncementCount    int                    `json:"announcement_count"`
	SkippedMalformed     int                    `json:"skipped_malformed"`
	FilteredHistoryCount int                    `json:"filtered_history_count"`
	RelevantCount        int                    `json:"relevant_count"`
	ClassifyErrors       int                    `json:"classify_errors"`
	Delivery             *notify.DeliveryReport `json:"delivery,omitempty"`
	Warnings             []string               `json:"warnings,omitempty"`
	Duration             float64                `json:"duration_seconds"`
}

// Coordinator owns one run of the pipeline. The usage profile it resolves is
// read-only for the rest of the run and shared freely across classification
// workers; the ledger is the only structure touched concurrently, and each
// worker touches a distinct id.
type Coordinator struct {
	resolver   usage.Resolver
	fetcher    Fetcher
	classifier ai.Classifier
	ledger     ledger.Ledger
	dispatcher *notify.Dispatcher
	opts       Options
	out        io.Writer
}

// New creates a coordinator over explicitly supplied collaborators. There are
// no ambient singletons: everything a run touches is passed in here.
func New(resolver usage.Resolver, fetcher Fetcher, classifier ai.Classifier, led ledger.Ledger, dispatcher *notify.Dispatcher, opts Options) *Coordinator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 60 * time.Second
	}
	return &Coordinator{
		resolver:   resolver,
		fetcher:    fetcher,
		classifier: classifier,
		ledger:     led,
		dispatcher: dispatcher,
		opts:       opts,
		out:        os.Stdout,
	}
}

// SetOutput redirects verbose console output, mainly for tests.
func (c *Coordinator) SetOutput(w io.Writer) {
	c.out = w
}

// Run executes the pipeline once. It returns an error only for fatal
// dependency failures during profile resolution; every later failure
// degrades into the report's warning and error tallies.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{State: StateInit}

	// Resolve the usage profile. This is the one stage that can fail the
	// run: without a profile there is nothing to classify against.
	report.State = StateResolving
	profile, err := c.resolver.Resolve(ctx, c.opts.WindowDays, c.opts.Scope)
	if err != nil {
		report.State = StateFailed
		report.Duration = time.Since(start).Seconds()
		if usage.IsFatal(err) {
			return report, fmt.Errorf("fatal usage source failure: %w", err)
		}
		return report, fmt.Errorf("resolving usage profile: %w", err)
	}
	report.ServiceCount = profile.Len()

	slog.Info("usage profile resolved", "services", profile.Len())
	if c.opts.Verbose {
		notify.PrintServiceSummary(c.out, profile.Services())
	}

	// Fetch announcements. The feed is a soft dependency: an unreachable
	// feed degrades the run to "no new announcements".
	report.State = StateFetching
	fetched := c.fetcher.Fetch(ctx, feeds.FetchOptions{
		DaysBack:         c.opts.DaysBack,
		FetchFullContent: c.opts.FetchFullContent,
	})
	report.SkippedMalformed = fetched.Skipped
	if fetched.FetchErr != "" {
		report.Warnings = append(report.Warnings, "announcement feed unavailable: "+fetched.FetchErr)
	}

	// Drop ids the ledger has already delivered. They must never reach
	// the classifier or the sinks again.
	fresh := c.filterSeen(ctx, fetched.Items, report)
	report.AnnouncementCount = len(fresh)

	// Classify the remaining announcements on the worker pool.
	report.State = StateClassifying
	verdicts := c.classifyAll(ctx, fresh, profile, report)

	// Completion order is arbitrary; user-facing output is deterministic,
	// newest first.
	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Announcement.PublishedAt.After(verdicts[j].Announcement.PublishedAt)
	})

	var relevant, nonRelevant []models.Verdict
	for _, v := range verdicts {
		if v.Relevant {
			relevant = append(relevant, v)
		} else {
			nonRelevant = append(nonRelevant, v)
		}
	}
	report.RelevantCount = len(relevant)

	slog.Info("classification complete",
		"total", len(verdicts),
		"relevant", len(relevant),
		"non_relevant", len(nonRelevant),
		"errors", report.ClassifyErrors,
	)

	if c.opts.Verbose {
		notify.PrintVerdictList(c.out, fmt.Sprintf("All %d non-relevant announcements", len(nonRelevant)), nonRelevant)
		notify.PrintVerdictList(c.out, fmt.Sprintf("Found %d relevant announcements", len(relevant)), relevant)
	}

	// Dispatch and record. Recording happens only for ids the primary
	// sink accepted, so an announcement that never surfaced stays
	// eligible for the next run.
	report.State = StateDispatching
	if len(relevant) > 0 {
		delivery := c.dispatcher.Deliver(ctx, relevant)
		report.Delivery = delivery

		for _, id := range delivery.DeliveredIDs {
			if err := c.ledger.Record(ctx, id); err != nil {
				slog.Error("failed to record delivered id", "id", id, "error", err)
				report.Warnings = append(report.Warnings, "ledger record failed for "+id)
			}
		}
	} else {
		slog.Info("no relevant announcements found for your services")
	}

	report.State = StateDone
	report.Duration = time.Since(start).Seconds()

	slog.Info("run complete",
		"relevant", report.RelevantCount,
		"filtered_history", report.FilteredHistoryCount,
		"warnings", len(report.Warnings),
		"duration", report.Duration,
	)
	return report, nil
}

// filterSeen drops announcements whose id is already in the ledger. A ledger
// lookup failure is treated as "not seen" so a flaky store cannot suppress a
// new announcement; the failure is tallied as a warning instead.
func (c *Coordinator) filterSeen(ctx context.Context, items []models.Announcement, report *Report) []models.Announcement {
	fresh := items[:0:0]
	for _, item := range items {
		seen, err := c.ledger.Seen(ctx, item.ID)
		if err != nil {
			slog.Warn("ledger lookup failed", "id", item.ID, "error", err)
			report.Warnings = append(report.Warnings, "ledger lookup failed for "+item.ID)
			fresh = append(fresh, item)
			continue
		}
		if seen {
			report.FilteredHistoryCount++
			continue
		}
		fresh = append(fresh, item)
	}

	if report.FilteredHistoryCount > 0 {
		slog.Info("filtered previously seen announcements", "count", report.FilteredHistoryCount)
	}
	return fresh
}

// classifyAll fans items out across the worker pool and collects one verdict
// per item. Workers write to disjoint slice slots, so no lock is needed.
// A classification that fails or times out degrades to a not-relevant
// verdict; it never aborts the batch.
func (c *Coordinator) classifyAll(ctx context.Context, items []models.Announcement, profile *models.UsageProfile, report *Report) []models.Verdict {
	if len(items) == 0 {
		return nil
	}

	slog.Info("classifying announcements", "count", len(items), "workers", c.opts.MaxWorkers)

	verdicts := make([]models.Verdict, len(items))
	errored := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxWorkers)

	for i, item := range items {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, c.opts.ItemTimeout)
			defer cancel()

			v, err := c.classifier.Classify(itemCtx, item, profile)
			if err != nil {
				slog.Warn("classification degraded",
					"announcement", item.ID,
					"title", item.Title,
					"error", err,
				)
				errored[i] = true
				v = models.Verdict{Announcement: item}
			}
			verdicts[i] = v
			return nil
		})
	}

	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()

	for _, e := range errored {
		if e {
			report.ClassifyErrors++
		}
	}
	return verdicts
}
