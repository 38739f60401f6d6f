// Package notify renders relevance verdicts for human consumption and fans
// them out to the configured delivery sinks.
package notify

import (
	"context"
	"log/slog"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

// Sink is a single delivery target for notifications.
type Sink interface {
	Name() string
	// Send delivers one notification. Errors are per-item and per-sink;
	// they never abort the batch.
	Send(ctx context.Context, v models.Verdict) error
}

// SinkResult tallies one sink's deliveries.
type SinkResult struct {
	Sink      string `json:"sink"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// DeliveryReport is the outcome of dispatching a batch of verdicts.
type DeliveryReport struct {
	Results []SinkResult `json:"results"`
	// DeliveredIDs are the announcement ids the primary sink accepted.
	// Only these may be marked seen in the ledger: an announcement that
	// never reached the user must stay eligible for the next run.
	DeliveredIDs []string `json:"delivered_ids"`
}

// Failed reports whether any sink failed any delivery.
func (r *DeliveryReport) Failed() bool {
	for _, res := range r.Results {
		if res.Failed > 0 {
			return true
		}
	}
	return false
}

// Dispatcher fans relevant verdicts out to the configured sinks. The first
// sink is the primary: its successes gate the dedup ledger mark. A failure
// in one sink never blocks delivery to another.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher creates a dispatcher over the given sinks. The first sink is
// the primary.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Deliver sends every relevant verdict to every sink, collecting per-sink
// tallies. Non-relevant verdicts are skipped.
func (d *Dispatcher) Deliver(ctx context.Context, verdicts []models.Verdict) *DeliveryReport {
	report := &DeliveryReport{}

	for i, sink := range d.sinks {
		result := SinkResult{Sink: sink.Name()}

		for _, v := range verdicts {
			if !v.Relevant {
				continue
			}

			if err := sink.Send(ctx, v); err != nil {
				slog.Error("delivery failed",
					"sink", sink.Name(),
					"announcement", v.Announcement.ID,
					"error", err,
				)
				result.Failed++
				continue
			}

			result.Delivered++
			if i == 0 {
				report.DeliveredIDs = append(report.DeliveredIDs, v.Announcement.ID)
			}
		}

		report.Results = append(report.Results, result)
		slog.Info("sink delivery complete",
			"sink", sink.Name(),
			"delivered", result.Delivered,
			"failed", result.Failed,
		)
	}

	return report
}
