// Package ledger tracks which announcement ids have already been delivered,
// enforcing at-most-once user-facing delivery across runs.
//
// Recording is idempotent: recording an id twice is a no-op, which keeps
// re-runs and at-least-once retries harmless. Ids are never updated or
// deleted by the pipeline. Concurrent access from classifier workers is safe
// because each worker touches a distinct id.
package ledger

import "context"

// Ledger is the dedup record of previously delivered announcement ids.
type Ledger interface {
	// Seen reports whether the id has already been recorded.
	Seen(ctx context.Context, id string) (bool, error)
	// Record marks the id as delivered. Recording an already-recorded id
	// is a no-op, not an error.
	Record(ctx context.Context, id string) error
	// Close releases any resources held by the ledger.
	Close() error
}

// Noop is the ledger used in no-history mode: nothing is ever seen and
// nothing is recorded. The rest of the pipeline is unaware of this mode.
type Noop struct{}

// Compile-time interface check.
var _ Ledger = Noop{}

func (Noop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Noop) Record(context.Context, string) error       { return nil }
func (Noop) Close() error                               { return nil }
