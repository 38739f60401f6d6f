package models

import "time"

// Announcement represents a single dated entry from the provider's
// "what's new" feed. Identity is the ID: two announcements with the same ID
// are the same announcement regardless of content drift. Announcements are
// immutable after ingestion.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FullContent string    `json:"full_content,omitempty"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
}

// Verdict is the classifier's decision for a single announcement. Exactly one
// verdict is produced per announcement per run; verdicts are never persisted,
// only the IDs of relevant delivered announcements reach the ledger.
type Verdict struct {
	Announcement Announcement `json:"announcement"`
	Relevant     bool         `json:"relevant"`
	// Services lists the service names the model found mentioned in the
	// announcement, matched or not.
	Services []string `json:"services,omitempty"`
	// Summary is a short model-written rationale; empty when not relevant
	// or when the model response could not be parsed.
	Summary string `json:"summary,omitempty"`
}
