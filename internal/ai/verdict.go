package ai

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

// ErrBadResponse indicates the model's response could not be parsed into a
// verdict. The caller receives the safe default verdict alongside it.
var ErrBadResponse = errors.New("unparseable classifier response")

// jsonObjectPattern grabs the outermost JSON object from a response that
// wraps it in prose.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// rawVerdict is the JSON shape the model is asked to produce.
type rawVerdict struct {
	Relevant bool     `json:"relevant"`
	Services []string `json:"services"`
	Summary  string   `json:"summary"`
}

// parseVerdict turns a model response into a verdict for the announcement.
// Parsing is defensive: code fences are stripped first, then a bare JSON
// object is extracted from surrounding prose if direct parsing fails. Any
// response that still cannot be parsed yields a not-relevant verdict with
// ErrBadResponse rather than a propagated failure.
func parseVerdict(ann models.Announcement, response string) (models.Verdict, error) {
	verdict := models.Verdict{Announcement: ann}

	cleaned := extractJSON(response)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		match := jsonObjectPattern.FindString(cleaned)
		if match == "" {
			return verdict, ErrBadResponse
		}
		if err := json.Unmarshal([]byte(match), &raw); err != nil {
			return verdict, ErrBadResponse
		}
	}

	verdict.Relevant = raw.Relevant
	verdict.Services = raw.Services
	if raw.Relevant {
		verdict.Summary = raw.Summary
	}
	return verdict, nil
}
