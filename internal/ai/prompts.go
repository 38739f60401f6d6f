package ai

import (
	"fmt"
	"strings"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

const classifySystemPrompt = `You analyze cloud provider announcements and determine whether each one is relevant to a user, based on the services the user actually runs.

INSTRUCTIONS:
1. Extract ALL services mentioned BY NAME in the announcement. Do not dump the user's service list back if unsure.
2. For relevance, extract the ROOT SERVICE NAME from the announcement (e.g. "EC2" from "EC2 instances"), match service types to their base service, and recognize common abbreviations as their full names (Elastic Compute Cloud = EC2, Simple Storage Service = S3, Relational Database Service = RDS, and so on).
3. An announcement is relevant ONLY IF it mentions at least one service from the user's list, including services in the same product family (EC2 instances are part of EC2; use broad family matching).

SUMMARY STYLE:
- Objective, factual, third-person, neutral tone.
- Include specific details such as region names, percentages, or capabilities.

Respond with ONLY a valid JSON object:
- "relevant": true/false based on service matching
- "services": array of ALL service names mentioned in the announcement
- "summary": a concise summary if relevant, otherwise an empty string`

// ClassifyPrompt builds the system and user prompts for the relevance
// classification of a single announcement. The prompt stays bounded: the
// profile is a finite service list and announcement content is truncated at
// ingestion.
func ClassifyPrompt(ann models.Announcement, profile *models.UsageProfile) (systemPrompt string, userPrompt string) {
	var b strings.Builder

	b.WriteString("User's services:\n")
	for _, s := range profile.Services() {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	fmt.Fprintf(&b, "\nAnnouncement Title: %s\n", ann.Title)

	description := ann.Description
	if description == "" {
		description = ann.FullContent
	}
	if description != "" {
		fmt.Fprintf(&b, "Announcement Description: %s\n", description)
	}

	return classifySystemPrompt, b.String()
}

// extractJSON strips markdown code fences from a string that may contain
// JSON wrapped in ```json ... ``` or ``` ... ``` blocks. This handles the
// common case where LLMs return JSON inside code fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Try ```json ... ``` first.
	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Try plain ``` ... ```.
	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	return s
}
