package ai

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

func TestParseVerdict(t *testing.T) {
	ann := models.Announcement{
		ID:    "test-id",
		Title: "EC2 adds new instance type",
	}

	tests := []struct {
		name         string
		response     string
		wantErr      error
		wantRelevant bool
		wantServices []string
		wantSummary  string
	}{
		{
			name:         "plain json",
			response:     `{"relevant": true, "services": ["EC2"], "summary": "New instance type."}`,
			wantRelevant: true,
			wantServices: []string{"EC2"},
			wantSummary:  "New instance type.",
		},
		{
			name:         "json code fence",
			response:     "```json\n{\"relevant\": true, \"services\": [\"S3\"], \"summary\": \"Storage update.\"}\n```",
			wantRelevant: true,
			wantServices: []string{"S3"},
			wantSummary:  "Storage update.",
		},
		{
			name:         "plain code fence",
			response:     "```\n{\"relevant\": false, \"services\": [], \"summary\": \"\"}\n```",
			wantRelevant: false,
			wantServices: []string{},
		},
		{
			name:         "json wrapped in prose",
			response:     `Here is my analysis: {"relevant": true, "services": ["Lambda"], "summary": "Runtime update."} Hope that helps!`,
			wantRelevant: true,
			wantServices: []string{"Lambda"},
			wantSummary:  "Runtime update.",
		},
		{
			name:         "summary dropped when not relevant",
			response:     `{"relevant": false, "services": ["DynamoDB"], "summary": "Should be dropped."}`,
			wantRelevant: false,
			wantServices: []string{"DynamoDB"},
			wantSummary:  "",
		},
		{
			name:     "no json at all",
			response: "I cannot classify this announcement.",
			wantErr:  ErrBadResponse,
		},
		{
			name:     "malformed json object",
			response: `{"relevant": true, "services": [`,
			wantErr:  ErrBadResponse,
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  ErrBadResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(ann, tt.response)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				// The default verdict must still be usable.
				if verdict.Relevant {
					t.Error("default verdict should not be relevant")
				}
				if verdict.Announcement.ID != ann.ID {
					t.Error("default verdict should carry the announcement")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Relevant != tt.wantRelevant {
				t.Errorf("relevant = %v, want %v", verdict.Relevant, tt.wantRelevant)
			}
			if !reflect.DeepEqual(verdict.Services, tt.wantServices) {
				t.Errorf("services = %v, want %v", verdict.Services, tt.wantServices)
			}
			if verdict.Summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", verdict.Summary, tt.wantSummary)
			}
			if verdict.Announcement.ID != ann.ID {
				t.Error("verdict should carry the announcement")
			}
		})
	}
}

func TestClassifyPrompt(t *testing.T) {
	profile := models.NewUsageProfile([]string{"EC2", "S3", "Lambda"})

	t.Run("includes profile services", func(t *testing.T) {
		ann := models.Announcement{
			Title:       "S3 announces new storage class",
			Description: "A cheaper storage class for cold data.",
		}
		system, user := ClassifyPrompt(ann, profile)

		if system == "" {
			t.Fatal("system prompt should not be empty")
		}
		for _, svc := range []string{"EC2", "S3", "Lambda"} {
			if !strings.Contains(user, svc) {
				t.Errorf("user prompt should mention %s", svc)
			}
		}
		if !strings.Contains(user, ann.Title) {
			t.Error("user prompt should contain the announcement title")
		}
		if !strings.Contains(user, ann.Description) {
			t.Error("user prompt should contain the announcement description")
		}
	})

	t.Run("falls back to full content", func(t *testing.T) {
		ann := models.Announcement{
			Title:       "RDS update",
			FullContent: "Extracted article body goes here.",
		}
		_, user := ClassifyPrompt(ann, profile)

		if !strings.Contains(user, ann.FullContent) {
			t.Error("user prompt should fall back to full content when description is empty")
		}
	})

	t.Run("omits description line when both empty", func(t *testing.T) {
		ann := models.Announcement{Title: "Bare title"}
		_, user := ClassifyPrompt(ann, profile)

		if strings.Contains(user, "Announcement Description:") {
			t.Error("user prompt should omit the description line when there is no content")
		}
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
