package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

const (
	slackAPIURL      = "https://slack.com/api/chat.postMessage"
	slackHTTPTimeout = 10 * time.Second
)

// Slack posts notifications to a channel using a bot token and the
// chat.postMessage API.
type Slack struct {
	token   string
	channel string
	apiURL  string
	client  *http.Client
}

// Compile-time interface check.
var _ Sink = (*Slack)(nil)

// NewSlack creates a Slack sink posting to the given channel.
func NewSlack(token, channel string) *Slack {
	return &Slack{
		token:   token,
		channel: channel,
		apiURL:  slackAPIURL,
		client:  &http.Client{Timeout: slackHTTPTimeout},
	}
}

func (s *Slack) Name() string { return "slack" }

// slackResponse is the relevant portion of a chat.postMessage reply. Slack
// returns HTTP 200 even for API-level failures, so ok must be checked.
type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Send posts one announcement to the channel as a block message.
func (s *Slack) Send(ctx context.Context, v models.Verdict) error {
	payload := map[string]any{
		"channel": s.channel,
		"blocks":  buildBlocks(v),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	slog.Debug("posting to slack", "channel", s.channel, "announcement", v.Announcement.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("slack: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var sr slackResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return fmt.Errorf("slack: parse response: %w", err)
	}
	if !sr.OK {
		return fmt.Errorf("slack: API error: %s", sr.Error)
	}

	return nil
}

// buildBlocks formats an announcement as Slack blocks: a header, the
// summary, the mentioned services, and a link button.
func buildBlocks(v models.Verdict) []map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type":  "plain_text",
				"text":  v.Announcement.Title,
				"emoji": true,
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Summary:*\n%s", cleanSummary(v.Summary)),
			},
		},
	}

	if len(v.Services) > 0 {
		spans := make([]string, len(v.Services))
		for i, svc := range v.Services {
			spans[i] = fmt.Sprintf("`%s`", svc)
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Mentioned Services:* %s", strings.Join(spans, ", ")),
			},
		})
	}

	blocks = append(blocks, map[string]any{
		"type": "actions",
		"elements": []map[string]any{
			{
				"type": "button",
				"text": map[string]any{
					"type":  "plain_text",
					"text":  "View Details",
					"emoji": true,
				},
				"url": v.Announcement.Link,
			},
		},
	})

	return blocks
}

// cleanSummary strips label prefixes and bold markers that models sometimes
// prepend despite the prompt.
func cleanSummary(summary string) string {
	if summary == "" {
		return "No summary available."
	}

	for _, marker := range []string{"**Title:**", "**Summary:**", "Title:", "Summary:", "**"} {
		summary = strings.ReplaceAll(summary, marker, "")
	}
	return strings.TrimSpace(summary)
}
