package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanlabs/cloudbrief/internal/backoff"
	"github.com/rowanlabs/cloudbrief/internal/models"
)

// Compile-time interface check.
var _ Classifier = (*AnthropicProvider)(nil)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Classifier using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
	retry  backoff.Policy
}

// NewAnthropicProvider creates an AnthropicProvider with a 60-second timeout
// HTTP client.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		apiURL: anthropicAPIURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: backoff.Default,
	}
}

// anthropicRequest is the request body for the Anthropic Messages API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the Anthropic request.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Anthropic Messages API.
type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify asks the Anthropic Messages API whether the announcement is
// relevant to the usage profile. Throttling responses are retried with
// jittered backoff; on any terminal failure the returned verdict is the safe
// not-relevant default.
func (p *AnthropicProvider) Classify(ctx context.Context, ann models.Announcement, profile *models.UsageProfile) (models.Verdict, error) {
	systemPrompt, userPrompt := ClassifyPrompt(ann, profile)

	var text string
	err := p.retry.Do(ctx, func() error {
		var callErr error
		text, callErr = p.callAPI(ctx, systemPrompt, userPrompt)
		return callErr
	})
	if err != nil {
		return models.Verdict{Announcement: ann}, fmt.Errorf("anthropic classify: %w", err)
	}

	return parseVerdict(ann, text)
}

// callAPI makes an HTTP request to the Anthropic Messages API and returns
// the text content from the first content block. Throttling and server
// errors are marked retryable for the backoff policy.
func (p *AnthropicProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	slog.Debug("calling Anthropic API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", backoff.Retryable(fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		slog.Warn("Anthropic API throttled or unavailable", "status", resp.StatusCode)
		return "", backoff.Retryable(fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response: no content blocks returned")
	}

	return apiResp.Content[0].Text, nil
}
