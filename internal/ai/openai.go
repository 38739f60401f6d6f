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
var _ Classifier = (*OpenAIProvider)(nil)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements Classifier using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
	retry  backoff.Policy
}

// NewOpenAIProvider creates an OpenAIProvider with a 60-second timeout
// HTTP client.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  model,
		apiURL: openaiAPIURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: backoff.Default,
	}
}

// openaiRequest is the request body for the OpenAI Chat Completions API.
type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

// openaiMessage is a single message in the OpenAI request.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the response body from the OpenAI Chat Completions API.
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify asks the OpenAI Chat Completions API whether the announcement is
// relevant to the usage profile. Throttling responses are retried with
// jittered backoff; on any terminal failure the returned verdict is the safe
// not-relevant default.
func (p *OpenAIProvider) Classify(ctx context.Context, ann models.Announcement, profile *models.UsageProfile) (models.Verdict, error) {
	systemPrompt, userPrompt := ClassifyPrompt(ann, profile)

	var text string
	err := p.retry.Do(ctx, func() error {
		var callErr error
		text, callErr = p.callAPI(ctx, systemPrompt, userPrompt)
		return callErr
	})
	if err != nil {
		return models.Verdict{Announcement: ann}, fmt.Errorf("openai classify: %w", err)
	}

	return parseVerdict(ann, text)
}

// callAPI makes an HTTP request to the OpenAI Chat Completions API and
// returns the text content from the first choice. Throttling and server
// errors are marked retryable for the backoff policy.
func (p *OpenAIProvider) callAPI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := openaiRequest{
		Model: p.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
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

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling OpenAI API", "model", p.model)

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
		slog.Warn("OpenAI API throttled or unavailable", "status", resp.StatusCode)
		return "", backoff.Retryable(fmt.Errorf("API returned status %d", resp.StatusCode))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response: no choices returned")
	}

	return apiResp.Choices[0].Message.Content, nil
}
