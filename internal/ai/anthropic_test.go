package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rowanlabs/cloudbrief/internal/backoff"
	"github.com/rowanlabs/cloudbrief/internal/models"
)

// fastRetry keeps retry tests quick.
var fastRetry = backoff.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	MaxDelay:    5 * time.Millisecond,
	Jitter:      0,
}

func anthropicTextResponse(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"content": []map[string]string{{"text": text}},
	})
	if err != nil {
		t.Fatalf("marshaling response: %v", err)
	}
	return body
}

func TestAnthropicClassify(t *testing.T) {
	ann := models.Announcement{ID: "a1", Title: "EC2 price reduction"}
	profile := models.NewUsageProfile([]string{"EC2"})

	t.Run("successful classification", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != "test-key" {
				t.Errorf("missing api key header")
			}
			if r.Header.Get("anthropic-version") == "" {
				t.Errorf("missing anthropic-version header")
			}
			w.Write(anthropicTextResponse(t, `{"relevant": true, "services": ["EC2"], "summary": "Prices dropped."}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("test-key", "claude-haiku-4-5")
		p.apiURL = srv.URL

		verdict, err := p.Classify(context.Background(), ann, profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !verdict.Relevant {
			t.Error("expected relevant verdict")
		}
		if verdict.Summary != "Prices dropped." {
			t.Errorf("summary = %q", verdict.Summary)
		}
	})

	t.Run("retries throttling then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write(anthropicTextResponse(t, `{"relevant": false, "services": [], "summary": ""}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("test-key", "claude-haiku-4-5")
		p.apiURL = srv.URL
		p.retry = fastRetry

		verdict, err := p.Classify(context.Background(), ann, profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verdict.Relevant {
			t.Error("expected not-relevant verdict")
		}
		if got := calls.Load(); got != 2 {
			t.Errorf("expected 2 API calls, got %d", got)
		}
	})

	t.Run("api error is terminal", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "invalid model"},
			})
		}))
		defer srv.Close()

		p := NewAnthropicProvider("test-key", "bad-model")
		p.apiURL = srv.URL
		p.retry = fastRetry

		verdict, err := p.Classify(context.Background(), ann, profile)
		if err == nil {
			t.Fatal("expected error")
		}
		if verdict.Relevant {
			t.Error("degraded verdict should not be relevant")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("client error should not be retried, got %d calls", got)
		}
	})

	t.Run("unparseable response degrades", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(anthropicTextResponse(t, "I refuse to answer in JSON."))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("test-key", "claude-haiku-4-5")
		p.apiURL = srv.URL

		verdict, err := p.Classify(context.Background(), ann, profile)
		if err == nil {
			t.Fatal("expected parse error")
		}
		if verdict.Relevant {
			t.Error("degraded verdict should not be relevant")
		}
		if verdict.Announcement.ID != ann.ID {
			t.Error("degraded verdict should carry the announcement")
		}
	})
}

func TestOpenAIClassify(t *testing.T) {
	ann := models.Announcement{ID: "a1", Title: "S3 storage class"}
	profile := models.NewUsageProfile([]string{"S3"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"relevant": true, "services": ["S3"], "summary": "New class."}`}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini")
	p.apiURL = srv.URL

	verdict, err := p.Classify(context.Background(), ann, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Relevant {
		t.Error("expected relevant verdict")
	}
	if len(verdict.Services) != 1 || verdict.Services[0] != "S3" {
		t.Errorf("services = %v", verdict.Services)
	}
}
