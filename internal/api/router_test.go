package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rowanlabs/cloudbrief/internal/pipeline"
	"github.com/rowanlabs/cloudbrief/internal/usage"
)

func TestHealthz(t *testing.T) {
	router := NewRouter(func(context.Context) (*pipeline.Report, error) {
		return &pipeline.Report{}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestRunEndpoint(t *testing.T) {
	t.Run("successful run returns the report", func(t *testing.T) {
		router := NewRouter(func(context.Context) (*pipeline.Report, error) {
			return &pipeline.Report{State: pipeline.StateDone, RelevantCount: 2}, nil
		})

		req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var report pipeline.Report
		if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
			t.Fatalf("decoding report: %v", err)
		}
		if report.State != pipeline.StateDone {
			t.Errorf("state = %s", report.State)
		}
		if report.RelevantCount != 2 {
			t.Errorf("relevant = %d", report.RelevantCount)
		}
	})

	t.Run("fatal usage failure maps to bad gateway", func(t *testing.T) {
		router := NewRouter(func(context.Context) (*pipeline.Report, error) {
			return &pipeline.Report{State: pipeline.StateFailed},
				&usage.FatalError{Status: http.StatusForbidden, Err: errors.New("denied")}
		})

		req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("other failures map to internal error", func(t *testing.T) {
		router := NewRouter(func(context.Context) (*pipeline.Report, error) {
			return &pipeline.Report{State: pipeline.StateFailed}, errors.New("boom")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("concurrent trigger conflicts", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		router := NewRouter(func(context.Context) (*pipeline.Report, error) {
			close(started)
			<-release
			return &pipeline.Report{State: pipeline.StateDone}, nil
		})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("first run status = %d, want 200", rec.Code)
			}
		}()

		<-started
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("overlapping run status = %d, want 409", rec.Code)
		}

		close(release)
		wg.Wait()
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
