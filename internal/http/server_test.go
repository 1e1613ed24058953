package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetbot/internal/core"
	"budgetbot/internal/metrics"
)

func TestHealthAndMetrics(t *testing.T) {
	metrics.Init()
	srv := NewServer(":0", nil, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", rr.Code, rr.Body.String())
	}

	metrics.SchedulerTicks.Inc()
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "budget_scheduler_ticks_total") {
		t.Fatalf("metrics status=%d, missing scheduler counter", rr.Code)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantStatus int
		wantState  string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name: "all ready",
			checks: map[string]ReadinessCheck{
				"storage":   func(context.Context) error { return nil },
				"transport": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name: "storage down",
			checks: map[string]ReadinessCheck{
				"storage":   func(context.Context) error { return core.ErrStorageUnavailable },
				"transport": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", nil, tt.checks)
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("readyz status=%d, want %d", rr.Code, tt.wantStatus)
			}
			var body readyResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState {
				t.Errorf("status = %q, want %q", body.Status, tt.wantState)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Errorf("expected %d checks reported, got %v", len(tt.checks), body.Checks)
			}
			if tt.wantStatus != http.StatusOK && body.Checks["storage"] != core.ErrStorageUnavailable.Error() {
				t.Errorf("storage check = %q", body.Checks["storage"])
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(":0", nil, nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for routes outside the ops surface, got %d", rr.Code)
	}
}
