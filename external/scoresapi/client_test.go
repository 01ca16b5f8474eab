package scoresapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/platform/resilience"
)

const scoresResponse = `[
	{"games":[
		{"status":{"state":"FINAL"},"goals":[
			{"scorer":{"player":"David Pastrnak"}},
			{"scorer":{"player":"David Pastrnak"}},
			{"scorer":{"player":"Auston Matthews"}}
		]},
		{"status":{"state":"LIVE"},"goals":[
			{"scorer":{"player":"William Nylander"}}
		]}
	]},
	{"games":[
		{"status":{"state":"FINAL"},"goals":[
			{"scorer":{"player":"David Pastrnak"}}
		]}
	]}
]`

func newTestClient(serverURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL: serverURL,
		Retry:   resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Logger:  logging.NewNop(),
	})
}

func TestRecentGoalScorers(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		w.Write([]byte(scoresResponse))
	}))
	defer server.Close()

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	scorers, err := newTestClient(server.URL).RecentGoalScorers(context.Background(), from, to)
	if err != nil {
		t.Fatalf("RecentGoalScorers() error = %v", err)
	}

	if got := scorers["David Pastrnak"]; got != 3 {
		t.Fatalf("Pastrnak goals = %d, want 3 summed across days", got)
	}
	if got := scorers["Auston Matthews"]; got != 1 {
		t.Fatalf("Matthews goals = %d, want 1", got)
	}
	if _, ok := scorers["William Nylander"]; ok {
		t.Fatal("goals from non-final games must not count")
	}
	if q := gotQuery.Load().(string); q != "startDate=2026-01-10&endDate=2026-01-15" {
		t.Fatalf("query = %q", q)
	}
}

func TestRecentGoalScorersInvalidWindow(t *testing.T) {
	client := newTestClient("http://unreachable.invalid")
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := client.RecentGoalScorers(context.Background(), from, from.AddDate(0, 0, -1)); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestRecentGoalScorersRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	scorers, err := newTestClient(server.URL).RecentGoalScorers(context.Background(), from, from.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("RecentGoalScorers() error = %v", err)
	}
	if len(scorers) != 0 {
		t.Fatalf("scorers = %v, want empty", scorers)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server called %d times, want 3", got)
	}
}

func TestRecentGoalScorersClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient(server.URL).RecentGoalScorers(context.Background(), from, from.AddDate(0, 0, 5))
	if err == nil {
		t.Fatal("expected error on 404")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server called %d times, want 1", got)
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Retry:   resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
		Logger: logging.NewNop(),
	})

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 5)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.RecentGoalScorers(ctx, from, to); err == nil {
			t.Fatalf("call %d should fail", i+1)
		}
	}

	_, err := client.RecentGoalScorers(ctx, from, to)
	if err == nil {
		t.Fatal("expected circuit breaker rejection")
	}
	if got := client.breaker.State(); got != resilience.CircuitStateOpen {
		t.Fatalf("breaker state = %v, want open", got)
	}
}
