package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deli-labs/sayl/internal/executor"
	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/pkg/model"
)

func TestConcurrencyTracksTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := model.RunConfig{Users: 6, RampUpSeconds: 1, DurationSeconds: 2, Scenario: model.ScenarioGradual}
	client := executor.New(executor.Options{Timeout: time.Second, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	results := make(chan model.RequestResult, 10000)
	req := []model.ParsedRequest{{ID: 1, Method: "GET", URL: srv.URL}}

	sched := New(cfg, req, client, cache, results)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() {
		for range results {
		}
	}()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(1200 * time.Millisecond)
	active := sched.ActiveCount()
	if diff := abs(active - 6); diff > 1 {
		t.Fatalf("expected active VUs near target 6 after ramp, got %d", active)
	}

	<-done
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// TestRampDownVUsAreWaitedOnNotAbandoned guards against a scheduler
// that drops ramped-down VUs from bookkeeping the moment reconcile()
// asks them to stop: Stop is cooperative, so a slow-handler VU can
// still be mid-request when the run ends, and if nothing keeps waiting
// for it, its goroutine can try to send on the results channel after
// the caller has closed it.
func TestRampDownVUsAreWaitedOnNotAbandoned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := executor.New(executor.Options{Timeout: time.Second, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	results := make(chan model.RequestResult, 10000)
	req := []model.ParsedRequest{{ID: 1, Method: "GET", URL: srv.URL}}
	cfg := model.RunConfig{Users: 4, Scenario: model.ScenarioConstant}

	sched := New(cfg, req, client, cache, results)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ramp up to 4, then immediately ramp down to 0 while a request is
	// still in flight (the handler sleeps 150ms).
	sched.reconcile(ctx, 4)
	time.Sleep(20 * time.Millisecond)
	sched.reconcile(ctx, 0)

	sched.waitAll(time.Second)

	sched.mu.Lock()
	active, retiring := len(sched.active), len(sched.retiring)
	sched.mu.Unlock()
	if active != 0 || retiring != 0 {
		t.Fatalf("expected waitAll to fully drain active and retiring VUs, got active=%d retiring=%d", active, retiring)
	}

	// Closing results here must not race with any VU goroutine still
	// trying to send on it.
	close(results)
	for range results {
	}
}

func TestRampDispatchLimiterOnlyForGradual(t *testing.T) {
	gradual := model.RunConfig{Users: 10, RampUpSeconds: 5, Scenario: model.ScenarioGradual}
	if l := rampDispatchLimiter(gradual); l == nil {
		t.Fatal("expected a dispatch limiter for a gradual ramp")
	}

	for _, cfg := range []model.RunConfig{
		{Users: 10, RampUpSeconds: 5, Scenario: model.ScenarioConstant},
		{Users: 10, RampUpSeconds: 5, Scenario: model.ScenarioSpike},
		{Users: 10, RampUpSeconds: 0, Scenario: model.ScenarioGradual},
	} {
		if l := rampDispatchLimiter(cfg); l != nil {
			t.Fatalf("expected no dispatch limiter for %+v", cfg)
		}
	}
}
