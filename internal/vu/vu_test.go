package vu

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

func TestVURunsAllIterations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	results := make(chan model.RequestResult, 100)
	v := New(Spec{
		ID:         "vu-1",
		Requests:   []model.ParsedRequest{{ID: 1, Method: "GET", URL: srv.URL}},
		Client:     executor.New(executor.Options{Timeout: time.Second, DisableHTTP2: true}),
		Cache:      reqprep.NewCache(nil),
		Iterations: 3,
		Results:    results,
	})

	v.Run(context.Background())
	close(results)

	count := 0
	for r := range results {
		if !r.OK {
			t.Fatalf("expected ok result, got %+v", r)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 results, got %d", count)
	}
}

func TestNewAssignsIDWhenUnset(t *testing.T) {
	v := New(Spec{})
	if v.ID() == "" {
		t.Fatal("expected a generated ID when Spec.ID is empty")
	}
	other := New(Spec{})
	if v.ID() == other.ID() {
		t.Fatal("expected distinct generated IDs across VUs")
	}
}

func TestVUStopsGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	results := make(chan model.RequestResult, 1000)
	v := New(Spec{
		ID:       "vu-1",
		Requests: []model.ParsedRequest{{ID: 1, Method: "GET", URL: srv.URL}},
		Client:   executor.New(executor.Options{Timeout: time.Second, DisableHTTP2: true}),
		Cache:    reqprep.NewCache(nil),
		Results:  results,
	})

	done := make(chan struct{})
	go func() {
		v.Run(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	v.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("VU did not stop after Stop() was called")
	}
}
