package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/pkg/model"
)

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(Options{Timeout: 2 * time.Second, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	req := model.ParsedRequest{ID: 1, Method: "GET", URL: srv.URL}
	p := cache.Prepare(req)

	result := client.Execute(context.Background(), req, p, "vu-1")
	if !result.Validate() {
		t.Fatalf("result failed invariants: %+v", result)
	}
	if !result.OK || result.StatusCode != 200 {
		t.Fatalf("expected ok 200, got %+v", result)
	}
	if result.ElapsedMs < 0 {
		t.Fatalf("elapsed_ms must be >= 0, got %f", result.ElapsedMs)
	}
}

func TestExecuteConnectionError(t *testing.T) {
	client := New(Options{Timeout: time.Second, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	req := model.ParsedRequest{ID: 1, Method: "GET", URL: "http://127.0.0.1:1"}
	p := cache.Prepare(req)

	result := client.Execute(context.Background(), req, p, "vu-1")
	if result.OK || result.StatusCode != 0 {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if result.ErrorKind != model.ErrConnection {
		t.Fatalf("expected connection error kind, got %s", result.ErrorKind)
	}
	if !result.Validate() {
		t.Fatalf("result failed invariants: %+v", result)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{Timeout: 5 * time.Millisecond, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	req := model.ParsedRequest{ID: 1, Method: "GET", URL: srv.URL}
	p := cache.Prepare(req)

	result := client.Execute(context.Background(), req, p, "vu-1")
	if result.ErrorKind != model.ErrTimeout {
		t.Fatalf("expected timeout error kind, got %s (%s)", result.ErrorKind, result.ErrorMessage)
	}
}

func TestExecuteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Options{Timeout: time.Second, DisableHTTP2: true})
	cache := reqprep.NewCache(nil)
	req := model.ParsedRequest{ID: 1, Method: "GET", URL: srv.URL}
	p := cache.Prepare(req)

	result := client.Execute(context.Background(), req, p, "vu-1")
	if result.OK {
		t.Fatalf("500 must not be ok")
	}
	if result.StatusCode != 500 {
		t.Fatalf("expected status 500, got %d", result.StatusCode)
	}
	if result.ErrorKind != model.ErrNone {
		t.Fatalf("http-level errors still carry error_kind=none per spec, got %s", result.ErrorKind)
	}
}
