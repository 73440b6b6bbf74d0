package reqprep

import (
	"sync"
	"testing"

	"github.com/deli-labs/sayl/pkg/model"
)

func TestSubstitutionLiteral(t *testing.T) {
	cache := NewCache(map[string]string{"HOST": "example.com", "TOKEN": "abc123"})
	req := model.ParsedRequest{
		ID:     1,
		Method: "GET",
		URL:    "https://{{HOST}}/v1/users",
		Headers: []model.HeaderField{
			{Key: "Authorization", Value: "Bearer {{TOKEN}}"},
			{Key: "X-Unbound", Value: "{{MISSING}}"},
		},
	}

	p := cache.Prepare(req)
	if p.URL != "https://example.com/v1/users" {
		t.Fatalf("unexpected URL: %s", p.URL)
	}
	auth, ok := p.HeaderValue("authorization")
	if !ok || auth != "Bearer abc123" {
		t.Fatalf("unexpected auth header: %q ok=%v", auth, ok)
	}
	unbound, _ := p.HeaderValue("X-Unbound")
	if unbound != "{{MISSING}}" {
		t.Fatalf("expected unbound token left verbatim, got %q", unbound)
	}
}

func TestCacheIsComputedOnce(t *testing.T) {
	cache := NewCache(map[string]string{"N": "1"})
	req := model.ParsedRequest{ID: 7, URL: "https://x/{{N}}"}

	first := cache.Prepare(req)
	// Mutate the env after first prepare; a cached request must not
	// reflect it, proving the cache is keyed by ID and computed once.
	cache.env["N"] = "2"
	second := cache.Prepare(req)

	if first != second {
		t.Fatalf("expected same cached pointer across calls")
	}
	if second.URL != "https://x/1" {
		t.Fatalf("cached value changed after env mutation: %s", second.URL)
	}
}

func TestFormBodyEncoding(t *testing.T) {
	cache := NewCache(map[string]string{"ID": "42"})
	req := model.ParsedRequest{
		ID:       2,
		Method:   "POST",
		FormBody: map[string]string{"user_id": "{{ID}}"},
	}
	p := cache.Prepare(req)
	if string(p.Body) != "user_id=42" {
		t.Fatalf("unexpected form body: %s", p.Body)
	}
}

func TestPrepareConcurrentFirstAccessIsRaceFree(t *testing.T) {
	cache := NewCache(map[string]string{"HOST": "example.com"})
	req := model.ParsedRequest{ID: 9, URL: "https://{{HOST}}/v1"}

	const vus = 32
	var wg sync.WaitGroup
	wg.Add(vus)
	for i := 0; i < vus; i++ {
		go func() {
			defer wg.Done()
			p := cache.Prepare(req)
			if p.URL != "https://example.com/v1" {
				t.Errorf("unexpected URL from concurrent Prepare: %s", p.URL)
			}
		}()
	}
	wg.Wait()
}

func TestUUIDDynamicTokenIsSubstituted(t *testing.T) {
	cache := NewCache(nil)
	req := model.ParsedRequest{ID: 3, URL: "https://x/{{$uuid}}"}

	p := cache.Prepare(req)
	if p.URL == "https://x/{{$uuid}}" {
		t.Fatal("expected $uuid token to be replaced, not left verbatim")
	}
	if len(p.URL) != len("https://x/")+36 {
		t.Fatalf("expected a 36-char UUID substituted, got %q", p.URL)
	}
}
