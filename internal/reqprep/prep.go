package reqprep

import (
	"net/url"
	"strings"
	"sync"

	"github.com/deli-labs/sayl/pkg/model"
)

// Prepared is the cached, substitution-resolved form of a
// model.ParsedRequest: the exact bytes and headers HTTPExecutor will
// send, computed once per run regardless of how many VUs replay it.
type Prepared struct {
	Method  string
	URL     string
	Headers []model.HeaderField
	Body    []byte
}

// Cache holds one Prepared value per ParsedRequest.ID, computed lazily
// on first access and reused for the rest of the run. It is a map keyed
// by the ID (not by struct identity); the Prepared value is not stored
// on the ParsedRequest itself. Every spawned VU shares one Cache and
// calls Prepare concurrently from its own goroutine, so entries is
// guarded rather than left to race on first fill.
type Cache struct {
	env map[string]string

	mu      sync.RWMutex
	entries map[uint64]*Prepared
}

// NewCache builds a cache using env as the {{var}} binding source.
func NewCache(env map[string]string) *Cache {
	if env == nil {
		env = map[string]string{}
	}
	return &Cache{env: env, entries: make(map[uint64]*Prepared)}
}

// Prepare returns the cached Prepared form of req, computing it on
// first call for this request ID. Safe for concurrent use by multiple
// VUs.
func (c *Cache) Prepare(req model.ParsedRequest) *Prepared {
	c.mu.RLock()
	p, ok := c.entries[req.ID]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[req.ID]; ok {
		return p
	}
	p = c.render(req)
	c.entries[req.ID] = p
	return p
}

func (c *Cache) render(req model.ParsedRequest) *Prepared {
	p := &Prepared{
		Method: req.Method,
		URL:    c.substitute(req.URL),
	}

	headers := make([]model.HeaderField, 0, len(req.Headers))
	for _, h := range req.Headers {
		headers = append(headers, model.HeaderField{
			Key:   h.Key,
			Value: c.substitute(h.Value),
		})
	}
	p.Headers = headers

	switch {
	case len(req.FormBody) > 0:
		values := url.Values{}
		for k, v := range req.FormBody {
			values.Set(k, c.substitute(v))
		}
		p.Body = []byte(values.Encode())
	case req.Body != "":
		p.Body = []byte(c.substitute(req.Body))
	}

	return p
}

// substitute resolves a template once. {{$uuid}} is therefore also
// fixed for the lifetime of the cached Prepared value, not re-rolled
// per request replay; callers who need a fresh id per request should
// put it in the body at the executor layer instead of relying on this
// cache.
func (c *Cache) substitute(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return compile(s).execute(c.env)
}

// HeaderValue looks up a header's value with case-insensitive key
// equality, matching ParsedRequest's ordered-mapping semantics.
func (p *Prepared) HeaderValue(key string) (string, bool) {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}
