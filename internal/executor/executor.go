// Package executor owns the single shared HTTP client and drives one
// request to a model.RequestResult. It never returns an error: every
// failure mode is captured as data in the result, per spec.md §4.2.
package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/pkg/model"
	"golang.org/x/net/http2"
)

const (
	// DefaultMaxConnections is the shared pool's MaxIdleConns, matching
	// DEFAULT_MAX_CONNECTIONS in the program this was distilled from.
	DefaultMaxConnections = 1000
	// DefaultMaxKeepalive is MaxIdleConnsPerHost / MaxConnsPerHost.
	DefaultMaxKeepalive = 200
	// DefaultKeepaliveExpiry is the idle connection timeout.
	DefaultKeepaliveExpiry = 30 * time.Second
	// DefaultTimeout is the per-request timeout unless overridden.
	DefaultTimeout = 30 * time.Second
	// MaxRedirects caps follow-redirect hops.
	MaxRedirects = 10
	// maxErrorMessageLen truncates error_message to spec.md's 200 chars.
	maxErrorMessageLen = 200
)

// Options configures the shared client. Zero-value Options yields the
// spec.md §4.2 defaults.
type Options struct {
	Timeout        time.Duration
	H2C            bool
	DisableHTTP2   bool
	InsecureTLS    bool
	DisableRedirect bool
}

// Client is the shared, connection-pooled HTTP client every VU issues
// requests through — one instance per run, many concurrent callers.
type Client struct {
	http *http.Client
}

// New builds the shared client with connection pool limits, HTTP/2
// negotiation with HTTP/1.1 fallback, and a redirect cap, exactly as
// spec.md §4.2 and the teacher's transport construction describe.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var rt http.RoundTripper
	if opts.H2C {
		rt = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: DefaultKeepaliveExpiry,
				}).DialContext(ctx, network, addr)
			},
		}
	} else {
		transport := &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.InsecureTLS},
			MaxIdleConns:        DefaultMaxConnections,
			MaxIdleConnsPerHost: DefaultMaxKeepalive,
			MaxConnsPerHost:     DefaultMaxKeepalive,
			IdleConnTimeout:     DefaultKeepaliveExpiry,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: DefaultKeepaliveExpiry,
			}).DialContext,
		}
		if !opts.DisableHTTP2 {
			_ = http2.ConfigureTransport(transport)
		}
		rt = transport
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
	if opts.DisableRedirect {
		httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		httpClient.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}

	return &Client{http: httpClient}
}

// Execute issues one request built from p and returns a RequestResult.
// It never panics or returns an error — every transport failure is
// classified and folded into the result, per spec.md §4.2 step 6.
func (c *Client) Execute(ctx context.Context, req model.ParsedRequest, p *reqprep.Prepared, vuID string) model.RequestResult {
	startedAtNs := time.Now().UnixNano()

	result := model.RequestResult{
		RequestName: req.Name,
		FolderPath:  req.FolderPath,
		URL:         p.URL,
		Method:      p.Method,
		StartedAtNs: startedAtNs,
		VUID:        vuID,
	}

	var body io.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
	if err != nil {
		return finish(result, startedAtNs, 0, 0, false, model.ErrProtocol, err.Error())
	}
	for _, h := range p.Headers {
		httpReq.Header.Set(h.Key, h.Value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return finish(result, startedAtNs, 0, 0, false, model.ErrCancelled, "cancelled")
		}
		kind, msg := classify(err)
		return finish(result, startedAtNs, 0, 0, false, kind, msg)
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, resp.Body)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 400
	return finish(result, startedAtNs, resp.StatusCode, n, ok, model.ErrNone, "")
}

func finish(r model.RequestResult, startedAtNs int64, status int, bytesRecv int64, ok bool, kind model.ErrorKind, msg string) model.RequestResult {
	r.StatusCode = status
	r.BytesRecv = bytesRecv
	r.OK = ok
	r.ErrorKind = kind
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	r.ErrorMessage = msg
	r.ElapsedMs = float64(time.Now().UnixNano()-startedAtNs) / 1e6
	return r
}

// classify maps a transport error into spec.md §4.2's four non-success
// categories: timeout, connection, protocol, other.
func classify(err error) (model.ErrorKind, string) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	var netErr net.Error
	if ok := asNetError(err, &netErr); ok && netErr.Timeout() {
		return model.ErrTimeout, msg
	}
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return model.ErrTimeout, msg
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "broken pipe"):
		return model.ErrConnection, msg
	case strings.Contains(lower, "malformed"),
		strings.Contains(lower, "protocol"),
		strings.Contains(lower, "tls"),
		strings.Contains(lower, "eof"):
		return model.ErrProtocol, msg
	default:
		return model.ErrOther, msg
	}
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}
