// Package report renders a finished run's Aggregate or StressResult to
// JSON and plain text, per spec.md §6's Report component. Grounded on
// internal/report/report.go's data-assembly step (status-code/error
// table building, duration formatting) with the HTML/Chart.js
// templating dropped in favor of the machine- and human-readable
// output formats spec.md actually names; the header-redaction and
// URL-masking behavior is grounded on
// original_source/deli/report.py's mask_url/mask_error_message, which
// the distilled spec left out but which guards against leaking
// credentials into saved reports.
package report

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deli-labs/sayl/pkg/model"
)

// sensitiveHeaders lists header names redacted before a request ever
// appears in a report, matching report.py's SENSITIVE_HEADER_NAMES.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"api-key":             true,
	"apikey":              true,
	"token":               true,
	"proxy-authorization": true,
}

const redactedPlaceholder = "[REDACTED]"

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// RedactHeaderValue returns redactedPlaceholder for header names known
// to carry secrets, and the value unchanged otherwise.
func RedactHeaderValue(key, value string) string {
	if sensitiveHeaders[strings.ToLower(key)] {
		return redactedPlaceholder
	}
	return value
}

// MaskURL drops the query string and fragment from a URL so that
// tokens passed as query parameters never land in a saved report.
func MaskURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// MaskErrorMessage redacts embedded URLs and truncates long error text
// before it is written to a report.
func MaskErrorMessage(msg string, maxLength int) string {
	if msg == "" {
		return ""
	}
	msg = urlPattern.ReplaceAllString(msg, redactedPlaceholder)
	if maxLength > 0 && len(msg) > maxLength {
		return msg[:maxLength-3] + "..."
	}
	return msg
}

// RunSummary is the top-level JSON document for a completed load run.
type RunSummary struct {
	GeneratedAt time.Time      `json:"generated_at"`
	TargetURL   string         `json:"target_url"`
	Config      model.RunConfig `json:"config"`
	Aggregate   model.Aggregate `json:"aggregate"`
	Verdict     model.Verdict   `json:"verdict"`
}

// StressSummary is the top-level JSON document for a completed stress
// test.
type StressSummary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	TargetURL   string             `json:"target_url"`
	Config      model.StressConfig `json:"config"`
	Result      model.StressResult `json:"result"`
}

// BuildRunSummary assembles a RunSummary, masking the target URL.
func BuildRunSummary(targetURL string, cfg model.RunConfig, agg model.Aggregate, verdict model.Verdict) RunSummary {
	return RunSummary{
		GeneratedAt: agg.GeneratedAt,
		TargetURL:   MaskURL(targetURL),
		Config:      cfg,
		Aggregate:   agg,
		Verdict:     verdict,
	}
}

// BuildStressSummary assembles a StressSummary, masking the target URL.
func BuildStressSummary(targetURL string, cfg model.StressConfig, result model.StressResult) StressSummary {
	return StressSummary{
		TargetURL: MaskURL(targetURL),
		Config:    cfg,
		Result:    result,
	}
}

// WriteJSON marshals v as indented JSON.
func WriteJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteRunText renders a RunSummary as a human-readable plain-text
// report, the CLI's default stdout output per spec.md §7.
func WriteRunText(s RunSummary) string {
	var b strings.Builder
	a := s.Aggregate

	fmt.Fprintf(&b, "Load test report — %s\n", s.TargetURL)
	fmt.Fprintf(&b, "Generated at %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Requests:     %d total, %d ok, %d failed\n", a.Total, a.Successes, a.Failures)
	fmt.Fprintf(&b, "Throughput:   %.1f req/s (mean), %.1f req/s (instant)\n", a.TPSMean, a.TPSInstant)
	fmt.Fprintf(&b, "Latency:      mean %.1fms  p50 %.1fms  p95 %.1fms  p99 %.1fms  max %.1fms\n",
		a.MeanLatencyMs, a.P50Ms, a.P95Ms, a.P99Ms, a.MaxLatencyMs)
	fmt.Fprintf(&b, "Errors:       %.2f%% error rate, %.2f%% timeout rate\n", a.ErrorRatePct, a.TimeoutRatePct)
	fmt.Fprintf(&b, "Apdex:        %.3f\n\n", a.Apdex)

	if len(a.Endpoints) > 0 {
		b.WriteString("Per-endpoint:\n")
		eps := append([]model.EndpointStats(nil), a.Endpoints...)
		sort.Slice(eps, func(i, j int) bool { return eps[i].Total > eps[j].Total })
		for _, e := range eps {
			name := e.Key.RequestName
			if name == "" {
				name = e.Key.Method + " " + MaskURL(e.Key.URL)
			}
			fmt.Fprintf(&b, "  %-30s total=%-6d p95=%.1fms p99=%.1fms\n", name, e.Total, e.P95, e.P99)
		}
		b.WriteString("\n")
	}

	if len(a.TopErrors) > 0 {
		b.WriteString("Top errors:\n")
		for _, e := range a.TopErrors {
			fmt.Fprintf(&b, "  [%s] %s (x%d)\n", e.ErrorKind, MaskErrorMessage(e.Message, 120), e.Count)
		}
		b.WriteString("\n")
	}

	if s.Verdict.Pass {
		b.WriteString("SLA: PASS\n")
	} else {
		b.WriteString("SLA: FAIL\n")
		for _, v := range s.Verdict.Violations {
			fmt.Fprintf(&b, "  - %s: observed %.2f, threshold %.2f\n", v.MetricName, v.Observed, v.Threshold)
		}
	}
	return b.String()
}

// WriteStressText renders a StressSummary as plain text.
func WriteStressText(s StressSummary) string {
	var b strings.Builder
	r := s.Result

	fmt.Fprintf(&b, "Stress test report — %s\n\n", s.TargetURL)
	for _, p := range r.Phases {
		status := "ok"
		if p.Breached {
			status = "BREACHED"
		}
		fmt.Fprintf(&b, "  phase %d: target=%-5d reached=%-5d p95=%.1fms p99=%.1fms error_rate=%.2f%% [%s]\n",
			p.PhaseIndex, p.TargetUsers, p.ReachedUsers, p.Aggregate.P95Ms, p.Aggregate.P99Ms, p.Aggregate.ErrorRatePct, status)
	}
	fmt.Fprintf(&b, "\nBreaking point:        %d users\n", r.BreakingPoint)
	fmt.Fprintf(&b, "Max sustainable load:  %d users\n", r.MaxSustainableLoad)
	if r.FirstErrorAtUsers > 0 {
		fmt.Fprintf(&b, "First error observed:  %d users\n", r.FirstErrorAtUsers)
	}
	if r.NonlinearLatencyAtUsers > 0 {
		fmt.Fprintf(&b, "Nonlinear latency from: %d users\n", r.NonlinearLatencyAtUsers)
	}
	return b.String()
}
