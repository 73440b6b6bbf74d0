// Package model holds the shared vocabulary types passed between the
// scheduler, executor, metrics, and stress subsystems. Nothing here
// performs I/O; it is the plain-record layer the rest of the engine is
// built on.
package model

import "time"

// ErrorKind classifies why a request attempt did not complete as ok.
type ErrorKind string

const (
	ErrNone       ErrorKind = "none"
	ErrTimeout    ErrorKind = "timeout"
	ErrConnection ErrorKind = "connection"
	ErrProtocol   ErrorKind = "protocol"
	ErrOther      ErrorKind = "other"
	ErrCancelled  ErrorKind = "cancelled"
)

// Scenario names a load-test VU-count shape.
type Scenario string

const (
	ScenarioConstant Scenario = "constant"
	ScenarioGradual  Scenario = "gradual"
	ScenarioSpike    Scenario = "spike"
)

// StressScenario names a stress-test phase progression.
type StressScenario string

const (
	StressLinearOverload StressScenario = "linear_overload"
	StressSpike          StressScenario = "spike_stress"
	StressSoak           StressScenario = "soak_stress"
)

// ParsedRequest is immutable after construction. ID is a stable,
// monotonically assigned identity used as the key of the RequestPrep
// cache's map; the prepared form is not stored on the request.
type ParsedRequest struct {
	ID         uint64            `json:"id"`
	Name       string            `json:"name"`
	FolderPath string            `json:"folder_path"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    []HeaderField     `json:"headers"` // ordered; case-insensitive key equality
	Body       string            `json:"body"`    // raw text body, empty if none
	FormBody   map[string]string `json:"form_body,omitempty"`
	QueryParam []HeaderField     `json:"query_params,omitempty"`
}

// HeaderField preserves insertion order while allowing case-insensitive
// lookups, matching ParsedRequest's "ordered mapping" requirement.
type HeaderField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RequestResult is emitted exactly once per attempted request.
type RequestResult struct {
	RequestName  string    `json:"request_name"`
	FolderPath   string    `json:"folder_path"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"status_code"`
	ElapsedMs    float64   `json:"elapsed_ms"`
	BytesRecv    int64     `json:"bytes_recv"`
	OK           bool      `json:"ok"`
	ErrorKind    ErrorKind `json:"error_kind"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAtNs  int64     `json:"started_at_ns"`
	VUID         string    `json:"vu_id"`
}

// Validate enforces the cross-field invariants spec.md §3 names:
// elapsed_ms >= 0, status_code == 0 implies !ok, ok implies error_kind == none.
func (r RequestResult) Validate() bool {
	if r.ElapsedMs < 0 {
		return false
	}
	if r.StatusCode == 0 && r.OK {
		return false
	}
	if r.OK && r.ErrorKind != ErrNone {
		return false
	}
	return true
}

// EndpointKey identifies a per-endpoint tally bucket. RequestName is
// preferred when present; otherwise Method+URL forms the key.
type EndpointKey struct {
	RequestName string `json:"request_name,omitempty"`
	Method      string `json:"method,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (r RequestResult) EndpointKey() EndpointKey {
	if r.RequestName != "" {
		return EndpointKey{RequestName: r.RequestName}
	}
	return EndpointKey{Method: r.Method, URL: r.URL}
}

// BucketStats is one 1-second time-series entry.
type BucketStats struct {
	Index       int64   `json:"index"`
	Count       int64   `json:"count"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	MeanLatency float64 `json:"mean_latency_ms"`
	P95Latency  float64 `json:"p95_latency_ms"`
}

// EndpointStats is the per-endpoint breakdown inside an Aggregate.
type EndpointStats struct {
	Key         EndpointKey `json:"key"`
	Total       int64       `json:"total"`
	Successes   int64       `json:"successes"`
	Failures    int64       `json:"failures"`
	MeanLatency float64     `json:"mean_latency_ms"`
	P50         float64     `json:"p50_ms"`
	P95         float64     `json:"p95_ms"`
	P99         float64     `json:"p99_ms"`
}

// ErrorTally is one entry of a top-N error summary.
type ErrorTally struct {
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
	Count     int64     `json:"count"`
}

// Aggregate is an immutable snapshot of counters, percentiles,
// per-endpoint tallies, and time-series buckets at a moment in time.
type Aggregate struct {
	Total            int64 `json:"total"`
	Successes        int64 `json:"successes"`
	Failures         int64 `json:"failures"`
	Timeouts         int64 `json:"timeouts"`
	ConnectionErrors int64 `json:"connection_errors"`

	TPSInstant float64 `json:"tps_instant"`
	TPSMean    float64 `json:"tps_mean"`

	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50Ms         float64 `json:"p50_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`

	ErrorRatePct   float64 `json:"error_rate_pct"`
	TimeoutRatePct float64 `json:"timeout_rate_pct"`

	Endpoints  []EndpointStats `json:"endpoints,omitempty"`
	TimeSeries []BucketStats   `json:"time_series,omitempty"`
	TopErrors  []ErrorTally    `json:"top_errors,omitempty"`

	// Apdex is the Apdex score using the collector's fixed 500ms
	// satisfied / 2000ms tolerating thresholds (supplementary feature
	// carried over from the program this spec was distilled from).
	Apdex float64 `json:"apdex"`

	ResponseTimesSample []float64 `json:"response_times_sample,omitempty"` // only populated when requested

	GeneratedAt time.Time `json:"generated_at"`
}

// RunConfig is ScenarioConfig from spec.md §6, a load-test run
// definition.
type RunConfig struct {
	Users             int       `json:"users" yaml:"users"`
	RampUpSeconds     int       `json:"ramp_up_seconds" yaml:"ramp_up_seconds"`
	DurationSeconds   int       `json:"duration_seconds" yaml:"duration_seconds"`
	Iterations        int       `json:"iterations,omitempty" yaml:"iterations"`
	ThinkTimeMs       int       `json:"think_time_ms" yaml:"think_time_ms"`
	Scenario          Scenario  `json:"scenario" yaml:"scenario"`
	SpikeUsers        int       `json:"spike_users,omitempty" yaml:"spike_users"`
	SpikeDurationSec  int       `json:"spike_duration_seconds,omitempty" yaml:"spike_duration_seconds"`
	SLAP95Ms          *float64  `json:"sla_p95_ms,omitempty" yaml:"sla_p95_ms"`
	SLAP99Ms          *float64  `json:"sla_p99_ms,omitempty" yaml:"sla_p99_ms"`
	SLAErrorRatePct   *float64  `json:"sla_error_rate_pct,omitempty" yaml:"sla_error_rate_pct"`
	SLATimeoutRatePct *float64  `json:"sla_timeout_rate_pct,omitempty" yaml:"sla_timeout_rate_pct"`
}

// StressConfig is StressConfig from spec.md §6.
type StressConfig struct {
	Scenario            StressScenario `json:"scenario" yaml:"scenario"`
	InitialUsers        int            `json:"initial_users" yaml:"initial_users"`
	StepUsers           int            `json:"step_users" yaml:"step_users"`
	StepIntervalSeconds int            `json:"step_interval_seconds" yaml:"step_interval_seconds"`
	MaxUsers            int            `json:"max_users" yaml:"max_users"`
	ThinkTimeMs         int            `json:"think_time_ms" yaml:"think_time_ms"`
	SpikeUsers          int            `json:"spike_users,omitempty" yaml:"spike_users"`
	SpikeHoldSeconds    int            `json:"spike_hold_seconds,omitempty" yaml:"spike_hold_seconds"`
	SoakUsers           int            `json:"soak_users,omitempty" yaml:"soak_users"`
	SoakDurationSeconds int            `json:"soak_duration_seconds,omitempty" yaml:"soak_duration_seconds"`
	SLAP95Ms            float64        `json:"sla_p95_ms" yaml:"sla_p95_ms"`
	SLAP99Ms            float64        `json:"sla_p99_ms" yaml:"sla_p99_ms"`
	SLAErrorRatePct     float64        `json:"sla_error_rate_pct" yaml:"sla_error_rate_pct"`
	SLATimeoutRatePct   float64        `json:"sla_timeout_rate_pct" yaml:"sla_timeout_rate_pct"`
}

// PhaseResult is one stress-test phase outcome.
type PhaseResult struct {
	PhaseIndex    int           `json:"phase_index"`
	TargetUsers   int           `json:"target_users"`
	ReachedUsers  int           `json:"reached_users"`
	Duration      time.Duration `json:"duration_ns"`
	Aggregate     Aggregate     `json:"aggregate"`
	Breached      bool          `json:"breached"`
	BreachReasons []Violation   `json:"breach_reasons,omitempty"`
}

// StressResult is the final output of a stress test run.
type StressResult struct {
	Phases             []PhaseResult `json:"phases"`
	BreakingPoint      int           `json:"breaking_point"`
	MaxSustainableLoad int           `json:"max_sustainable_load"`
	// FirstErrorAtUsers and NonlinearLatencyAtUsers are supplementary
	// detections carried over from the program this spec was
	// distilled from (stress_runner.py's _first_error_users and
	// _detect_nonlinear_latency); 0 means "not observed."
	FirstErrorAtUsers       int `json:"first_error_at_users,omitempty"`
	NonlinearLatencyAtUsers int `json:"nonlinear_latency_at_users,omitempty"`
}

// Violation records one SLA threshold breach.
type Violation struct {
	MetricName string  `json:"metric_name"`
	Observed   float64 `json:"observed"`
	Threshold  float64 `json:"threshold"`
}

// Verdict is the SLA evaluator's pure output.
type Verdict struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations,omitempty"`
}
