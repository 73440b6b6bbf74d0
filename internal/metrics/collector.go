// Package metrics implements the streaming aggregation pipeline:
// global + per-endpoint T-Digest percentiles, 1-second time-series
// buckets, a bounded ring buffer for histogram rendering, Apdex, and
// top-N error tallies. A single consumer goroutine owns Collector;
// FullAggregate/GetCachedAggregate may be called concurrently from a
// dashboard goroutine.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/deli-labs/sayl/pkg/model"
)

const (
	// DefaultMaxResults bounds the ring buffer used for histogram
	// rendering, matching DEFAULT_MAX_RESULTS in the source program.
	DefaultMaxResults = 100_000
	// DefaultCacheTTL is get_cached_aggregate's default TTL.
	DefaultCacheTTL = 500 * time.Millisecond
	// OverflowWarningThresholdPct flags when the ring buffer is nearly full.
	OverflowWarningThresholdPct = 0.95
	// bucketSeconds is the time-series resolution.
	bucketSeconds = 1
	// lateBucketGraceSeconds: results older than this many seconds
	// relative to the newest open bucket are folded into the earliest
	// still-open bucket instead of being dropped, per spec.md §3.
	lateBucketGraceSeconds = 2
	// topErrorsN bounds the top-error summary.
	topErrorsN = 5
	// apdexSatisfiedMs / apdexToleratingMs are the Apdex thresholds.
	apdexSatisfiedMs   = 500.0
	apdexToleratingMs  = 2000.0
)

type endpointAgg struct {
	key       model.EndpointKey
	total     int64
	successes int64
	failures  int64
	sumLatMs  float64
	digest    *TDigest
}

type bucket struct {
	count     int64
	successes int64
	failures  int64
	sumLatMs  float64
	hist      *hdrhistogram.Histogram
}

func newBucket() *bucket {
	return &bucket{hist: hdrhistogram.New(1, 30_000_000, 3)}
}

// Collector is the single-consumer aggregator. Construct once per run.
type Collector struct {
	mu sync.Mutex

	runStartNs int64
	endTimeSet bool
	endTimeNs  int64

	total, successes, failures, timeouts, connErrors int64
	apdexSatisfied, apdexTolerating                  int64

	globalDigest *TDigest
	endpoints    map[model.EndpointKey]*endpointAgg
	errorTallies map[string]*errorTally

	buckets      []*bucket
	oldestOpenIx int64

	ring       []model.RequestResult
	ringHead   int
	ringCount  int
	maxResults int

	cached     model.Aggregate
	cachedAt   time.Time
	cacheValid bool
}

type errorTally struct {
	kind  model.ErrorKind
	msg   string
	count int64
}

// New builds a Collector. runStartNs anchors time-series bucket 0.
func New(runStartNs int64, maxResults int) *Collector {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Collector{
		runStartNs:   runStartNs,
		globalDigest: NewTDigest(100),
		endpoints:    make(map[model.EndpointKey]*endpointAgg),
		errorTallies: make(map[string]*errorTally),
		ring:         make([]model.RequestResult, maxResults),
		maxResults:   maxResults,
	}
}

// SetEndTime freezes the run's wall-clock end for duration/TPS math.
func (c *Collector) SetEndTime(ns int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTimeNs = ns
	c.endTimeSet = true
}

// AddBatch folds a batch of results, matching the consumer's
// batch-drain discipline in spec.md §4.4 and §5.
func (c *Collector) AddBatch(results []model.RequestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		c.addLocked(r)
	}
}

// Add folds a single result.
func (c *Collector) Add(r model.RequestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(r)
}

func (c *Collector) addLocked(r model.RequestResult) {
	c.total++
	if r.OK {
		c.successes++
	} else {
		c.failures++
		switch r.ErrorKind {
		case model.ErrTimeout:
			c.timeouts++
		case model.ErrConnection:
			c.connErrors++
		}
	}

	if r.OK {
		c.globalDigest.Ingest(r.ElapsedMs)
		switch {
		case r.ElapsedMs <= apdexSatisfiedMs:
			c.apdexSatisfied++
		case r.ElapsedMs <= apdexToleratingMs:
			c.apdexTolerating++
		}
	} else if r.ErrorMessage != "" || r.ErrorKind != model.ErrNone {
		key := string(r.ErrorKind) + ":" + r.ErrorMessage
		t, ok := c.errorTallies[key]
		if !ok {
			t = &errorTally{kind: r.ErrorKind, msg: r.ErrorMessage}
			c.errorTallies[key] = t
		}
		t.count++
	}

	ek := r.EndpointKey()
	ea, ok := c.endpoints[ek]
	if !ok {
		ea = &endpointAgg{key: ek, digest: NewTDigest(100)}
		c.endpoints[ek] = ea
	}
	ea.total++
	if r.OK {
		ea.successes++
		ea.sumLatMs += r.ElapsedMs
		ea.digest.Ingest(r.ElapsedMs)
	} else {
		ea.failures++
	}

	c.ring[c.ringHead] = r
	c.ringHead = (c.ringHead + 1) % c.maxResults
	if c.ringCount < c.maxResults {
		c.ringCount++
	}

	c.foldBucket(r)
}

func (c *Collector) foldBucket(r model.RequestResult) {
	idx := (r.StartedAtNs - c.runStartNs) / int64(time.Second)
	if idx < 0 {
		// predates run_start: clamp to bucket 0, per spec.md's Open
		// Question resolution.
		idx = 0
	}
	if idx > c.oldestOpenIx {
		c.oldestOpenIx = idx
	}
	// A result older than the grace window relative to the newest
	// bucket observed is folded into the earliest still-open bucket
	// instead of reopening an already-closed one.
	floor := c.oldestOpenIx - lateBucketGraceSeconds
	if idx < floor {
		idx = floor
	}
	for int64(len(c.buckets)) <= idx {
		c.buckets = append(c.buckets, newBucket())
	}
	b := c.buckets[idx]
	b.count++
	if r.OK {
		b.successes++
		b.sumLatMs += r.ElapsedMs
		_ = b.hist.RecordValue(int64(r.ElapsedMs * 1000))
	} else {
		b.failures++
	}
}

// FullAggregate assembles the complete snapshot. Its cost grows with
// the number of endpoints, time-series buckets and distinct error
// tallies (each is copied, and endpoints and errors are sorted), plus
// the optional ring-buffer copy; it is not O(1).
func (c *Collector) FullAggregate(includeResponseTimes bool) model.Aggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(includeResponseTimes)
}

func (c *Collector) snapshotLocked(includeResponseTimes bool) model.Aggregate {
	now := time.Now()
	durationSec := c.durationSecondsLocked(now)

	agg := model.Aggregate{
		Total:            c.total,
		Successes:        c.successes,
		Failures:         c.failures,
		Timeouts:         c.timeouts,
		ConnectionErrors: c.connErrors,
		GeneratedAt:      now,
	}

	if durationSec > 0 {
		agg.TPSMean = float64(c.total) / durationSec
		agg.TPSInstant = c.instantTPSLocked()
	}
	if c.total > 0 {
		agg.ErrorRatePct = float64(c.failures) / float64(c.total) * 100
		agg.TimeoutRatePct = float64(c.timeouts) / float64(c.total) * 100
	}

	agg.P50Ms = c.globalDigest.Percentile(0.50)
	agg.P95Ms = c.globalDigest.Percentile(0.95)
	agg.P99Ms = c.globalDigest.Percentile(0.99)
	agg.MaxLatencyMs = c.globalDigest.Max()
	if c.globalDigest.Count() > 0 {
		agg.MeanLatencyMs = meanFromDigestCount(c)
	}
	satisfiedPlusHalf := float64(c.apdexSatisfied) + float64(c.apdexTolerating)/2
	if c.total > 0 {
		agg.Apdex = satisfiedPlusHalf / float64(c.total)
	}

	agg.Endpoints = c.endpointSnapshotLocked()
	agg.TimeSeries = c.timeSeriesSnapshotLocked()
	agg.TopErrors = c.topErrorsLocked()

	if includeResponseTimes {
		agg.ResponseTimesSample = c.ringSnapshotLocked()
	}
	return agg
}

func meanFromDigestCount(c *Collector) float64 {
	var sum float64
	var n int64
	for _, ea := range c.endpoints {
		sum += ea.sumLatMs
		n += ea.successes
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (c *Collector) endpointSnapshotLocked() []model.EndpointStats {
	out := make([]model.EndpointStats, 0, len(c.endpoints))
	for _, ea := range c.endpoints {
		stat := model.EndpointStats{
			Key:       ea.key,
			Total:     ea.total,
			Successes: ea.successes,
			Failures:  ea.failures,
			P50:       ea.digest.Percentile(0.50),
			P95:       ea.digest.Percentile(0.95),
			P99:       ea.digest.Percentile(0.99),
		}
		if ea.successes > 0 {
			stat.MeanLatency = ea.sumLatMs / float64(ea.successes)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

func (c *Collector) timeSeriesSnapshotLocked() []model.BucketStats {
	out := make([]model.BucketStats, len(c.buckets))
	for i, b := range c.buckets {
		stat := model.BucketStats{Index: int64(i), Count: b.count, Successes: b.successes, Failures: b.failures}
		if b.successes > 0 {
			stat.MeanLatency = b.sumLatMs / float64(b.successes)
			stat.P95Latency = float64(b.hist.ValueAtQuantile(95)) / 1000.0
		}
		out[i] = stat
	}
	return out
}

func (c *Collector) topErrorsLocked() []model.ErrorTally {
	tallies := make([]model.ErrorTally, 0, len(c.errorTallies))
	for _, t := range c.errorTallies {
		tallies = append(tallies, model.ErrorTally{ErrorKind: t.kind, Message: t.msg, Count: t.count})
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].Count > tallies[j].Count })
	if len(tallies) > topErrorsN {
		tallies = tallies[:topErrorsN]
	}
	return tallies
}

func (c *Collector) ringSnapshotLocked() []float64 {
	out := make([]float64, 0, c.ringCount)
	if c.ringCount < c.maxResults {
		for i := 0; i < c.ringCount; i++ {
			out = append(out, c.ring[i].ElapsedMs)
		}
		return out
	}
	for i := 0; i < c.maxResults; i++ {
		idx := (c.ringHead + i) % c.maxResults
		out = append(out, c.ring[idx].ElapsedMs)
	}
	return out
}

func (c *Collector) durationSecondsLocked(now time.Time) float64 {
	endNs := now.UnixNano()
	if c.endTimeSet {
		endNs = c.endTimeNs
	}
	d := float64(endNs-c.runStartNs) / 1e9
	if d < 0 {
		return 0
	}
	return d
}

func (c *Collector) instantTPSLocked() float64 {
	if len(c.buckets) == 0 {
		return 0
	}
	last := c.buckets[len(c.buckets)-1]
	return float64(last.count) / bucketSeconds
}

// GetCachedAggregate decouples render frame rate from aggregation
// work, per spec.md §4.4: returns the last snapshot if its age <= ttl.
func (c *Collector) GetCachedAggregate(ttl time.Duration) model.Aggregate {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cacheValid && time.Since(c.cachedAt) <= ttl {
		return c.cached
	}
	c.cached = c.snapshotLocked(false)
	c.cachedAt = time.Now()
	c.cacheValid = true
	return c.cached
}

// RingUtilizationPct reports how full the histogram ring buffer is;
// callers can compare against OverflowWarningThresholdPct.
func (c *Collector) RingUtilizationPct() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.ringCount) / float64(c.maxResults)
}

// TotalCount returns the exact running total (for property tests that
// need to assert conservation without taking a full snapshot).
func (c *Collector) TotalCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
