package metrics

import (
	"testing"
	"time"

	"github.com/deli-labs/sayl/pkg/model"
)

func mkResult(name string, elapsedMs float64, ok bool, kind model.ErrorKind, offsetSec int64) model.RequestResult {
	return model.RequestResult{
		RequestName: name,
		Method:      "GET",
		URL:         "https://example.com/" + name,
		StatusCode:  200,
		ElapsedMs:   elapsedMs,
		OK:          ok,
		ErrorKind:   kind,
		StartedAtNs: offsetSec * int64(time.Second),
	}
}

func TestCounterMonotonicity(t *testing.T) {
	c := New(0, 1000)
	s1 := c.FullAggregate(false)
	for i := 0; i < 50; i++ {
		c.Add(mkResult("a", 10, true, model.ErrNone, 0))
	}
	s2 := c.FullAggregate(false)
	if s2.Total < s1.Total || s2.Successes < s1.Successes || s2.Failures < s1.Failures {
		t.Fatalf("counters not monotonic: s1=%+v s2=%+v", s1, s2)
	}
}

func TestResultConservation(t *testing.T) {
	c := New(0, 1000)
	for i := 0; i < 20; i++ {
		c.Add(mkResult("a", 10, true, model.ErrNone, 0))
	}
	for i := 0; i < 10; i++ {
		c.Add(mkResult("b", 10, false, model.ErrConnection, 0))
	}
	agg := c.FullAggregate(false)
	var sum int64
	for _, e := range agg.Endpoints {
		sum += e.Total
	}
	if sum != agg.Total {
		t.Fatalf("endpoint totals (%d) do not conserve to global total (%d)", sum, agg.Total)
	}
}

func TestPercentileMonotonicity(t *testing.T) {
	c := New(0, 10000)
	for i := 1; i <= 1000; i++ {
		c.Add(mkResult("a", float64(i), true, model.ErrNone, 0))
	}
	agg := c.FullAggregate(false)
	if !(agg.P50Ms <= agg.P95Ms && agg.P95Ms <= agg.P99Ms && agg.P99Ms <= agg.MaxLatencyMs) {
		t.Fatalf("percentiles not monotonic: %+v", agg)
	}
}

func TestRingBufferBound(t *testing.T) {
	const maxResults = 50
	c := New(0, maxResults)
	for i := 0; i < maxResults*3; i++ {
		c.Add(mkResult("a", 1, true, model.ErrNone, 0))
	}
	agg := c.FullAggregate(true)
	if len(agg.ResponseTimesSample) != maxResults {
		t.Fatalf("expected ring buffer len %d, got %d", maxResults, len(agg.ResponseTimesSample))
	}
}

func TestLateBucketClamp(t *testing.T) {
	c := New(0, 1000)
	// Push a result that predates run_start entirely.
	c.Add(mkResult("a", 5, true, model.ErrNone, -10))
	agg := c.FullAggregate(false)
	if len(agg.TimeSeries) == 0 || agg.TimeSeries[0].Count != 1 {
		t.Fatalf("expected predating result clamped into bucket 0, got %+v", agg.TimeSeries)
	}
}

func TestApdexDividesByAllRequestsNotJustSuccesses(t *testing.T) {
	c := New(0, 1000)
	for i := 0; i < 50; i++ {
		c.Add(mkResult("a", 5, true, model.ErrNone, 0))
	}
	for i := 0; i < 50; i++ {
		c.Add(mkResult("a", 5, false, model.ErrOther, 0))
	}
	agg := c.FullAggregate(false)
	if agg.Apdex != 0.5 {
		t.Fatalf("expected apdex 0.5 for 50 fast successes + 50 failures, got %v", agg.Apdex)
	}
}

func TestCachedAggregateTTL(t *testing.T) {
	c := New(0, 1000)
	c.Add(mkResult("a", 5, true, model.ErrNone, 0))
	first := c.GetCachedAggregate(50 * time.Millisecond)
	c.Add(mkResult("a", 5, true, model.ErrNone, 0))
	cached := c.GetCachedAggregate(50 * time.Millisecond)
	if cached.Total != first.Total {
		t.Fatalf("expected cached snapshot to be reused within TTL")
	}
	time.Sleep(60 * time.Millisecond)
	fresh := c.GetCachedAggregate(50 * time.Millisecond)
	if fresh.Total != 2 {
		t.Fatalf("expected fresh snapshot after TTL expiry, got total=%d", fresh.Total)
	}
}
