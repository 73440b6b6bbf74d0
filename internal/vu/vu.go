// Package vu implements a single virtual user's cooperative run loop:
// pick the next request, prep it, execute it, emit the result, sleep
// for think-time, repeat — per spec.md §4.3.
package vu

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/deli-labs/sayl/internal/executor"
	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/pkg/model"
)

// Spec bundles everything a VU needs for its lifetime: the request
// sequence it replays in order, the shared executor, the shared
// RequestPrep cache, and an iteration budget (0 = unbounded). ID is
// optional; when empty, New assigns a fresh uuid-derived identity.
type Spec struct {
	ID         string
	Requests   []model.ParsedRequest
	Client     *executor.Client
	Cache      *reqprep.Cache
	Iterations int
	ThinkTime  time.Duration
	Results    chan<- model.RequestResult

	// DispatchLimiter, when set, is waited on once before the VU's
	// first request, smoothing the burst of a multi-VU spawn within a
	// single scheduler tick during ramp-up.
	DispatchLimiter *rate.Limiter
}

// VU is one running virtual user. Stop is cooperative: it is checked
// between requests and at the top of each iteration, never mid-flight,
// matching spec.md §5's "in-flight requests are not aborted... during
// normal shutdown."
type VU struct {
	id      string
	spec    Spec
	stopped int32
}

// New constructs a VU ready to Run, assigning a fresh identity if
// spec.ID is empty.
func New(spec Spec) *VU {
	id := spec.ID
	if id == "" {
		id = "vu-" + uuid.New().String()
	}
	return &VU{id: id, spec: spec}
}

// ID returns the VU's stable identity.
func (v *VU) ID() string { return v.id }

// Stop requests graceful shutdown: the VU finishes its current request
// (the executor's timeout still applies) and exits before starting the
// next one.
func (v *VU) Stop() {
	atomic.StoreInt32(&v.stopped, 1)
}

func (v *VU) stopRequested() bool {
	return atomic.LoadInt32(&v.stopped) == 1
}

// Run executes the VU loop until stopped, context cancellation, or the
// iteration budget is exhausted. It always attempts to send every
// result to spec.Results; a full channel blocks the VU, which is the
// backpressure mechanism spec.md §5 describes.
func (v *VU) Run(ctx context.Context) {
	if v.spec.DispatchLimiter != nil {
		if err := v.spec.DispatchLimiter.Wait(ctx); err != nil {
			return
		}
	}

	iterCount := 0
	for !v.stopRequested() && (v.spec.Iterations == 0 || iterCount < v.spec.Iterations) {
		if ctx.Err() != nil {
			return
		}
		for _, req := range v.spec.Requests {
			if v.stopRequested() || ctx.Err() != nil {
				return
			}
			p := v.spec.Cache.Prepare(req)
			result := v.spec.Client.Execute(ctx, req, p, v.id)

			select {
			case v.spec.Results <- result:
			case <-ctx.Done():
				return
			}

			if v.spec.ThinkTime > 0 {
				select {
				case <-time.After(v.spec.ThinkTime):
				case <-ctx.Done():
					return
				}
			}
		}
		iterCount++
	}
}
