package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Options configures a Scheduler.
type Options struct {
	// MinDelay and MaxDelay bound the random inter-request gap.
	MinDelay time.Duration
	MaxDelay time.Duration
	// BurstEvery forces a long pause every Nth request.
	BurstEvery int
	// BurstPause is the duration of that long pause.
	BurstPause time.Duration
}

// DefaultOptions returns the pacing used against the live sites.
func DefaultOptions() Options {
	return Options{
		MinDelay:   2 * time.Second,
		MaxDelay:   4 * time.Second,
		BurstEvery: 10,
		BurstPause: 5 * time.Second,
	}
}

// Scheduler paces outbound requests to a remote site. Callers must call
// Wait before every request. State is explicit and owned by the value;
// Reset must be called at the start of each top-level scrape run so that
// independent runs do not share pacing history.
//
// The scheduler never fails; it only delays. The only error it returns is
// the context's, when the caller is cancelled mid-sleep.
type Scheduler struct {
	mu           sync.Mutex
	opts         Options
	requestCount int
	lastRequest  time.Time
	windowStart  time.Time
	rng          *rand.Rand

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler with the given options.
func NewScheduler(opts Options) *Scheduler {
	if opts.BurstEvery <= 0 {
		opts.BurstEvery = 10
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	return &Scheduler{
		opts:        opts,
		windowStart: time.Now(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepCtx,
	}
}

// Wait blocks for the delay required before the next outbound request.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.requestCount++
	count := s.requestCount
	last := s.lastRequest
	delay := s.opts.MinDelay
	if span := s.opts.MaxDelay - s.opts.MinDelay; span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span)))
	}
	s.mu.Unlock()

	var wait time.Duration
	if count%s.opts.BurstEvery == 0 {
		// Mandatory long pause regardless of other timing.
		wait = s.opts.BurstPause
	} else if !last.IsZero() {
		wait = delay - time.Since(last)
	}

	if wait > 0 {
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.lastRequest = time.Now()
	s.mu.Unlock()

	return nil
}

// Reset clears the pacing state at the start of a new scrape run.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestCount = 0
	s.lastRequest = time.Time{}
	s.windowStart = time.Now()
}

// RequestCount returns the number of requests scheduled since the last Reset.
func (s *Scheduler) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
