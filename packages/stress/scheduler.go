package stress

import (
	"context"
	"math/rand"
	"sync"

	"golang.org/x/time/rate"
)

// Scheduler paces operations and picks which one runs next
type Scheduler struct {
	limiter *rate.Limiter
	sem     chan struct{} // semaphore for max concurrency

	mu          sync.Mutex
	rng         *rand.Rand
	ops         []Op
	weights     []int
	totalWeight int
}

// NewScheduler creates a scheduler for config. Operations with weight 0 are
// never picked.
func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}

	if config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	s.sem = make(chan struct{}, workers)

	for _, op := range Ops {
		if w := config.Weights[op]; w > 0 {
			s.ops = append(s.ops, op)
			s.weights = append(s.weights, w)
			s.totalWeight += w
		}
	}
	return s
}

// SelectOp picks an operation based on weights
func (s *Scheduler) SelectOp() Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.ops) {
	case 0:
		return ""
	case 1:
		return s.ops[0]
	}

	r := s.rng.Intn(s.totalWeight)
	cumulative := 0
	for i, w := range s.weights {
		cumulative += w
		if r < cumulative {
			return s.ops[i]
		}
	}
	return s.ops[len(s.ops)-1]
}

// Intn returns a random number in [0, n) from the scheduler's source.
func (s *Scheduler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Wait blocks until the rate limiter allows the next operation
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return ctx.Err()
}

// Acquire acquires a slot from the concurrency semaphore
func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a slot back to the semaphore
func (s *Scheduler) Release() {
	<-s.sem
}
