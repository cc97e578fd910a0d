package utils

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs jobs on at most maxWorkers goroutines and spaces job starts
// at least interval apart.
type WorkerPool struct {
	interval  time.Duration
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu   sync.Mutex
	next time.Time
}

// NewWorkerPool creates a WorkerPool. A zero interval disables pacing.
func NewWorkerPool(maxWorkers int, interval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		interval:  interval,
		semaphore: make(chan struct{}, maxWorkers),
	}
}

// Submit blocks until a worker is free, then runs job on it. It returns
// ctx.Err() without running job if ctx ends first.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) error {
	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		time.Sleep(wp.reserve())
		job()
	}()
	return nil
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// reserve claims the next start slot and returns how long to wait for it.
// Waiting happens outside the lock so workers queue for slots, not for
// each other's sleep.
func (wp *WorkerPool) reserve() time.Duration {
	if wp.interval <= 0 {
		return 0
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	now := time.Now()
	if wp.next.Before(now) {
		wp.next = now
	}
	wait := wp.next.Sub(now)
	wp.next = wp.next.Add(wp.interval)
	return wait
}

// Set is a concurrency-safe set used to skip repeated work items.
type Set[K comparable] struct {
	mu   sync.Mutex
	seen map[K]struct{}
}

func NewSet[K comparable]() *Set[K] {
	return &Set[K]{seen: make(map[K]struct{})}
}

// Add reports whether key was newly added.
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
