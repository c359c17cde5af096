// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package scheduler implements the single-threaded cooperative task queue
// every pipeline and state operation runs on, plus the thread-safe "post"
// primitive device-thread callbacks use to reach it without touching
// scheduler-owned state directly.
package scheduler

import "context"

const defaultQueueDepth = 256

// Scheduler drains a buffered job queue on one goroutine. Every job runs to
// completion before the next starts, matching the cooperative,
// single-threaded execution model the pipeline and conversation tracker
// assume.
type Scheduler struct {
	jobs chan func()
}

func New() *Scheduler {
	return &Scheduler{jobs: make(chan func(), defaultQueueDepth)}
}

// Post enqueues fn to run on the scheduler goroutine. It is the
// call-soon-threadsafe equivalent: safe to call from any goroutine,
// including a host audio device's callback thread, and preserves FIFO
// order because the channel is a single ordered queue.
func (s *Scheduler) Post(fn func()) {
	s.jobs <- fn
}

// Run drains jobs until ctx is cancelled. It blocks the calling goroutine
// and should be started in its own goroutine by the caller.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.jobs:
			fn()
		}
	}
}

// RunOne runs the next queued job synchronously if one is already
// available, without blocking. It reports whether a job ran. Callers that
// want deterministic, single-goroutine tests of scheduler.Post-driven code
// use this instead of spinning up Run.
func (s *Scheduler) RunOne() bool {
	select {
	case fn := <-s.jobs:
		fn()
		return true
	default:
		return false
	}
}
