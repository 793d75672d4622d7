/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"sync"
	"time"
)

// FadeScheduler invokes a callback at a bounded interval for the
// lifetime of one crossfade, carrying wall-clock elapsed time. Pause
// suspends elapsed accumulation so a fade resumes from the same
// fraction, not from scratch. Implementations must not invoke the
// callback while holding their own locks.
type FadeScheduler interface {
	Start(period time.Duration, fn func(elapsed time.Duration))
	Pause()
	Resume()
	Stop()
}

// tickerScheduler is the production FadeScheduler backed by a
// time.Ticker on its own goroutine.
type tickerScheduler struct {
	mu          sync.Mutex
	fn          func(time.Duration)
	cancel      chan struct{}
	paused      bool
	accumulated time.Duration
	resumedAt   time.Time
}

// NewTickerScheduler returns a wall-clock FadeScheduler.
func NewTickerScheduler() FadeScheduler {
	return &tickerScheduler{}
}

func (s *tickerScheduler) Start(period time.Duration, fn func(elapsed time.Duration)) {
	s.Stop()
	s.mu.Lock()
	s.fn = fn
	s.paused = false
	s.accumulated = 0
	s.resumedAt = time.Now()
	cancel := make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(period, cancel)
}

func (s *tickerScheduler) run(period time.Duration, cancel chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.paused {
				s.mu.Unlock()
				continue
			}
			elapsed := s.accumulated + time.Since(s.resumedAt)
			fn := s.fn
			s.mu.Unlock()
			if fn != nil {
				fn(elapsed)
			}
		}
	}
}

func (s *tickerScheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || s.paused {
		return
	}
	s.accumulated += time.Since(s.resumedAt)
	s.paused = true
}

func (s *tickerScheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || !s.paused {
		return
	}
	s.resumedAt = time.Now()
	s.paused = false
}

func (s *tickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		close(s.cancel)
		s.cancel = nil
	}
	s.fn = nil
}
