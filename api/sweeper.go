/*
sweeper.go - Idle session pruning

PURPOSE:
  Periodically drops sessions that have been idle longer than the
  registry's TTL so abandoned books do not accumulate in memory.

USAGE:
  sweeper := NewSessionSweeper(sessions, 10*time.Minute, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - session.go: Sessions.Prune
*/
package api

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionSweeper prunes idle sessions on a ticker.
type SessionSweeper struct {
	Sessions      *Sessions
	CheckInterval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSessionSweeper(sessions *Sessions, interval time.Duration, log *zap.Logger) *SessionSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionSweeper{
		Sessions:      sessions,
		CheckInterval: interval,
		log:           log.Named("sweeper"),
	}
}

// Start begins sweeping. A non-positive interval leaves the sweeper idle.
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CheckInterval <= 0 {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker.C, s.stop)

	s.log.Info("started", zap.Duration("interval", s.CheckInterval))
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("stopped")
}

func (s *SessionSweeper) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-tick:
			s.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep prunes once and returns the number of sessions dropped.
func (s *SessionSweeper) Sweep() int {
	dropped := s.Sessions.Prune()
	if len(dropped) > 0 {
		s.log.Debug("sweep", zap.Int("dropped", len(dropped)), zap.Int("remaining", s.Sessions.Len()))
	}
	return len(dropped)
}
