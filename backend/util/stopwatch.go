package util

import (
	"sync"
	"time"
)

// Stopwatch accumulates elapsed wall-clock time across Start/Stop cycles.
// Used to track the actual play time of a session. Safe for concurrent use.
type Stopwatch struct {
	mutex   sync.Mutex
	running bool
	started time.Time
	elapsed time.Duration
}

func (s *Stopwatch) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return
	}
	s.started = time.Now()
	s.running = true
}

func (s *Stopwatch) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return
	}
	s.elapsed += time.Since(s.started)
	s.running = false
}

func (s *Stopwatch) Elapsed() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e := s.elapsed
	if s.running {
		e += time.Since(s.started)
	}
	return e
}

func (s *Stopwatch) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.running = false
	s.elapsed = time.Duration(0)
}
