package server

import "sync"

const maxRecentLogs = 200

// Status tracks a run's live state for the HTTP API. It implements the
// engine's observer, so the runner feeds it directly.
type Status struct {
	mu       sync.Mutex
	running  bool
	progress float64
	logs     []string
}

// NewStatus returns an idle tracker.
func NewStatus() *Status {
	return &Status{}
}

// Log appends a line to the recent-log ring.
func (s *Status) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, msg)
	if len(s.logs) > maxRecentLogs {
		s.logs = s.logs[len(s.logs)-maxRecentLogs:]
	}
}

// Progress records overall completion in percent.
func (s *Status) Progress(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = pct
}

// SetRunning flips the run flag; starting a run resets progress.
func (s *Status) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	if running {
		s.progress = 0
	}
}

// Snapshot returns the current state and a copy of recent logs.
func (s *Status) Snapshot() (running bool, progress float64, logs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.progress, append([]string(nil), s.logs...)
}
