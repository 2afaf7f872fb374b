// Package runstate holds the process-wide status shown on the control API
package runstate

import (
	"sync"
	"time"
)

// Status values
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusError   = "error"
)

// Activity types
const (
	ActivityInfo    = "info"
	ActivitySuccess = "success"
	ActivityError   = "error"
)

// MaxActivity caps the activity log
const MaxActivity = 50

// Activity is one line of the activity log
type Activity struct {
	Time    string `json:"time"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// Snapshot is a point-in-time copy of the state
type Snapshot struct {
	Running           bool       `json:"running"`
	Status            string     `json:"status"`
	LastCheck         string     `json:"last_check,omitempty"`
	ItemsScannedToday int        `json:"items_scanned_today"`
	MatchesFoundToday int        `json:"matches_found_today"`
	RecentActivity    []Activity `json:"recent_activity"`
}

// State is safe for concurrent use
type State struct {
	mu       sync.RWMutex
	snap     Snapshot
	day      string
	activity []Activity
	now      func() time.Time
}

// New returns a stopped state with an empty log
func New() *State {
	return &State{
		snap: Snapshot{Status: StatusStopped},
		now:  time.Now,
	}
}

// Snapshot returns a copy of the state; the activity log is newest first
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.RecentActivity = make([]Activity, len(s.activity))
	copy(out.RecentActivity, s.activity)
	return out
}

// SetRunning flips the running flag and status together. Starting resets the
// daily counters.
func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Running = running
	if running {
		s.snap.Status = StatusRunning
		s.snap.ItemsScannedToday = 0
		s.snap.MatchesFoundToday = 0
		s.day = s.now().Format(time.DateOnly)
		return
	}
	s.snap.Status = StatusStopped
}

// Running reports whether the periodic loop is active
func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Running
}

// BeginCheck stamps the check time
func (s *State) BeginCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastCheck = s.now().Format(time.TimeOnly)
	if s.snap.Running {
		s.snap.Status = StatusRunning
	}
}

// RecordRun adds a run's totals to the daily counters, resetting them first
// when the day has changed
func (s *State) RecordRun(scanned, matched int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := s.now().Format(time.DateOnly)
	if s.day != today {
		s.day = today
		s.snap.ItemsScannedToday = 0
		s.snap.MatchesFoundToday = 0
	}
	s.snap.ItemsScannedToday += scanned
	s.snap.MatchesFoundToday += matched
}

// Fail marks the state as errored
func (s *State) Fail(message string) {
	s.mu.Lock()
	s.snap.Status = StatusError
	s.mu.Unlock()
	s.Log(ActivityError, message)
}

// Log prepends an activity, dropping the oldest beyond MaxActivity
func (s *State) Log(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Activity{Time: s.now().Format(time.TimeOnly), Message: message, Type: kind}
	s.activity = append([]Activity{entry}, s.activity...)
	if len(s.activity) > MaxActivity {
		s.activity = s.activity[:MaxActivity]
	}
}
