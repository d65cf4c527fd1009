package operations

import (
	"sync"
	"time"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState is the live progress of a run. All methods are safe on a nil
// receiver so callers without a status listener can pass nil.
type RunState struct {
	mu   sync.RWMutex
	snap StatusSnapshot
}

// StatusSnapshot is a point-in-time copy of RunState
type StatusSnapshot struct {
	RunID          string     `json:"run_id"`
	Profile        string     `json:"profile"`
	Status         RunStatus  `json:"status"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Batch          int        `json:"batch"`
	Listing        string     `json:"listing,omitempty"`
	CurrentDate    string     `json:"current_date,omitempty"`
	CurrentWindow  string     `json:"current_window,omitempty"`
	Record         int        `json:"record"`
	TotalRecords   int        `json:"total_records"`
	NextDump       int        `json:"next_dump"`
	EventsDone     int        `json:"events_done"`
	EventsFailed   int        `json:"events_failed"`
	WindowsSkipped int        `json:"windows_skipped"`
	RecordsDone    int        `json:"records_done"`
	Error          string     `json:"error,omitempty"`
}

// NewRunState creates a pending run state
func NewRunState(runID, profile string) *RunState {
	return &RunState{snap: StatusSnapshot{
		RunID:   runID,
		Profile: profile,
		Status:  RunStatusPending,
	}}
}

func (s *RunState) update(fn func(*StatusSnapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}

// Start marks the run as running
func (s *RunState) Start() {
	s.update(func(st *StatusSnapshot) {
		st.Status = RunStatusRunning
		st.StartTime = time.Now()
	})
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.finish(RunStatusCompleted, nil)
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.finish(RunStatusFailed, err)
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel() {
	s.finish(RunStatusCancelled, nil)
}

func (s *RunState) finish(status RunStatus, err error) {
	s.update(func(st *StatusSnapshot) {
		now := time.Now()
		st.EndTime = &now
		st.Status = status
		st.CurrentDate = ""
		st.CurrentWindow = ""
		if err != nil {
			st.Error = err.Error()
		}
	})
}

// BeginBatch records the listing being processed
func (s *RunState) BeginBatch(batch int, listing string) {
	s.update(func(st *StatusSnapshot) {
		st.Batch = batch
		st.Listing = listing
	})
}

// BeginEvent records the current date
func (s *RunState) BeginEvent(date string) {
	s.update(func(st *StatusSnapshot) {
		st.CurrentDate = date
		st.CurrentWindow = ""
		st.Record = 0
		st.TotalRecords = 0
	})
}

// BeginWindow records the current time window
func (s *RunState) BeginWindow(window string) {
	s.update(func(st *StatusSnapshot) {
		st.CurrentWindow = window
		st.Record = 0
		st.TotalRecords = 0
	})
}

// SetTotalRecords records the count reported by the engine
func (s *RunState) SetTotalRecords(n int) {
	s.update(func(st *StatusSnapshot) { st.TotalRecords = n })
}

// RecordDone advances the record position and the next dump number
func (s *RunState) RecordDone(record, nextDump int) {
	s.update(func(st *StatusSnapshot) {
		st.Record = record + 1
		st.RecordsDone++
		st.NextDump = nextDump
	})
}

// WindowSkipped counts a skipped window
func (s *RunState) WindowSkipped() {
	s.update(func(st *StatusSnapshot) { st.WindowsSkipped++ })
}

// EventDone counts a finished event
func (s *RunState) EventDone(failed bool) {
	s.update(func(st *StatusSnapshot) {
		if failed {
			st.EventsFailed++
			return
		}
		st.EventsDone++
	})
}

// Snapshot returns a copy of the current state
func (s *RunState) Snapshot() StatusSnapshot {
	if s == nil {
		return StatusSnapshot{Status: RunStatusPending}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snap
	if s.snap.EndTime != nil {
		end := *s.snap.EndTime
		snap.EndTime = &end
	}
	return snap
}
