// Package models defines the session aggregate and its lifecycle vocabulary.
package models

import (
	"time"
)

// Status is the lifecycle state of a session. Completed, cancelled and
// expired are terminal: no transition leads out of them.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Live reports whether the session still occupies the user's single
// live-session slot.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusPaused
}

// Terminal reports whether the session reached a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Type classifies what a session is for.
type Type string

const (
	Focus Type = "FOCUS"
	Work  Type = "WORK"
	Study Type = "STUDY"
	Break Type = "BREAK"
)

// Types lists all valid session types.
var Types = []Type{Focus, Work, Study, Break}

// UpdateType tags a broadcast with the operation that produced it.
type UpdateType string

const (
	UpdateStarted        UpdateType = "STARTED"
	UpdatePaused         UpdateType = "PAUSED"
	UpdateResumed        UpdateType = "RESUMED"
	UpdateCompleted      UpdateType = "COMPLETED"
	UpdateCancelled      UpdateType = "CANCELLED"
	UpdateExpired        UpdateType = "EXPIRED"
	UpdateMetricsUpdated UpdateType = "METRICS_UPDATED"
	UpdateNoteAdded      UpdateType = "NOTE_ADDED"
	UpdateTaskCompleted  UpdateType = "TASK_COMPLETED"
	UpdateReminderSent   UpdateType = "REMINDER_SENT"
	UpdateSync           UpdateType = "SYNC_UPDATE"
)

// Note is one entry in a session's append-only note log.
type Note struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Session is one timed interval of focus/work/study/break activity.
// Mutations go through a load → mutate → conditional-save cycle keyed on
// Version, never in place against shared state.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	HiveID string `json:"hive_id,omitempty"`

	Type            Type   `json:"type"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          Status `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// TotalPausedDuration only ever grows, and only at a resume transition.
	TotalPausedDuration time.Duration `json:"total_paused_duration"`

	TabSwitches        int  `json:"tab_switches"`
	DistractionMinutes int  `json:"distraction_minutes"`
	FocusBreaks        int  `json:"focus_breaks"`
	NotesCount         int  `json:"notes_count"`
	TasksCompleted     int  `json:"tasks_completed"`
	ProductivityScore  *int `json:"productivity_score,omitempty"`

	DeviceID     string     `json:"device_id,omitempty"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`

	ReminderEnabled       bool `json:"reminder_enabled"`
	ReminderMinutesBefore int  `json:"reminder_minutes_before"`
	// ReminderSent goes false→true at most once per session.
	ReminderSent bool `json:"reminder_sent"`

	Tags       []string `json:"tags,omitempty"`
	TemplateID string   `json:"template_id,omitempty"`
	Notes      []Note   `json:"notes,omitempty"`

	// Version is the optimistic-concurrency token, incremented on every
	// persisted mutation.
	Version int64 `json:"version"`
}

// PlannedEnd returns the moment the session is scheduled to finish,
// ignoring paused time.
func (s *Session) PlannedEnd() time.Time {
	return s.StartedAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// ReminderAt returns the moment the pre-completion reminder becomes due.
func (s *Session) ReminderAt() time.Time {
	return s.PlannedEnd().
		Add(-time.Duration(s.ReminderMinutesBefore) * time.Minute)
}

// ActiveDuration returns how long the session has actually been running
// as of the given instant, excluding all paused time.
func (s *Session) ActiveDuration(asOf time.Time) time.Duration {
	end := asOf

	switch {
	case s.CompletedAt != nil:
		end = *s.CompletedAt
	case s.CancelledAt != nil:
		end = *s.CancelledAt
	}

	elapsed := end.Sub(s.StartedAt)

	paused := s.TotalPausedDuration
	if s.Status == StatusPaused && s.PausedAt != nil {
		paused += end.Sub(*s.PausedAt)
	}

	active := elapsed - paused
	if active < 0 {
		active = 0
	}

	return active
}

// Clone returns a deep copy so that mutations never leak into a snapshot
// another goroutine may still be reading.
func (s *Session) Clone() *Session {
	c := *s

	c.PausedAt = cloneTime(s.PausedAt)
	c.ResumedAt = cloneTime(s.ResumedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.LastSyncTime = cloneTime(s.LastSyncTime)

	if s.ProductivityScore != nil {
		v := *s.ProductivityScore
		c.ProductivityScore = &v
	}

	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}

	if s.Notes != nil {
		c.Notes = append([]Note(nil), s.Notes...)
	}

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}

// Template is a reusable preset applied when starting a session.
type Template struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Name                  string    `json:"name"`
	Type                  Type      `json:"type"`
	DurationMinutes       int       `json:"duration_minutes"`
	Tags                  []string  `json:"tags,omitempty"`
	ReminderEnabled       bool      `json:"reminder_enabled"`
	ReminderMinutesBefore int       `json:"reminder_minutes_before"`
	UsageCount            int       `json:"usage_count"`
	CreatedAt             time.Time `json:"created_at"`
}
