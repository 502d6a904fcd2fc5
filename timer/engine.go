// Package timer operates the session lifecycle state machine. Every
// state change funnels through here: foreground requests and the
// background sweeper use the same transition functions, so the
// per-user live-session invariant and the version-checked write path
// hold for all writers.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/focushive/sessiond/broadcast"
	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/timeutil"
	"github.com/focushive/sessiond/store"
)

const (
	// MinDurationMinutes and MaxDurationMinutes bound a session's
	// planned length.
	MinDurationMinutes = 1
	MaxDurationMinutes = 240
)

// emergencyStopRetries bounds internal retries on lost concurrency races
// during an emergency stop.
const emergencyStopRetries = 3

// Authorizer decides whether a requester may operate on a session.
type Authorizer interface {
	IsOwner(sess *models.Session, requesterID string) bool
}

// OwnerAuthorizer grants access to the session owner only.
type OwnerAuthorizer struct{}

func (OwnerAuthorizer) IsOwner(sess *models.Session, requesterID string) bool {
	return sess.UserID == requesterID
}

// Engine drives session state transitions against the store and
// broadcasts each committed change.
type Engine struct {
	db     store.DB
	pub    *broadcast.Publisher
	clock  timeutil.Clock
	auth   Authorizer
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clock timeutil.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithAuthorizer overrides the ownership check.
func WithAuthorizer(auth Authorizer) Option {
	return func(e *Engine) {
		e.auth = auth
	}
}

// New creates an engine on top of a store and a broadcast publisher.
func New(db store.DB, pub *broadcast.Publisher, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		pub:    pub,
		clock:  timeutil.SystemClock{},
		auth:   OwnerAuthorizer{},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// StartOptions carries the optional attributes of a new session.
type StartOptions struct {
	HiveID                string
	DeviceID              string
	Tags                  []string
	TemplateID            string
	ReminderEnabled       bool
	ReminderMinutesBefore int
}

// Start creates a new active session for the user. The store enforces
// that the live-session existence check and the insert are one atomic
// operation, so two concurrent starts cannot both succeed.
func (e *Engine) Start(
	ctx context.Context,
	userID string,
	sessType models.Type,
	durationMinutes int,
	opts StartOptions,
) (*models.Session, error) {
	if !validType(sessType) {
		return nil, &ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("unknown session type %q", sessType),
		}
	}

	if opts.TemplateID != "" {
		tpl, err := e.db.GetTemplate(ctx, opts.TemplateID)
		if err != nil {
			return nil, err
		}

		if durationMinutes == 0 {
			durationMinutes = tpl.DurationMinutes
		}

		if len(opts.Tags) == 0 {
			opts.Tags = tpl.Tags
		}

		if !opts.ReminderEnabled && tpl.ReminderEnabled {
			opts.ReminderEnabled = true
			opts.ReminderMinutesBefore = tpl.ReminderMinutesBefore
		}

		if err := e.db.IncrementTemplateUsage(ctx, tpl.ID); err != nil {
			e.logger.Warn("failed to bump template usage",
				slog.String("template_id", tpl.ID),
				slog.Any("error", err),
			)
		}
	}

	if durationMinutes < MinDurationMinutes ||
		durationMinutes > MaxDurationMinutes {
		return nil, &ValidationError{
			Field: "duration_minutes",
			Reason: fmt.Sprintf(
				"must be between %d and %d",
				MinDurationMinutes,
				MaxDurationMinutes,
			),
		}
	}

	sess := &models.Session{
		ID:                    uuid.NewString(),
		UserID:                userID,
		HiveID:                opts.HiveID,
		Type:                  sessType,
		DurationMinutes:       durationMinutes,
		Status:                models.StatusActive,
		StartedAt:             e.clock.Now(),
		DeviceID:              opts.DeviceID,
		ReminderEnabled:       opts.ReminderEnabled,
		ReminderMinutesBefore: opts.ReminderMinutesBefore,
		Tags:                  opts.Tags,
		TemplateID:            opts.TemplateID,
	}

	if err := e.db.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	e.pub.Publish(ctx, sess, models.UpdateStarted)

	return sess, nil
}

// Pause suspends an active session.
func (e *Engine) Pause(
	ctx context.Context,
	id, userID string,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if sess.Status != models.StatusActive {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "pause"}
	}

	now := e.clock.Now()
	sess.Status = models.StatusPaused
	sess.PausedAt = &now

	return e.save(ctx, sess, models.UpdatePaused)
}

// Resume reactivates a paused session, folding the pause interval into
// the total paused duration.
func (e *Engine) Resume(
	ctx context.Context,
	id, userID string,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if sess.Status != models.StatusPaused {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "resume"}
	}

	now := e.clock.Now()

	if sess.PausedAt != nil {
		sess.TotalPausedDuration += now.Sub(*sess.PausedAt)
	}

	sess.Status = models.StatusActive
	sess.ResumedAt = &now
	sess.PausedAt = nil

	return e.save(ctx, sess, models.UpdateResumed)
}

// Complete finishes a live session. When scoreOverride is nil the
// productivity score is computed from the session's accumulators.
func (e *Engine) Complete(
	ctx context.Context,
	id, userID string,
	scoreOverride *int,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sess.Status.Live() {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "complete"}
	}

	now := e.clock.Now()
	sess.Status = models.StatusCompleted
	sess.CompletedAt = &now

	if scoreOverride != nil {
		score := *scoreOverride
		sess.ProductivityScore = &score
	} else {
		score := computeScore(sess, now, true)
		sess.ProductivityScore = &score
	}

	return e.save(ctx, sess, models.UpdateCompleted)
}

// Cancel aborts a live session, recording the reason in the note log.
func (e *Engine) Cancel(
	ctx context.Context,
	id, userID, reason string,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sess.Status.Live() {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "cancel"}
	}

	now := e.clock.Now()
	sess.Status = models.StatusCancelled
	sess.CancelledAt = &now
	sess.Notes = append(sess.Notes, models.Note{
		Time: now,
		Text: "Cancelled: " + reason,
	})

	return e.save(ctx, sess, models.UpdateCancelled)
}

// MetricsDelta carries non-negative increments for the session's
// distraction and activity accumulators.
type MetricsDelta struct {
	TabSwitches        int
	DistractionMinutes int
	FocusBreaks        int
	NotesCount         int
	TasksCompleted     int
}

// UpdateMetrics applies the deltas to a live session and recomputes the
// productivity score.
func (e *Engine) UpdateMetrics(
	ctx context.Context,
	id, userID string,
	delta MetricsDelta,
) (*models.Session, error) {
	if delta.TabSwitches < 0 || delta.DistractionMinutes < 0 ||
		delta.FocusBreaks < 0 || delta.NotesCount < 0 ||
		delta.TasksCompleted < 0 {
		return nil, &ValidationError{
			Field:  "metrics",
			Reason: "deltas must not be negative",
		}
	}

	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sess.Status.Live() {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "update metrics on"}
	}

	sess.TabSwitches += delta.TabSwitches
	sess.DistractionMinutes += delta.DistractionMinutes
	sess.FocusBreaks += delta.FocusBreaks
	sess.NotesCount += delta.NotesCount
	sess.TasksCompleted += delta.TasksCompleted

	score := computeScore(sess, e.clock.Now(), false)
	sess.ProductivityScore = &score

	return e.save(ctx, sess, models.UpdateMetricsUpdated)
}

// AddNote appends a timestamped note to a live session's log.
func (e *Engine) AddNote(
	ctx context.Context,
	id, userID, text string,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sess.Status.Live() {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "add a note to"}
	}

	sess.Notes = append(sess.Notes, models.Note{
		Time: e.clock.Now(),
		Text: text,
	})
	sess.NotesCount++

	return e.save(ctx, sess, models.UpdateNoteAdded)
}

// MarkTaskCompleted records a finished task against a live session.
func (e *Engine) MarkTaskCompleted(
	ctx context.Context,
	id, userID, taskRef string,
) (*models.Session, error) {
	sess, err := e.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sess.Status.Live() {
		return nil, &InvalidTransitionError{ID: id, From: sess.Status, Op: "complete a task on"}
	}

	sess.TasksCompleted++
	sess.Notes = append(sess.Notes, models.Note{
		Time: e.clock.Now(),
		Text: "Task completed: " + taskRef,
	})
	sess.NotesCount++

	return e.save(ctx, sess, models.UpdateTaskCompleted)
}

// EmergencyStopAll cancels the user's live session if one exists. It
// never fails: errors are logged and swallowed, and losing a race to
// another writer is retried a few times before giving up.
func (e *Engine) EmergencyStopAll(ctx context.Context, userID string) {
	for i := 0; i < emergencyStopRetries; i++ {
		sess, err := e.db.FindLiveByUser(ctx, userID)
		if err != nil {
			e.logger.Error("emergency stop lookup failed",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)

			return
		}

		if sess == nil {
			return
		}

		_, err = e.Cancel(ctx, sess.ID, userID, "Emergency stop")
		if err == nil {
			return
		}

		if store.IsStaleVersion(err) {
			continue
		}

		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			// Another writer already terminated it.
			return
		}

		e.logger.Error("emergency stop failed",
			slog.String("user_id", userID),
			slog.String("session_id", sess.ID),
			slog.Any("error", err),
		)

		return
	}
}

// Expire forces a stale live session to EXPIRED. It is the sweeper's
// entry point and uses the same version-checked write path as every
// other transition; a session terminated concurrently is left alone.
func (e *Engine) Expire(ctx context.Context, id string) error {
	sess, err := e.db.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if !sess.Status.Live() {
		return nil
	}

	now := e.clock.Now()
	sess.Status = models.StatusExpired
	sess.CancelledAt = &now

	_, err = e.save(ctx, sess, models.UpdateExpired)

	return err
}

// SendReminder marks the session's pre-completion reminder as sent and
// broadcasts it. Sessions that are not active, not due, or already
// reminded are skipped without error, which is what makes the reminder
// sweep idempotent.
func (e *Engine) SendReminder(ctx context.Context, id string) error {
	sess, err := e.db.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if sess.Status != models.StatusActive ||
		!sess.ReminderEnabled || sess.ReminderSent {
		return nil
	}

	if e.clock.Now().Before(sess.ReminderAt()) {
		return nil
	}

	sess.ReminderSent = true

	_, err = e.save(ctx, sess, models.UpdateReminderSent)

	return err
}

// Sync hands the session over to a different device. The caller is
// expected to have resolved the session through a sync token, which is
// what authorizes the handoff.
func (e *Engine) Sync(
	ctx context.Context,
	id, deviceID string,
) (*models.Session, error) {
	sess, err := e.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	sess.DeviceID = deviceID
	sess.LastSyncTime = &now

	return e.save(ctx, sess, models.UpdateSync)
}

// GetActive returns the user's live session, or nil when there is none.
func (e *Engine) GetActive(
	ctx context.Context,
	userID string,
) (*models.Session, error) {
	return e.db.FindLiveByUser(ctx, userID)
}

// Get returns a session after verifying ownership.
func (e *Engine) Get(
	ctx context.Context,
	id, userID string,
) (*models.Session, error) {
	return e.load(ctx, id, userID)
}

// GetHistory returns the user's sessions started within [from, to],
// optionally narrowed to those carrying one of the given tags.
func (e *Engine) GetHistory(
	ctx context.Context,
	userID string,
	from, to time.Time,
	tags []string,
) ([]*models.Session, error) {
	sessions, err := e.db.SessionsByUser(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		return sessions, nil
	}

	filtered := sessions[:0]

	for _, sess := range sessions {
		if hasAnyTag(sess, tags) {
			filtered = append(filtered, sess)
		}
	}

	return filtered, nil
}

func hasAnyTag(sess *models.Session, tags []string) bool {
	for _, want := range tags {
		for _, have := range sess.Tags {
			if have == want {
				return true
			}
		}
	}

	return false
}

// load fetches a session and verifies the requester owns it.
func (e *Engine) load(
	ctx context.Context,
	id, userID string,
) (*models.Session, error) {
	sess, err := e.db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if !e.auth.IsOwner(sess, userID) {
		return nil, ErrAccessDenied
	}

	return sess, nil
}

// save persists the mutated session conditioned on its loaded version,
// then broadcasts the committed snapshot. A broadcast failure never
// rolls back or surfaces from the mutation.
func (e *Engine) save(
	ctx context.Context,
	sess *models.Session,
	updateType models.UpdateType,
) (*models.Session, error) {
	if err := e.db.SaveSession(ctx, sess, sess.Version); err != nil {
		return nil, err
	}

	e.pub.Publish(ctx, sess, updateType)

	return sess, nil
}

func validType(t models.Type) bool {
	for _, v := range models.Types {
		if v == t {
			return true
		}
	}

	return false
}
