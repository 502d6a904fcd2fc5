package timer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/focushive/sessiond/broadcast"
	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/testutil"
	"github.com/focushive/sessiond/store"
	"github.com/focushive/sessiond/timer"
)

var startedAt = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

// recordingChannel captures published events for assertions.
type recordingChannel struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	topic string
	event broadcast.Event
}

func (c *recordingChannel) Publish(
	_ context.Context,
	topic string,
	event broadcast.Event,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, recordedEvent{topic: topic, event: event})

	return nil
}

func (c *recordingChannel) recorded() []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]recordedEvent(nil), c.events...)
}

func newTestEngine(
	t *testing.T,
) (*timer.Engine, *store.Memory, *testutil.FakeClock, *recordingChannel) {
	t.Helper()

	db := store.NewMemory()
	clock := testutil.NewFakeClock(startedAt)
	ch := &recordingChannel{}

	engine := timer.New(
		db,
		broadcast.NewPublisher(ch),
		timer.WithClock(clock),
	)

	return engine, db, clock, ch
}

func TestStartValidation(t *testing.T) {
	cases := []struct {
		name     string
		sessType models.Type
		duration int
		wantErr  bool
	}{
		{name: "minimum duration", sessType: models.Focus, duration: 1},
		{name: "maximum duration", sessType: models.Work, duration: 240},
		{name: "zero duration", sessType: models.Focus, duration: 0, wantErr: true},
		{name: "over maximum", sessType: models.Focus, duration: 241, wantErr: true},
		{name: "negative duration", sessType: models.Focus, duration: -5, wantErr: true},
		{name: "unknown type", sessType: "NAP", duration: 25, wantErr: true},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, _, _ := newTestEngine(t)

			user := string(rune('a' + i))

			_, err := engine.Start(
				context.Background(),
				user,
				tc.sessType,
				tc.duration,
				timer.StartOptions{},
			)

			var vErr *timer.ValidationError

			if tc.wantErr && !errors.As(err, &vErr) {
				t.Fatalf("expected a validation error, got %v", err)
			}

			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStartRejectsSecondLiveSession(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	_, err = engine.Start(ctx, "ada", models.Work, 50, timer.StartOptions{})
	if !errors.Is(err, store.ErrDuplicateLiveSession) {
		t.Fatalf("expected ErrDuplicateLiveSession, got %v", err)
	}

	// A paused session still occupies the slot.
	sess, err := engine.GetActive(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.Pause(ctx, sess.ID, "ada"); err != nil {
		t.Fatal(err)
	}

	_, err = engine.Start(ctx, "ada", models.Work, 50, timer.StartOptions{})
	if !errors.Is(err, store.ErrDuplicateLiveSession) {
		t.Fatalf("expected ErrDuplicateLiveSession after pause, got %v", err)
	}
}

func TestStartFromTemplate(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	ctx := context.Background()

	tpl := &models.Template{
		ID:              "tpl-1",
		UserID:          "ada",
		Name:            "Deep work",
		Type:            models.Work,
		DurationMinutes: 90,
		Tags:            []string{"writing"},
	}

	if err := db.CreateTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}

	sess, err := engine.Start(ctx, "ada", models.Work, 0, timer.StartOptions{
		TemplateID: "tpl-1",
	})
	if err != nil {
		t.Fatalf("start from template failed: %v", err)
	}

	if sess.DurationMinutes != 90 {
		t.Errorf("duration = %d, want 90", sess.DurationMinutes)
	}

	if len(sess.Tags) != 1 || sess.Tags[0] != "writing" {
		t.Errorf("tags = %v, want [writing]", sess.Tags)
	}

	got, err := db.GetTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatal(err)
	}

	if got.UsageCount != 1 {
		t.Errorf("template usage = %d, want 1", got.UsageCount)
	}
}

func TestPauseResumeAccounting(t *testing.T) {
	engine, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 60, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Minute)

	if _, err = engine.Pause(ctx, sess.ID, "ada"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(5 * time.Minute)

	sess, err = engine.Resume(ctx, sess.ID, "ada")
	if err != nil {
		t.Fatal(err)
	}

	if sess.TotalPausedDuration != 5*time.Minute {
		t.Errorf(
			"paused duration = %s, want 5m",
			sess.TotalPausedDuration,
		)
	}

	if sess.PausedAt != nil {
		t.Error("PausedAt should be cleared after resume")
	}

	clock.Advance(10 * time.Minute)

	if _, err = engine.Pause(ctx, sess.ID, "ada"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Minute)

	sess, err = engine.Resume(ctx, sess.ID, "ada")
	if err != nil {
		t.Fatal(err)
	}

	if sess.TotalPausedDuration != 15*time.Minute {
		t.Errorf(
			"paused duration = %s, want 15m",
			sess.TotalPausedDuration,
		)
	}

	// 35 minutes elapsed, 15 of them paused.
	if got := sess.ActiveDuration(clock.Now()); got != 20*time.Minute {
		t.Errorf("active duration = %s, want 20m", got)
	}
}

func TestPauseRequiresActive(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.Pause(ctx, sess.ID, "ada"); err != nil {
		t.Fatal(err)
	}

	_, err = engine.Pause(ctx, sess.ID, "ada")

	var invalid *timer.InvalidTransitionError

	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	_, err = engine.Resume(ctx, sess.ID, "ada")
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.Resume(ctx, sess.ID, "ada")
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestTerminalStatesAreSticky(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.Complete(ctx, sess.ID, "ada", nil); err != nil {
		t.Fatal(err)
	}

	var invalid *timer.InvalidTransitionError

	ops := map[string]func() error{
		"pause": func() error {
			_, err := engine.Pause(ctx, sess.ID, "ada")
			return err
		},
		"resume": func() error {
			_, err := engine.Resume(ctx, sess.ID, "ada")
			return err
		},
		"complete": func() error {
			_, err := engine.Complete(ctx, sess.ID, "ada", nil)
			return err
		},
		"cancel": func() error {
			_, err := engine.Cancel(ctx, sess.ID, "ada", "too late")
			return err
		},
		"add note": func() error {
			_, err := engine.AddNote(ctx, sess.ID, "ada", "hello")
			return err
		},
	}

	for name, op := range ops {
		if err := op(); !errors.As(err, &invalid) {
			t.Errorf("%s on a completed session: got %v, want invalid transition", name, err)
		}
	}
}

func TestCompleteComputesScore(t *testing.T) {
	engine, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(25 * time.Minute)

	sess, err = engine.Complete(ctx, sess.ID, "ada", nil)
	if err != nil {
		t.Fatal(err)
	}

	if sess.ProductivityScore == nil || *sess.ProductivityScore != 100 {
		t.Errorf("score = %v, want 100", sess.ProductivityScore)
	}

	if sess.CompletedAt == nil || !sess.CompletedAt.Equal(clock.Now()) {
		t.Errorf("CompletedAt = %v, want %v", sess.CompletedAt, clock.Now())
	}
}

func TestCompleteWithScoreOverride(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	override := 42

	sess, err = engine.Complete(ctx, sess.ID, "ada", &override)
	if err != nil {
		t.Fatal(err)
	}

	if sess.ProductivityScore == nil || *sess.ProductivityScore != 42 {
		t.Errorf("score = %v, want 42", sess.ProductivityScore)
	}
}

func TestCancelRecordsReason(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	sess, err = engine.Cancel(ctx, sess.ID, "ada", "meeting came up")
	if err != nil {
		t.Fatal(err)
	}

	if sess.Status != models.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", sess.Status)
	}

	if len(sess.Notes) != 1 ||
		sess.Notes[0].Text != "Cancelled: meeting came up" {
		t.Errorf("notes = %v, want the cancellation reason", sess.Notes)
	}
}

func TestUpdateMetricsRejectsNegativeDeltas(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.UpdateMetrics(ctx, sess.ID, "ada", timer.MetricsDelta{
		TabSwitches: -1,
	})

	var vErr *timer.ValidationError

	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestUpdateMetricsAccumulates(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		sess, err = engine.UpdateMetrics(ctx, sess.ID, "ada", timer.MetricsDelta{
			TabSwitches:        2,
			DistractionMinutes: 1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if sess.TabSwitches != 6 || sess.DistractionMinutes != 3 {
		t.Errorf(
			"tab switches = %d, distractions = %d, want 6 and 3",
			sess.TabSwitches,
			sess.DistractionMinutes,
		)
	}

	if sess.ProductivityScore == nil {
		t.Fatal("score should be recomputed on metrics update")
	}
}

func TestNotesAndTasks(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.AddNote(ctx, sess.ID, "ada", "first insight"); err != nil {
		t.Fatal(err)
	}

	sess, err = engine.MarkTaskCompleted(ctx, sess.ID, "ada", "write intro")
	if err != nil {
		t.Fatal(err)
	}

	if sess.TasksCompleted != 1 {
		t.Errorf("tasks completed = %d, want 1", sess.TasksCompleted)
	}

	if sess.NotesCount != 2 || len(sess.Notes) != 2 {
		t.Errorf("notes count = %d (%d entries), want 2", sess.NotesCount, len(sess.Notes))
	}
}

func TestAccessDenied(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.Pause(ctx, sess.ID, "mallory")
	if !errors.Is(err, timer.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	_, err = engine.Get(ctx, sess.ID, "mallory")
	if !errors.Is(err, timer.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestEmergencyStopAll(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	ctx := context.Background()

	// No live session: nothing happens.
	engine.EmergencyStopAll(ctx, "ada")

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	engine.EmergencyStopAll(ctx, "ada")

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.Status != models.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}

	live, err := db.FindLiveByUser(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}

	if live != nil {
		t.Error("live slot should be free after an emergency stop")
	}
}

func TestExpireSkipsTerminalSessions(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.Complete(ctx, sess.ID, "ada", nil); err != nil {
		t.Fatal(err)
	}

	if err = engine.Expire(ctx, sess.ID); err != nil {
		t.Fatalf("expiring a terminal session should be a no-op, got %v", err)
	}

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED to stick", got.Status)
	}
}

func TestExpireMarksLiveSession(t *testing.T) {
	engine, db, clock, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(5 * time.Hour)

	if err = engine.Expire(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.Status != models.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", got.Status)
	}

	live, err := db.FindLiveByUser(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}

	if live != nil {
		t.Error("live slot should be free after expiry")
	}
}

func TestSendReminderIsIdempotent(t *testing.T) {
	engine, db, clock, ch := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{
		ReminderEnabled:       true,
		ReminderMinutesBefore: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Not due yet.
	if err = engine.SendReminder(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetSession(ctx, sess.ID)
	if got.ReminderSent {
		t.Fatal("reminder sent before it was due")
	}

	clock.Advance(21 * time.Minute)

	if err = engine.SendReminder(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	got, _ = db.GetSession(ctx, sess.ID)
	if !got.ReminderSent {
		t.Fatal("reminder should be marked sent once due")
	}

	before := len(ch.recorded())

	if err = engine.SendReminder(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	if len(ch.recorded()) != before {
		t.Error("repeat reminder published a duplicate event")
	}
}

func TestSyncUpdatesDevice(t *testing.T) {
	engine, _, clock, ch := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{
		DeviceID: "laptop",
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, err = engine.Sync(ctx, sess.ID, "phone")
	if err != nil {
		t.Fatal(err)
	}

	if sess.DeviceID != "phone" {
		t.Errorf("device = %s, want phone", sess.DeviceID)
	}

	if sess.LastSyncTime == nil || !sess.LastSyncTime.Equal(clock.Now()) {
		t.Errorf("LastSyncTime = %v, want %v", sess.LastSyncTime, clock.Now())
	}

	events := ch.recorded()
	last := events[len(events)-1]

	if last.event.UpdateType != models.UpdateSync {
		t.Errorf("update type = %s, want SYNC_UPDATE", last.event.UpdateType)
	}
}

func TestBroadcastTopics(t *testing.T) {
	engine, _, _, ch := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{
		HiveID: "builders",
	})
	if err != nil {
		t.Fatal(err)
	}

	events := ch.recorded()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events))
	}

	topics := map[string]bool{}
	for _, e := range events {
		topics[e.topic] = true

		if e.event.UpdateType != models.UpdateStarted {
			t.Errorf("update type = %s, want STARTED", e.event.UpdateType)
		}
	}

	if !topics["timer/ada"] || !topics["hive/builders/timer"] {
		t.Errorf("topics = %v, want timer/ada and hive/builders/timer", topics)
	}
}

func TestGetHistoryFiltersByTag(t *testing.T) {
	engine, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	for _, tags := range [][]string{
		{"writing"},
		{"research"},
		nil,
	} {
		sess, err := engine.Start(ctx, "ada", models.Focus, 25, timer.StartOptions{
			Tags: tags,
		})
		if err != nil {
			t.Fatal(err)
		}

		clock.Advance(time.Minute)

		if _, err = engine.Complete(ctx, sess.ID, "ada", nil); err != nil {
			t.Fatal(err)
		}

		clock.Advance(time.Minute)
	}

	all, err := engine.GetHistory(
		ctx,
		"ada",
		startedAt.Add(-time.Hour),
		clock.Now(),
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(all) != 3 {
		t.Fatalf("history has %d sessions, want 3", len(all))
	}

	writing, err := engine.GetHistory(
		ctx,
		"ada",
		startedAt.Add(-time.Hour),
		clock.Now(),
		[]string{"writing"},
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(writing) != 1 || writing[0].Tags[0] != "writing" {
		t.Errorf("tag filter returned %d sessions, want exactly the tagged one", len(writing))
	}
}
