// Package testutil holds shared test fixtures.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"

	"github.com/focushive/sessiond/internal/models"
)

// FakeClock is a manually advanced clock for deterministic tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at the given instant.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Set jumps the clock to the given instant.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// ActiveSession returns a minimal active session fixture.
func ActiveSession(id, userID string, startedAt time.Time) *models.Session {
	return &models.Session{
		ID:              id,
		UserID:          userID,
		Type:            models.Focus,
		DurationMinutes: 25,
		Status:          models.StatusActive,
		StartedAt:       startedAt,
	}
}

// AssertSessionEqual fails the test with a full diff when two sessions
// differ.
func AssertSessionEqual(t *testing.T, want, got *models.Session) {
	t.Helper()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf(
			"session mismatch (-want +got):\n%s\ngot: %s",
			diff,
			spew.Sdump(got),
		)
	}
}
