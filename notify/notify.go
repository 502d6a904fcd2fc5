// Package notify turns broadcast events into local side effects: a
// desktop notification for reminders and completions, and an optional
// user-configured hook command on terminal transitions.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/gen2brain/beeep"
	"github.com/kballard/go-shellquote"

	"github.com/focushive/sessiond/broadcast"
	"github.com/focushive/sessiond/internal/models"
)

// Listener subscribes to a user's broadcast topic and reacts to events
// locally. Everything here is best-effort; failures are logged and
// dropped.
type Listener struct {
	hub     *broadcast.Hub
	enabled bool
	hookCmd string
	logger  *slog.Logger
}

// NewListener creates a listener over the in-process hub. When enabled
// is false only the hook command runs.
func NewListener(hub *broadcast.Hub, enabled bool, hookCmd string) *Listener {
	return &Listener{
		hub:     hub,
		enabled: enabled,
		hookCmd: hookCmd,
		logger:  slog.Default(),
	}
}

// Listen consumes the user's topic until the context is cancelled.
func (l *Listener) Listen(ctx context.Context, userID string) {
	events, cancel := l.hub.Subscribe(broadcast.UserTopic(userID))
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			l.handle(event)
		}
	}
}

func (l *Listener) handle(event broadcast.Event) {
	switch event.UpdateType {
	case models.UpdateReminderSent:
		l.alert(
			"Session ending soon",
			fmt.Sprintf(
				"Your %s session finishes at %s",
				event.Session.Type,
				event.Session.PlannedEnd().Local().Format("15:04"),
			),
		)
	case models.UpdateCompleted:
		l.alert("Session complete", "Time for a well-deserved break!")
		l.runHook()
	case models.UpdateExpired:
		l.alert("Session expired", "Your session went stale and was closed.")
	}
}

func (l *Listener) alert(title, msg string) {
	if !l.enabled {
		return
	}

	if err := beeep.Notify(title, msg, ""); err != nil {
		l.logger.Warn("unable to display notification", slog.Any("error", err))
	}
}

// runHook executes the configured command, if any.
func (l *Listener) runHook() {
	if l.hookCmd == "" {
		return
	}

	cmdSlice, err := shellquote.Split(l.hookCmd)
	if err != nil {
		l.logger.Warn("unable to parse notify cmd option", slog.Any("error", err))
		return
	}

	if len(cmdSlice) == 0 {
		return
	}

	cmd := exec.Command(cmdSlice[0], cmdSlice[1:]...)

	if err := cmd.Run(); err != nil {
		l.logger.Warn("notify cmd failed", slog.Any("error", err))
	}
}
