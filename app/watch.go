package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/timeutil"
	"github.com/focushive/sessiond/timer"
)

const watchDefaultWidth = 40

type keymap struct {
	togglePlay key.Binding
	complete   key.Binding
	quit       key.Binding
}

var watchKeymap = keymap{
	togglePlay: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/resume"),
	),
	complete: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "complete"),
	),
	quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	watchMainStyle = lipgloss.NewStyle().Bold(true)
	watchHintStyle = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type sessionMsg struct {
	sess *models.Session
	err  error
}

// watchModel polls the store for the user's live session and renders a
// countdown. Transitions requested from the keyboard go through the
// engine like any other writer.
type watchModel struct {
	engine   *timer.Engine
	userID   string
	sess     *models.Session
	progress progress.Model
	help     help.Model
	err      error
	quitting bool
}

func newWatchModel(engine *timer.Engine, userID string) *watchModel {
	return &watchModel{
		engine:   engine,
		userID:   userID,
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *watchModel) fetchSession() tea.Msg {
	sess, err := m.engine.GetActive(context.Background(), m.userID)

	return sessionMsg{sess: sess, err: err}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetchSession, tick())
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 4
		if m.progress.Width > watchDefaultWidth {
			m.progress.Width = watchDefaultWidth
		}

		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}

		return m, tea.Batch(m.fetchSession, tick())

	case sessionMsg:
		m.err = msg.err
		m.sess = msg.sess

		if msg.err == nil && msg.sess == nil {
			m.quitting = true
			return m, tea.Quit
		}

		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, watchKeymap.quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, watchKeymap.togglePlay):
		if m.sess == nil {
			return m, nil
		}

		return m, func() tea.Msg {
			ctx := context.Background()

			var (
				sess *models.Session
				err  error
			)

			if m.sess.Status == models.StatusPaused {
				sess, err = m.engine.Resume(ctx, m.sess.ID, m.userID)
			} else {
				sess, err = m.engine.Pause(ctx, m.sess.ID, m.userID)
			}

			return sessionMsg{sess: sess, err: err}
		}

	case key.Matches(msg, watchKeymap.complete):
		if m.sess == nil {
			return m, nil
		}

		return m, func() tea.Msg {
			_, err := m.engine.Complete(
				context.Background(),
				m.sess.ID,
				m.userID,
				nil,
			)

			return sessionMsg{sess: nil, err: err}
		}
	}

	return m, nil
}

func (m *watchModel) View() string {
	if m.quitting || m.sess == nil {
		return ""
	}

	if m.err != nil {
		return watchHintStyle.Render("error: "+m.err.Error()) + "\n"
	}

	var s strings.Builder

	now := time.Now()
	planned := time.Duration(m.sess.DurationMinutes) * time.Minute
	active := m.sess.ActiveDuration(now)

	remaining := planned - active
	if remaining < 0 {
		remaining = 0
	}

	mins, secs := timeutil.SecsToMinsAndSecs(remaining.Seconds())

	s.WriteString(watchMainStyle.Render(string(m.sess.Type) + " session"))

	if m.sess.Status == models.StatusPaused {
		s.WriteString(watchHintStyle.Render(" [Paused]"))
	} else {
		s.WriteString(watchHintStyle.Render(
			" until " + m.sess.PlannedEnd().Local().Format("03:04:05 PM"),
		))
	}

	s.WriteString("\n\n")
	s.WriteString(watchMainStyle.Render(fmt.Sprintf("%02d:%02d", mins, secs)))
	s.WriteString("\n\n")

	percent := float64(active) / float64(planned)
	if percent > 1 {
		percent = 1
	}

	s.WriteString(m.progress.ViewAs(percent))
	s.WriteString("\n\n")
	s.WriteString(m.help.ShortHelpView([]key.Binding{
		watchKeymap.togglePlay,
		watchKeymap.complete,
		watchKeymap.quit,
	}))
	s.WriteString("\n")

	return s.String()
}
