package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/focushive/sessiond/internal/models"
)

// Memory is an in-memory DB implementation with the same atomicity
// guarantees as the Bolt client. It backs tests and ephemeral runs;
// nothing survives a restart.
type Memory struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	live      map[string]string
	templates map[string]*models.Template
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]*models.Session),
		live:      make(map[string]string),
		templates: make(map[string]*models.Template),
	}
}

func (m *Memory) CreateSession(
	ctx context.Context,
	sess *models.Session,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[sess.UserID]; ok {
		return ErrDuplicateLiveSession
	}

	sess.Version = 1
	m.sessions[sess.ID] = sess.Clone()
	m.live[sess.UserID] = sess.ID

	return nil
}

func (m *Memory) GetSession(
	ctx context.Context,
	id string,
) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return sess.Clone(), nil
}

func (m *Memory) FindLiveByUser(
	ctx context.Context,
	userID string,
) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.live[userID]
	if !ok {
		return nil, nil
	}

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return sess.Clone(), nil
}

func (m *Memory) SaveSession(
	ctx context.Context,
	sess *models.Session,
	expectedVersion int64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}

	if stored.Version != expectedVersion {
		return &StaleVersionError{
			ID:       sess.ID,
			Expected: expectedVersion,
			Actual:   stored.Version,
		}
	}

	sess.Version = expectedVersion + 1
	m.sessions[sess.ID] = sess.Clone()

	if sess.Status.Terminal() && m.live[sess.UserID] == sess.ID {
		delete(m.live, sess.UserID)
	}

	return nil
}

func (m *Memory) FindLiveOlderThan(
	ctx context.Context,
	cutoff time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Session

	for _, id := range m.live {
		sess := m.sessions[id]
		if sess != nil && sess.Status.Live() && sess.StartedAt.Before(cutoff) {
			result = append(result, sess.Clone())
		}
	}

	return result, nil
}

func (m *Memory) FindPendingReminders(
	ctx context.Context,
	asOf time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Session

	for _, id := range m.live {
		sess := m.sessions[id]
		if sess == nil || sess.Status != models.StatusActive {
			continue
		}

		if !sess.ReminderEnabled || sess.ReminderSent {
			continue
		}

		if !sess.ReminderAt().After(asOf) {
			result = append(result, sess.Clone())
		}
	}

	return result, nil
}

func (m *Memory) FindCompletedBetween(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Session

	for _, sess := range m.sessions {
		if sess.UserID != userID ||
			sess.Status != models.StatusCompleted ||
			sess.CompletedAt == nil {
			continue
		}

		at := *sess.CompletedAt
		if at.Before(from) || at.After(to) {
			continue
		}

		result = append(result, sess.Clone())
	}

	return result, nil
}

func (m *Memory) SessionsByUser(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Session

	for _, sess := range m.sessions {
		if sess.UserID != userID {
			continue
		}

		if sess.StartedAt.Before(from) || sess.StartedAt.After(to) {
			continue
		}

		result = append(result, sess.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return result, nil
}

func (m *Memory) CreateTemplate(
	ctx context.Context,
	tpl *models.Template,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tpl
	m.templates[tpl.ID] = &cp

	return nil
}

func (m *Memory) GetTemplate(
	ctx context.Context,
	id string,
) (*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}

	cp := *tpl

	return &cp, nil
}

func (m *Memory) TemplatesByUser(
	ctx context.Context,
	userID string,
) ([]*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Template

	for _, tpl := range m.templates {
		if tpl.UserID == userID {
			cp := *tpl
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UsageCount > result[j].UsageCount
	})

	return result, nil
}

func (m *Memory) IncrementTemplateUsage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return ErrTemplateNotFound
	}

	tpl.UsageCount++

	return nil
}

func (m *Memory) Close() error {
	return nil
}
