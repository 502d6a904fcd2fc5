// Package store persists sessions and templates and enforces the
// storage-level invariants: one live session per user, and
// version-conditioned writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/focushive/sessiond/internal/models"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTemplateNotFound is returned when no template exists for an id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDuplicateLiveSession is returned by CreateSession when the user
	// already has an active or paused session.
	ErrDuplicateLiveSession = errors.New(
		"user already has an active or paused session",
	)
)

// StaleVersionError reports a lost optimistic-concurrency race. Callers
// should reload the session and retry the whole operation.
type StaleVersionError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf(
		"session %s changed concurrently: expected version %d, found %d",
		e.ID,
		e.Expected,
		e.Actual,
	)
}

// IsStaleVersion reports whether err is a lost concurrency race.
func IsStaleVersion(err error) bool {
	var sv *StaleVersionError
	return errors.As(err, &sv)
}

// DB is the contract the timer engine, sweeper and stats readers depend
// on. Implementations must make CreateSession's live-session check and
// the insert a single atomic operation, and must reject SaveSession when
// the stored version differs from the expected one.
type DB interface {
	// CreateSession persists a new session and claims the user's live
	// slot. Returns ErrDuplicateLiveSession if a live session exists.
	CreateSession(ctx context.Context, sess *models.Session) error

	// GetSession returns the session with the given id, or
	// ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// FindLiveByUser returns the user's active or paused session, or
	// (nil, nil) when there is none.
	FindLiveByUser(ctx context.Context, userID string) (*models.Session, error)

	// SaveSession writes the session conditioned on the stored version
	// matching expectedVersion, then increments the version. Releases the
	// user's live slot when the session reached a terminal state.
	SaveSession(
		ctx context.Context,
		sess *models.Session,
		expectedVersion int64,
	) error

	// FindLiveOlderThan returns every live session started before cutoff.
	FindLiveOlderThan(
		ctx context.Context,
		cutoff time.Time,
	) ([]*models.Session, error)

	// FindPendingReminders returns active sessions with reminders enabled
	// that have not been sent and are due at or before asOf.
	FindPendingReminders(
		ctx context.Context,
		asOf time.Time,
	) ([]*models.Session, error)

	// FindCompletedBetween returns the user's sessions completed within
	// [from, to].
	FindCompletedBetween(
		ctx context.Context,
		userID string,
		from, to time.Time,
	) ([]*models.Session, error)

	// SessionsByUser returns the user's sessions started within
	// [from, to], newest first.
	SessionsByUser(
		ctx context.Context,
		userID string,
		from, to time.Time,
	) ([]*models.Session, error)

	// CreateTemplate persists a new template.
	CreateTemplate(ctx context.Context, tpl *models.Template) error

	// GetTemplate returns the template with the given id, or
	// ErrTemplateNotFound.
	GetTemplate(ctx context.Context, id string) (*models.Template, error)

	// TemplatesByUser returns the user's templates ordered by usage count.
	TemplatesByUser(
		ctx context.Context,
		userID string,
	) ([]*models.Template, error)

	// IncrementTemplateUsage bumps a template's usage counter.
	IncrementTemplateUsage(ctx context.Context, id string) error

	Close() error
}
