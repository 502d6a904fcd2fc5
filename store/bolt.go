package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/timeutil"
)

var errStoreLocked = errors.New(
	"is sessiond already running? only one instance can hold the data store",
)

var (
	bucketSessions  = []byte("sessions")
	bucketLive      = []byte("live")
	bucketUserIndex = []byte("user_sessions")
	bucketTemplates = []byte("templates")
)

// Client is a BoltDB-backed session store. Bolt serializes write
// transactions, which is what makes the live-slot check-and-create and
// the version-conditioned save atomic.
type Client struct {
	*bolt.DB
}

// NewClient opens or creates the database at the given path and ensures
// the required buckets exist.
func NewClient(path string) (*Client, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketSessions,
			bucketLive,
			bucketUserIndex,
			bucketTemplates,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{db}, nil
}

func openDB(path string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(
		path,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseOpen) ||
			errors.Is(err, bolt.ErrTimeout) {
			return nil, errStoreLocked
		}

		return nil, err
	}

	return db, nil
}

// indexKey orders a user's sessions by start time within the user index.
func indexKey(userID string, startedAt time.Time, id string) []byte {
	var b bytes.Buffer

	b.WriteString(userID)
	b.WriteByte(0)
	b.Write(timeutil.ToKey(startedAt))
	b.WriteByte(0)
	b.WriteString(id)

	return b.Bytes()
}

func userPrefix(userID string) []byte {
	return append([]byte(userID), 0)
}

func (c *Client) CreateSession(
	ctx context.Context,
	sess *models.Session,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess.Version = 1

	value, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		live := tx.Bucket(bucketLive)

		if existing := live.Get([]byte(sess.UserID)); existing != nil {
			return ErrDuplicateLiveSession
		}

		if err := live.Put([]byte(sess.UserID), []byte(sess.ID)); err != nil {
			return err
		}

		key := indexKey(sess.UserID, sess.StartedAt, sess.ID)
		if err := tx.Bucket(bucketUserIndex).Put(key, []byte(sess.ID)); err != nil {
			return err
		}

		return tx.Bucket(bucketSessions).Put([]byte(sess.ID), value)
	})
}

func (c *Client) GetSession(
	ctx context.Context,
	id string,
) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess *models.Session

	err := c.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketSessions).Get([]byte(id))
		if value == nil {
			return ErrSessionNotFound
		}

		sess = &models.Session{}

		return json.Unmarshal(value, sess)
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

func (c *Client) FindLiveByUser(
	ctx context.Context,
	userID string,
) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess *models.Session

	err := c.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketLive).Get([]byte(userID))
		if id == nil {
			return nil
		}

		value := tx.Bucket(bucketSessions).Get(id)
		if value == nil {
			return ErrSessionNotFound
		}

		sess = &models.Session{}

		return json.Unmarshal(value, sess)
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

func (c *Client) SaveSession(
	ctx context.Context,
	sess *models.Session,
	expectedVersion int64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)

		current := sessions.Get([]byte(sess.ID))
		if current == nil {
			return ErrSessionNotFound
		}

		var stored models.Session
		if err := json.Unmarshal(current, &stored); err != nil {
			return err
		}

		if stored.Version != expectedVersion {
			return &StaleVersionError{
				ID:       sess.ID,
				Expected: expectedVersion,
				Actual:   stored.Version,
			}
		}

		sess.Version = expectedVersion + 1

		value, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		if err := sessions.Put([]byte(sess.ID), value); err != nil {
			return err
		}

		// A session leaving the live states frees the user's live slot.
		if sess.Status.Terminal() {
			live := tx.Bucket(bucketLive)
			if id := live.Get([]byte(sess.UserID)); bytes.Equal(id, []byte(sess.ID)) {
				return live.Delete([]byte(sess.UserID))
			}
		}

		return nil
	})
}

// liveSessions loads every session currently holding a live slot.
func (c *Client) liveSessions(tx *bolt.Tx) ([]*models.Session, error) {
	var result []*models.Session

	sessions := tx.Bucket(bucketSessions)

	err := tx.Bucket(bucketLive).ForEach(func(_, id []byte) error {
		value := sessions.Get(id)
		if value == nil {
			return nil
		}

		var sess models.Session
		if err := json.Unmarshal(value, &sess); err != nil {
			return err
		}

		result = append(result, &sess)

		return nil
	})

	return result, err
}

func (c *Client) FindLiveOlderThan(
	ctx context.Context,
	cutoff time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.Session

	err := c.View(func(tx *bolt.Tx) error {
		live, err := c.liveSessions(tx)
		if err != nil {
			return err
		}

		for _, sess := range live {
			if sess.Status.Live() && sess.StartedAt.Before(cutoff) {
				result = append(result, sess)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) FindPendingReminders(
	ctx context.Context,
	asOf time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.Session

	err := c.View(func(tx *bolt.Tx) error {
		live, err := c.liveSessions(tx)
		if err != nil {
			return err
		}

		for _, sess := range live {
			if sess.Status != models.StatusActive {
				continue
			}

			if !sess.ReminderEnabled || sess.ReminderSent {
				continue
			}

			if !sess.ReminderAt().After(asOf) {
				result = append(result, sess)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// sessionsByUser scans the user index and loads each of the user's
// sessions in start-time order.
func (c *Client) sessionsByUser(
	tx *bolt.Tx,
	userID string,
) ([]*models.Session, error) {
	var result []*models.Session

	sessions := tx.Bucket(bucketSessions)
	cur := tx.Bucket(bucketUserIndex).Cursor()
	prefix := userPrefix(userID)

	for k, id := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = cur.Next() {
		value := sessions.Get(id)
		if value == nil {
			continue
		}

		var sess models.Session
		if err := json.Unmarshal(value, &sess); err != nil {
			return nil, err
		}

		result = append(result, &sess)
	}

	return result, nil
}

func (c *Client) FindCompletedBetween(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.Session

	err := c.View(func(tx *bolt.Tx) error {
		all, err := c.sessionsByUser(tx, userID)
		if err != nil {
			return err
		}

		for _, sess := range all {
			if sess.Status != models.StatusCompleted || sess.CompletedAt == nil {
				continue
			}

			at := *sess.CompletedAt
			if at.Before(from) || at.After(to) {
				continue
			}

			result = append(result, sess)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) SessionsByUser(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.Session

	err := c.View(func(tx *bolt.Tx) error {
		all, err := c.sessionsByUser(tx, userID)
		if err != nil {
			return err
		}

		for _, sess := range all {
			if sess.StartedAt.Before(from) || sess.StartedAt.After(to) {
				continue
			}

			result = append(result, sess)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return result, nil
}

func (c *Client) CreateTemplate(
	ctx context.Context,
	tpl *models.Template,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(tpl)
	if err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).Put([]byte(tpl.ID), value)
	})
}

func (c *Client) GetTemplate(
	ctx context.Context,
	id string,
) (*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tpl *models.Template

	err := c.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketTemplates).Get([]byte(id))
		if value == nil {
			return ErrTemplateNotFound
		}

		tpl = &models.Template{}

		return json.Unmarshal(value, tpl)
	})
	if err != nil {
		return nil, err
	}

	return tpl, nil
}

func (c *Client) TemplatesByUser(
	ctx context.Context,
	userID string,
) ([]*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*models.Template

	err := c.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).ForEach(func(_, value []byte) error {
			var tpl models.Template
			if err := json.Unmarshal(value, &tpl); err != nil {
				return err
			}

			if tpl.UserID == userID {
				result = append(result, &tpl)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UsageCount > result[j].UsageCount
	})

	return result, nil
}

func (c *Client) IncrementTemplateUsage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)

		value := templates.Get([]byte(id))
		if value == nil {
			return ErrTemplateNotFound
		}

		var tpl models.Template
		if err := json.Unmarshal(value, &tpl); err != nil {
			return err
		}

		tpl.UsageCount++

		updated, err := json.Marshal(&tpl)
		if err != nil {
			return err
		}

		return templates.Put([]byte(id), updated)
	})
}
