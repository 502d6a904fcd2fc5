// Package stats derives reporting figures from stored sessions: the
// consecutive-day completion streak and per-period summaries.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/maruel/natural"

	"github.com/focushive/sessiond/internal/models"
	"github.com/focushive/sessiond/internal/timeutil"
	"github.com/focushive/sessiond/store"
)

// DefaultLookbackDays bounds how far back the streak calculation looks.
const DefaultLookbackDays = 30

// Stats reads completed sessions and computes derived figures. Calendar
// arithmetic runs in a fixed reference location so a streak does not
// depend on which device asks.
type Stats struct {
	db           store.DB
	loc          *time.Location
	lookbackDays int
}

// Option configures a Stats reader.
type Option func(*Stats)

// WithLocation sets the reference timezone for calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Stats) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLookbackDays sets the streak lookback window.
func WithLookbackDays(days int) Option {
	return func(s *Stats) {
		if days > 0 {
			s.lookbackDays = days
		}
	}
}

// New creates a stats reader over the store.
func New(db store.DB, opts ...Option) *Stats {
	s := &Stats{
		db:           db,
		loc:          time.UTC,
		lookbackDays: DefaultLookbackDays,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CurrentStreak counts the consecutive calendar days ending at asOf's
// date on which the user completed at least one session. A day without
// a completion breaks the walk; if asOf's own date has none the streak
// is zero.
func (s *Stats) CurrentStreak(
	ctx context.Context,
	userID string,
	asOf time.Time,
) (int, error) {
	from := asOf.AddDate(0, 0, -s.lookbackDays)

	sessions, err := s.db.FindCompletedBetween(ctx, userID, from, asOf)
	if err != nil {
		return 0, err
	}

	days := make(map[string]struct{})

	for _, sess := range sessions {
		if sess.CompletedAt == nil {
			continue
		}

		days[timeutil.DayKey(sess.CompletedAt.In(s.loc))] = struct{}{}
	}

	streak := 0
	day := timeutil.RoundToStart(asOf.In(s.loc))

	for {
		if _, ok := days[timeutil.DayKey(day)]; !ok {
			break
		}

		streak++
		day = day.AddDate(0, 0, -1)
	}

	return streak, nil
}

// TagDuration is the active time attributed to one tag.
type TagDuration struct {
	Tag      string
	Duration time.Duration
}

// Summary aggregates a user's sessions over a reporting period.
type Summary struct {
	TotalSessions     int
	Completed         int
	Cancelled         int
	Expired           int
	TotalFocusMinutes int
	AvgProductivity   float64
	CompletionRate    float64
	SessionsByType    map[models.Type]int
	Tags              []TagDuration
	CurrentStreak     int
}

// Summarize computes the user's summary for sessions started within
// [from, to].
func (s *Stats) Summarize(
	ctx context.Context,
	userID string,
	from, to time.Time,
) (*Summary, error) {
	sessions, err := s.db.SessionsByUser(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SessionsByType: make(map[models.Type]int),
	}

	tags := make(map[string]time.Duration)

	var (
		scoreTotal int
		scoreCount int
	)

	for _, sess := range sessions {
		summary.TotalSessions++
		summary.SessionsByType[sess.Type]++

		switch sess.Status {
		case models.StatusCompleted:
			summary.Completed++
		case models.StatusCancelled:
			summary.Cancelled++
		case models.StatusExpired:
			summary.Expired++
		}

		active := sess.ActiveDuration(to)
		summary.TotalFocusMinutes += int(active.Minutes())

		if sess.ProductivityScore != nil {
			scoreTotal += *sess.ProductivityScore
			scoreCount++
		}

		if len(sess.Tags) == 0 {
			tags["uncategorized"] += active
			continue
		}

		for _, tag := range sess.Tags {
			tags[tag] += active
		}
	}

	if scoreCount > 0 {
		summary.AvgProductivity = float64(scoreTotal) / float64(scoreCount)
	}

	if summary.TotalSessions > 0 {
		summary.CompletionRate = float64(summary.Completed) /
			float64(summary.TotalSessions) * 100
	}

	for tag, dur := range tags {
		summary.Tags = append(summary.Tags, TagDuration{Tag: tag, Duration: dur})
	}

	sort.Slice(summary.Tags, func(i, j int) bool {
		return natural.Less(summary.Tags[i].Tag, summary.Tags[j].Tag)
	})

	streak, err := s.CurrentStreak(ctx, userID, to)
	if err != nil {
		return nil, err
	}

	summary.CurrentStreak = streak

	return summary, nil
}
