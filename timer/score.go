package timer

import (
	"time"

	"github.com/focushive/sessiond/internal/models"
)

// Productivity score weighting. The score rewards sticking to the
// planned duration and finishing tasks, and penalises distractions.
// It is monotonic: distractions and tab switches only ever subtract,
// completed tasks only ever add.
const (
	maxScore           = 100
	activeTimeWeight   = 70
	completionBonus    = 30
	distractionPenalty = 2
	taskBonus          = 5
)

// computeScore derives a productivity score in [0, 100] from the
// session's accumulators. The completion bonus applies only on the
// transition to COMPLETED; mid-session recomputations run without it.
func computeScore(sess *models.Session, asOf time.Time, completed bool) int {
	planned := time.Duration(sess.DurationMinutes) * time.Minute

	ratio := float64(sess.ActiveDuration(asOf)) / float64(planned)
	if ratio > 1 {
		ratio = 1
	}

	score := int(activeTimeWeight * ratio)

	if completed {
		score += completionBonus
	}

	score -= distractionPenalty * sess.DistractionMinutes
	score -= sess.TabSwitches
	score += taskBonus * sess.TasksCompleted

	if score < 0 {
		return 0
	}

	if score > maxScore {
		return maxScore
	}

	return score
}
