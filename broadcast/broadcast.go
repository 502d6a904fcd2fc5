// Package broadcast fans out session state changes to per-user and
// per-hive topics. Delivery is best-effort: a consumer must treat an
// event as a hint to re-fetch authoritative state, not as the state
// itself.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/focushive/sessiond/internal/models"
)

// Event is the payload delivered to subscribers of a topic.
type Event struct {
	SessionID  string            `json:"session_id"`
	UpdateType models.UpdateType `json:"update_type"`
	Session    *models.Session   `json:"session"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Channel delivers an event to a single topic. Implementations may drop
// events; publish errors are logged by the publisher and never surface
// into the state mutation that triggered them.
type Channel interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// UserTopic is the personal channel for a user's devices.
func UserTopic(userID string) string {
	return "timer/" + userID
}

// HiveTopic is the shared channel for a hive's members.
func HiveTopic(hiveID string) string {
	return "hive/" + hiveID + "/timer"
}

// Publisher fans a session snapshot out to the owner's topic and, when
// the session belongs to a hive, the hive topic as well.
type Publisher struct {
	ch     Channel
	logger *slog.Logger
}

// NewPublisher wraps a channel in fire-and-forget fan-out semantics.
func NewPublisher(ch Channel) *Publisher {
	return &Publisher{
		ch:     ch,
		logger: slog.Default(),
	}
}

// Publish sends the snapshot to all relevant topics. Failures are logged
// and swallowed.
func (p *Publisher) Publish(
	ctx context.Context,
	sess *models.Session,
	updateType models.UpdateType,
) {
	event := Event{
		SessionID:  sess.ID,
		UpdateType: updateType,
		Session:    sess.Clone(),
		Timestamp:  time.Now(),
	}

	topics := []string{UserTopic(sess.UserID)}
	if sess.HiveID != "" {
		topics = append(topics, HiveTopic(sess.HiveID))
	}

	for _, topic := range topics {
		if err := p.ch.Publish(ctx, topic, event); err != nil {
			p.logger.Warn("broadcast publish failed",
				slog.String("topic", topic),
				slog.String("session_id", sess.ID),
				slog.String("update_type", string(updateType)),
				slog.Any("error", err),
			)
		}
	}
}

// NopChannel discards every event.
type NopChannel struct{}

func (NopChannel) Publish(_ context.Context, _ string, _ Event) error {
	return nil
}
