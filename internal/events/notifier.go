package events

import (
	"log/slog"
	"time"

	"estate/internal/session"

	"github.com/google/uuid"
)

// SessionEvent is the message written for every session change
type SessionEvent struct {
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"`
	ClientID     string    `json:"client_id"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role,omitempty"`
	PreviousRole string    `json:"previous_role,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SessionNotifier turns session changes into Kafka events
type SessionNotifier struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionNotifier publishes to topic through publisher
func NewSessionNotifier(publisher Publisher, topic string, logger *slog.Logger) *SessionNotifier {
	return &SessionNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		now:       time.Now,
	}
}

// Observe is a session.Observer. Publish errors are logged, never returned,
// so a broker outage cannot fail a login.
func (n *SessionNotifier) Observe(change session.Change) {
	event := SessionEvent{
		EventID:    uuid.New().String(),
		Kind:       string(change.Kind),
		ClientID:   change.ClientID,
		OccurredAt: n.now().UTC(),
	}

	// The subject is the session after the change, or before it for logouts
	subject := change.Current
	if subject == nil {
		subject = change.Previous
	}
	if subject != nil {
		event.UserID = string(subject.ID)
		event.Email = subject.Email
		event.Role = string(subject.Role)
	}
	if change.Kind == session.ChangeRoleSwitched && change.Previous != nil {
		event.PreviousRole = string(change.Previous.Role)
	}

	if err := n.publisher.Publish(n.topic, change.ClientID, event); err != nil {
		n.logger.Warn("Failed to publish session event",
			"kind", event.Kind,
			"client_id", event.ClientID,
			"error", err,
		)
	}
}
