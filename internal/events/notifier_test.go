package events

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"estate/internal/session"
)

type published struct {
	topic string
	key   string
	event SessionEvent
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(topic, key string, event any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, key: key, event: event.(SessionEvent)})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionNotifier_RoleSwitch(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSessionNotifier(pub, "session-events", quietLogger())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	prev := &session.User{ID: "1", Email: "a@x.com", Role: session.RoleBuyer}
	next := &session.User{ID: "1", Email: "a@x.com", Role: session.RoleSeller}
	n.Observe(session.Change{Kind: session.ChangeRoleSwitched, ClientID: "c1", Previous: prev, Current: next})

	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.sent))
	}
	got := pub.sent[0]
	if got.topic != "session-events" || got.key != "c1" {
		t.Errorf("unexpected topic/key %s/%s", got.topic, got.key)
	}
	if got.event.Role != "seller" || got.event.PreviousRole != "buyer" {
		t.Errorf("unexpected roles %+v", got.event)
	}
	if !got.event.OccurredAt.Equal(fixed) || got.event.EventID == "" {
		t.Errorf("unexpected metadata %+v", got.event)
	}
}

func TestSessionNotifier_LogoutUsesPrevious(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSessionNotifier(pub, "session-events", quietLogger())

	prev := &session.User{ID: "1", Email: "a@x.com", Role: session.RoleBuyer}
	n.Observe(session.Change{Kind: session.ChangeLogout, ClientID: "c1", Previous: prev})

	ev := pub.sent[0].event
	if ev.Kind != "logout" || ev.Email != "a@x.com" || ev.PreviousRole != "" {
		t.Errorf("unexpected logout event %+v", ev)
	}
}

func TestSessionNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewSessionNotifier(pub, "session-events", quietLogger())

	// Must not panic or propagate
	n.Observe(session.Change{Kind: session.ChangeLogin, ClientID: "c1", Current: &session.User{Email: "a@x.com", Role: session.RoleBuyer}})
}
