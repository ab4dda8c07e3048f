package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBackend(t *testing.T) (Backend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisBackend(rdb), mr
}

func alice() User {
	return User{ID: "1", Username: "alice", Email: "a@x.com", Role: RoleBuyer}
}

// failingBackend simulates storage that rejects every call
type failingBackend struct{}

func (failingBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("storage full")
}

func (failingBackend) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("storage offline")
}

func (failingBackend) Delete(ctx context.Context, key string) error {
	return errors.New("storage offline")
}

func TestInitialize_NoSnapshot(t *testing.T) {
	backend, _ := newTestBackend(t)

	s := New(backend, "c1")
	s.Initialize(context.Background())

	if _, ok := s.Current(); ok {
		t.Fatal("expected no active session")
	}
}

func TestInitialize_MalformedSnapshots(t *testing.T) {
	cases := map[string]string{
		"not json":        "{not-json",
		"array":           `[1,2,3]`,
		"string":          `"user"`,
		"null":            `null`,
		"missing email":   `{"id":1,"username":"bob","role":"buyer"}`,
		"empty email":     `{"id":1,"email":"","role":"buyer"}`,
		"missing role":    `{"id":1,"email":"b@x.com"}`,
		"unknown role":    `{"id":1,"email":"b@x.com","role":"superuser"}`,
		"bad id type":     `{"id":{"n":1},"email":"b@x.com","role":"buyer"}`,
		"truncated":       `{"id":1,"email":"b@x.com","role":"buy`,
		"empty document":  ``,
		"whitespace only": "   ",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			backend, mr := newTestBackend(t)
			if err := mr.Set(KeyFor("c1"), raw); err != nil {
				t.Fatalf("seed snapshot: %v", err)
			}

			s := New(backend, "c1")
			s.Initialize(context.Background())

			if u, ok := s.Current(); ok {
				t.Fatalf("expected no active session, got %+v", u)
			}
		})
	}
}

func TestInitialize_BackendFailure(t *testing.T) {
	s := New(failingBackend{}, "c1")
	s.Initialize(context.Background())

	if _, ok := s.Current(); ok {
		t.Fatal("expected no active session when storage is unreadable")
	}
}

func TestInitialize_NumericID(t *testing.T) {
	backend, mr := newTestBackend(t)
	mr.Set(KeyFor("c1"), `{"id":42,"username":"bob","email":"b@x.com","role":"seller"}`)

	s := New(backend, "c1")
	s.Initialize(context.Background())

	u, ok := s.Current()
	if !ok {
		t.Fatal("expected session to be rehydrated")
	}
	want := User{ID: "42", Username: "bob", Email: "b@x.com", Role: RoleSeller}
	if u != want {
		t.Fatalf("expected %+v, got %+v", want, u)
	}
}

func TestLogin_ThenReload(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	u := alice()

	s := New(backend, "c1")
	s.Initialize(ctx)
	if err := s.Login(ctx, u); err != nil {
		t.Fatalf("login: %v", err)
	}

	got, ok := s.Current()
	if !ok || got != u {
		t.Fatalf("expected %+v, got %+v (ok=%v)", u, got, ok)
	}

	reloaded := New(backend, "c1")
	reloaded.Initialize(ctx)

	got, ok = reloaded.Current()
	if !ok || got != u {
		t.Fatalf("after reload expected %+v, got %+v (ok=%v)", u, got, ok)
	}
}

func TestLogin_OverwritesPrevious(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")
	if err := s.Login(ctx, alice()); err != nil {
		t.Fatalf("login: %v", err)
	}
	bob := User{ID: "2", Username: "bob", Email: "b@x.com", Role: RoleAdmin}
	if err := s.Login(ctx, bob); err != nil {
		t.Fatalf("second login: %v", err)
	}

	reloaded := New(backend, "c1")
	reloaded.Initialize(ctx)
	got, _ := reloaded.Current()
	if got != bob {
		t.Fatalf("expected %+v, got %+v", bob, got)
	}
}

func TestLogin_RejectsInvalidRecords(t *testing.T) {
	backend, mr := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")

	err := s.Login(ctx, User{ID: "3", Username: "ghost", Role: RoleBuyer})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	err = s.Login(ctx, User{ID: "3", Email: "g@x.com", Role: "root"})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if _, ok := s.Current(); ok {
		t.Fatal("rejected login must not create a session")
	}
	if mr.Exists(KeyFor("c1")) {
		t.Fatal("rejected login must not be persisted")
	}
}

func TestLogin_PersistFailureKeepsMemory(t *testing.T) {
	s := New(failingBackend{}, "c1")

	if err := s.Login(context.Background(), alice()); err != nil {
		t.Fatalf("persistence failures must not surface, got %v", err)
	}
	if got, ok := s.Current(); !ok || got != alice() {
		t.Fatalf("expected in-memory session to survive, got %+v", got)
	}
}

func TestLogout(t *testing.T) {
	backend, mr := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")
	s.Login(ctx, alice())
	s.Logout(ctx)

	if _, ok := s.Current(); ok {
		t.Fatal("expected no active session after logout")
	}
	if mr.Exists(KeyFor("c1")) {
		t.Fatal("expected snapshot to be removed")
	}

	// Idempotent
	s.Logout(ctx)
	if _, ok := s.Current(); ok {
		t.Fatal("expected no active session after second logout")
	}
}

func TestSwitchRole_NoSession(t *testing.T) {
	backend, mr := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")
	for _, role := range []Role{RoleSeller, RoleAdmin, Role("landlord")} {
		if err := s.SwitchRole(ctx, role); err != nil {
			t.Fatalf("switch to %q: expected no-op, got %v", role, err)
		}
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected state to stay anonymous")
	}
	if mr.Exists(KeyFor("c1")) {
		t.Fatal("expected nothing persisted")
	}
}

func TestSwitchRole_ChangesOnlyRole(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	u := alice()

	s := New(backend, "c1")
	s.Login(ctx, u)
	if err := s.SwitchRole(ctx, RoleSeller); err != nil {
		t.Fatalf("switch role: %v", err)
	}

	want := u
	want.Role = RoleSeller
	if got, _ := s.Current(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	reloaded := New(backend, "c1")
	reloaded.Initialize(ctx)
	if got, _ := reloaded.Current(); got != want {
		t.Fatalf("after reload expected %+v, got %+v", want, got)
	}
}

func TestSwitchRole_Validation(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")
	s.Login(ctx, alice())

	if err := s.SwitchRole(ctx, RoleAdmin); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for admin target, got %v", err)
	}
	if err := s.SwitchRole(ctx, Role("landlord")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for unknown target, got %v", err)
	}

	admin := User{ID: "9", Username: "root", Email: "root@x.com", Role: RoleAdmin}
	s.Login(ctx, admin)
	if err := s.SwitchRole(ctx, RoleBuyer); !errors.Is(err, ErrRoleSwitchForbidden) {
		t.Fatalf("expected ErrRoleSwitchForbidden, got %v", err)
	}
	if got, _ := s.Current(); got != admin {
		t.Fatalf("admin session must be untouched, got %+v", got)
	}
}

func TestSubscribe(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	s := New(backend, "c1")
	var changes []Change
	cancel := s.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	s.Login(ctx, alice())
	s.SwitchRole(ctx, RoleSeller)
	s.Logout(ctx)
	s.Logout(ctx)

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	kinds := []ChangeKind{ChangeLogin, ChangeRoleSwitched, ChangeLogout}
	for i, k := range kinds {
		if changes[i].Kind != k {
			t.Errorf("change %d: expected %s, got %s", i, k, changes[i].Kind)
		}
		if changes[i].ClientID != "c1" {
			t.Errorf("change %d: expected client c1, got %s", i, changes[i].ClientID)
		}
	}
	if changes[1].Previous.Role != RoleBuyer || changes[1].Current.Role != RoleSeller {
		t.Errorf("unexpected role switch change: %+v -> %+v", changes[1].Previous, changes[1].Current)
	}
	if changes[2].Current != nil {
		t.Error("logout change must have no current session")
	}

	cancel()
	s.Login(ctx, alice())
	if len(changes) != 3 {
		t.Fatalf("expected no notification after cancel, got %d changes", len(changes))
	}
}

func TestSnapshotTTL(t *testing.T) {
	backend, mr := newTestBackend(t)

	s := New(backend, "c1", WithTTL(time.Hour))
	s.Login(context.Background(), alice())

	if ttl := mr.TTL(KeyFor("c1")); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}
}

func TestClientsAreIsolated(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	New(backend, "c1").Login(ctx, alice())

	other := New(backend, "c2")
	other.Initialize(ctx)
	if _, ok := other.Current(); ok {
		t.Fatal("client c2 must not see client c1's session")
	}
}
