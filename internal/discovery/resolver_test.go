package discovery

import (
	"errors"
	"testing"
)

type fakeFinder struct {
	instances []Instance
	err       error
}

func (f *fakeFinder) DiscoverOne(serviceName string) (Instance, error) {
	if f.err != nil {
		return Instance{}, f.err
	}
	return pickOne(serviceName, f.instances)
}

func TestStaticResolver(t *testing.T) {
	r, err := NewStaticResolver("http://127.0.0.1:5000/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if u.String() != "http://127.0.0.1:5000" {
		t.Errorf("expected trailing slash to be trimmed, got %s", u)
	}

	// Callers may mutate the result without affecting the resolver
	u.Path = "/login"
	again, _ := r.Resolve()
	if again.Path != "" {
		t.Errorf("resolver base was mutated: %s", again)
	}
}

func TestStaticResolver_Invalid(t *testing.T) {
	for _, raw := range []string{"", "127.0.0.1:5000", "://bad"} {
		if _, err := NewStaticResolver(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestConsulResolver(t *testing.T) {
	finder := &fakeFinder{instances: []Instance{{Address: "10.0.0.5", Port: 5000}}}
	r := NewConsulResolver(finder, "marketplace-api")

	u, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if u.String() != "http://10.0.0.5:5000" {
		t.Errorf("unexpected url %s", u)
	}
}

func TestConsulResolver_NoInstances(t *testing.T) {
	r := NewConsulResolver(&fakeFinder{}, "marketplace-api")
	if _, err := r.Resolve(); !errors.Is(err, ErrNoInstances) {
		t.Errorf("expected ErrNoInstances, got %v", err)
	}
}
