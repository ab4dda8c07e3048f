package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoInstances is returned when a service has no healthy instance
var ErrNoInstances = errors.New("no healthy instances")

// Resolver returns the base URL of a backend for the next request
type Resolver interface {
	Resolve() (*url.URL, error)
}

// Finder is the part of Client a ConsulResolver needs
type Finder interface {
	DiscoverOne(serviceName string) (Instance, error)
}

type staticResolver struct {
	base *url.URL
}

// NewStaticResolver always resolves to rawURL
func NewStaticResolver(rawURL string) (Resolver, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	return &staticResolver{base: u}, nil
}

func (r *staticResolver) Resolve() (*url.URL, error) {
	cp := *r.base
	return &cp, nil
}

type consulResolver struct {
	finder  Finder
	service string
}

// NewConsulResolver resolves serviceName through Consul on every call
func NewConsulResolver(finder Finder, serviceName string) Resolver {
	return &consulResolver{finder: finder, service: serviceName}
}

func (r *consulResolver) Resolve() (*url.URL, error) {
	inst, err := r.finder.DiscoverOne(r.service)
	if err != nil {
		return nil, err
	}
	return &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", inst.Address, inst.Port),
	}, nil
}
