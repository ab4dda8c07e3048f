// Package discovery locates the marketplace API and registers the web
// service with HashiCorp Consul.
package discovery

import (
	"fmt"
	"math/rand"

	consulapi "github.com/hashicorp/consul/api"
)

// Instance is one healthy instance of a service
type Instance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// Registration describes this service to Consul
type Registration struct {
	ID        string
	Name      string
	Address   string
	Port      int
	Tags      []string
	HealthURL string
}

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClientWithToken creates a Consul client, using token for ACLs when set
func NewClientWithToken(addr, token string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	if token != "" {
		cfg.Token = token
	}

	api, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &Client{api: api}, nil
}

// Discover returns every passing instance of serviceName
func (c *Client) Discover(serviceName string) ([]Instance, error) {
	entries, _, err := c.api.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}

	instances := make([]Instance, 0, len(entries))
	for _, entry := range entries {
		inst := Instance{
			ID:      entry.Service.ID,
			Name:    entry.Service.Service,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
		}
		// Use node address if service address is empty
		if inst.Address == "" {
			inst.Address = entry.Node.Address
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// DiscoverOne picks a random healthy instance of serviceName
func (c *Client) DiscoverOne(serviceName string) (Instance, error) {
	instances, err := c.Discover(serviceName)
	if err != nil {
		return Instance{}, err
	}
	return pickOne(serviceName, instances)
}

func pickOne(serviceName string, instances []Instance) (Instance, error) {
	if len(instances) == 0 {
		return Instance{}, fmt.Errorf("%w: %s", ErrNoInstances, serviceName)
	}
	return instances[rand.Intn(len(instances))], nil
}

// Register announces the service with an HTTP health check
func (c *Client) Register(reg Registration) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
	}
	if reg.HealthURL != "" {
		registration.Check = &consulapi.AgentServiceCheck{
			HTTP:     reg.HealthURL,
			Interval: "10s",
			Timeout:  "3s",
		}
	}

	if err := c.api.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}
