// Package marketapi calls the marketplace API for the account operations the
// web service needs: login, registration, role switching and profile edits.
package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"estate/internal/discovery"
	"estate/internal/session"
)

var (
	// ErrInvalidCredentials is returned when the marketplace rejects a login
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an email that is taken
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when the account does not exist
	ErrUserNotFound = errors.New("user not found")
)

// APIError is any other non-2xx answer from the marketplace
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("marketplace api returned status %d", e.Status)
	}
	return fmt.Sprintf("marketplace api returned status %d: %s", e.Status, e.Message)
}

// RegisterRequest is the payload of POST /register
type RegisterRequest struct {
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     session.Role `json:"role"`
}

// userResponse is the body the marketplace answers account calls with
type userResponse struct {
	Message string        `json:"message"`
	User    *session.User `json:"user"`
}

// Client talks to the marketplace API
type Client struct {
	resolver discovery.Resolver
	http     *http.Client
}

// NewClient creates a client resolving the marketplace through resolver
func NewClient(resolver discovery.Resolver, timeout time.Duration) *Client {
	return &Client{
		resolver: resolver,
		http:     &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for the user record
func (c *Client) Login(ctx context.Context, email, password string) (session.User, error) {
	body := map[string]string{"email": email, "password": password}

	var resp userResponse
	status, err := c.post(ctx, "/login", body, &resp)
	if err != nil {
		return session.User{}, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return session.User{}, ErrInvalidCredentials
	case status != http.StatusOK:
		return session.User{}, &APIError{Status: status, Message: resp.Message}
	case resp.User == nil:
		return session.User{}, &APIError{Status: status, Message: "response carries no user"}
	}
	return *resp.User, nil
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (session.User, error) {
	var resp userResponse
	status, err := c.post(ctx, "/register", req, &resp)
	if err != nil {
		return session.User{}, err
	}

	switch status {
	case http.StatusCreated, http.StatusOK:
		if resp.User == nil {
			return session.User{}, nil
		}
		return *resp.User, nil
	case http.StatusBadRequest:
		return session.User{}, ErrUserExists
	default:
		return session.User{}, &APIError{Status: status, Message: resp.Message}
	}
}

// SwitchRole records the new role of the account identified by email
func (c *Client) SwitchRole(ctx context.Context, email string, role session.Role) error {
	body := map[string]string{"email": email, "role": string(role)}

	var resp userResponse
	status, err := c.post(ctx, "/api/switch-role", body, &resp)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrUserNotFound
	default:
		return &APIError{Status: status, Message: resp.Message}
	}
}

// ProfileUpdate carries the editable account fields. Empty fields are left
// unchanged by the marketplace.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// UpdateProfile edits the account identified by email
func (c *Client) UpdateProfile(ctx context.Context, email string, update ProfileUpdate) error {
	body := map[string]string{"email": email}
	if update.Username != "" {
		body["username"] = update.Username
	}
	if update.Password != "" {
		body["password"] = update.Password
	}

	var resp userResponse
	status, err := c.post(ctx, "/api/update-profile", body, &resp)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrUserNotFound
	default:
		return &APIError{Status: status, Message: resp.Message}
	}
}

// post sends body as JSON and decodes the answer into out. Undecodable
// error bodies are tolerated; the status code still drives the result.
func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	base, err := c.resolver.Resolve()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve marketplace api: %w", err)
	}
	base.Path += path

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("marketplace request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil && resp.StatusCode < 300 {
			return 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
