package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the capability a user acts under.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleBuyer, RoleSeller, RoleAdmin}
}

// ParseRole converts s into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// SelfService reports whether a user may switch into r on their own.
func (r Role) SelfService() bool {
	return r == RoleBuyer || r == RoleSeller
}

func (r Role) String() string {
	return string(r)
}

// UserID is an opaque identifier. The marketplace API emits numbers, older
// snapshots may carry strings; both decode.
type UserID string

// UnmarshalJSON accepts a JSON string or number.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the authenticated principal as returned by the marketplace API and
// persisted in the snapshot.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// validate enforces the invariants every held or persisted session satisfies.
func (u User) validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrInvalidSession
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	return nil
}

// ChangeKind names a session mutation.
type ChangeKind string

const (
	ChangeLogin        ChangeKind = "login"
	ChangeLogout       ChangeKind = "logout"
	ChangeRoleSwitched ChangeKind = "role_switched"
)

// Change describes a completed mutation. Previous or Current is nil when no
// session existed on that side of the change.
type Change struct {
	Kind     ChangeKind
	ClientID string
	Previous *User
	Current  *User
}

// Observer is notified synchronously after every mutation.
type Observer func(Change)
