// Package guard decides whether the current session may see a protected
// view. Authorize is the only place roles are compared against a route's
// capability requirement.
package guard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"estate/internal/session"
)

// Redirect targets. They are fixed and not configurable per route.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// ErrEmptyRequirement is returned when a requirement names no roles
var ErrEmptyRequirement = errors.New("capability requirement must name at least one role")

// Decision is the outcome of Authorize.
type Decision int

const (
	Render Decision = iota
	RedirectToLogin
	RedirectToHome
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToHome:
		return "redirect_home"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Target returns the redirect destination, or "" for Render.
func (d Decision) Target() string {
	switch d {
	case RedirectToLogin:
		return LoginPath
	case RedirectToHome:
		return HomePath
	}
	return ""
}

// Requirement is the set of roles allowed to see a view. It is fixed when
// the route is registered.
type Requirement struct {
	roles map[session.Role]struct{}
}

// NewRequirement builds a requirement from roles.
func NewRequirement(roles ...session.Role) (Requirement, error) {
	if len(roles) == 0 {
		return Requirement{}, ErrEmptyRequirement
	}
	set := make(map[session.Role]struct{}, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return Requirement{}, fmt.Errorf("%w: %q", session.ErrInvalidRole, r)
		}
		set[r] = struct{}{}
	}
	return Requirement{roles: set}, nil
}

// Require is NewRequirement for static route tables; it panics on bad input.
func Require(roles ...session.Role) Requirement {
	req, err := NewRequirement(roles...)
	if err != nil {
		panic(err)
	}
	return req
}

// Allows reports whether role satisfies the requirement.
func (r Requirement) Allows(role session.Role) bool {
	_, ok := r.roles[role]
	return ok
}

// Roles returns the allowed roles in sorted order.
func (r Requirement) Roles() []session.Role {
	out := make([]session.Role, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Requirement) String() string {
	roles := r.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Authorize compares user against req. A nil user is anonymous. Being
// signed out wins over having the wrong role.
func Authorize(user *session.User, req Requirement) Decision {
	if user == nil {
		return RedirectToLogin
	}
	if !req.Allows(user.Role) {
		return RedirectToHome
	}
	return Render
}
