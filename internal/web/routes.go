package web

import (
	"estate/internal/session"
)

// page is a view of the marketplace front end. Roles is empty for public
// pages.
type page struct {
	Path  string
	View  string
	Roles []session.Role
}

var (
	everyone      = []session.Role{session.RoleBuyer, session.RoleSeller, session.RoleAdmin}
	buyerOrSeller = []session.Role{session.RoleBuyer, session.RoleSeller}
	buyerOnly     = []session.Role{session.RoleBuyer}
	sellerOnly    = []session.Role{session.RoleSeller}
	adminOnly     = []session.Role{session.RoleAdmin}
)

var pages = []page{
	{Path: "/", View: "home"},
	{Path: "/login", View: "login"},
	{Path: "/signup", View: "signup"},
	{Path: "/contact", View: "contact"},
	{Path: "/buy/property/:propertyId", View: "property_details"},
	{Path: "/rent/property/:propertyId", View: "rent_property_details"},

	{Path: "/buy", View: "buy", Roles: buyerOnly},
	{Path: "/sell", View: "sell", Roles: sellerOnly},
	{Path: "/rent", View: "rent", Roles: buyerOrSeller},
	{Path: "/liked", View: "liked", Roles: buyerOrSeller},
	{Path: "/ask-ai", View: "ask_ai", Roles: buyerOrSeller},
	{Path: "/profile", View: "profile", Roles: everyone},
	{Path: "/chat-seller", View: "chat_seller", Roles: buyerOnly},
	{Path: "/chat-buyer", View: "chat_buyer", Roles: sellerOnly},

	{Path: "/request", View: "admin_request", Roles: adminOnly},
	{Path: "/verified", View: "admin_verified", Roles: adminOnly},
}

// NavLink is one entry of the navigation bar
type NavLink struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Method string `json:"method,omitempty"`
}

var (
	homeLink   = NavLink{Label: "Home", Path: "/"}
	logoutLink = NavLink{Label: "Logout", Path: "/logout", Method: "POST"}
)

// navigation returns the links shown to user, or to anonymous visitors
// when user is nil
func navigation(user *session.User) []NavLink {
	if user == nil {
		return []NavLink{
			homeLink,
			{Label: "Login", Path: "/login"},
			{Label: "Contact", Path: "/contact"},
		}
	}

	links := []NavLink{homeLink}
	switch user.Role {
	case session.RoleBuyer:
		links = append(links,
			NavLink{Label: "Buy", Path: "/buy"},
			NavLink{Label: "Rent", Path: "/rent"},
			NavLink{Label: "Liked", Path: "/liked"},
			NavLink{Label: "Ask AI", Path: "/ask-ai"},
		)
	case session.RoleSeller:
		links = append(links,
			NavLink{Label: "Sell", Path: "/sell"},
			NavLink{Label: "Ask AI", Path: "/ask-ai"},
		)
	case session.RoleAdmin:
		links = append(links,
			NavLink{Label: "Request", Path: "/request"},
			NavLink{Label: "Verified", Path: "/verified"},
		)
	}
	return append(links, NavLink{Label: "Profile", Path: "/profile"}, logoutLink)
}
