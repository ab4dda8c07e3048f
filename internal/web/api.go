package web

import (
	"net/http"
	"path"
	"strings"

	"estate/internal/guard"
	"estate/internal/session"

	"github.com/gin-gonic/gin"
)

// apiRoute gates one marketplace endpoint under /api. A Path ending in "/"
// matches everything below it and an empty Method matches any method.
type apiRoute struct {
	Method string
	Path   string
	// Roles is empty for endpoints anonymous visitors may call
	Roles []session.Role
	// Handle serves the endpoint locally; nil forwards it to the marketplace
	Handle gin.HandlerFunc
}

// apiRoutes lists the /api endpoints whose access differs from the default
// of any signed-in user. Account mutations are answered locally so they can
// only ever act on the session's own account.
func apiRoutes(h *Handler) []apiRoute {
	return []apiRoute{
		{Path: "/api/switch-role", Roles: buyerOrSeller, Handle: h.SwitchRole},
		{Path: "/api/update-profile", Roles: everyone, Handle: h.UpdateProfile},

		// Contact form, chatbot widget and the public property pages
		{Method: http.MethodPost, Path: "/api/enquiry"},
		{Method: http.MethodPost, Path: "/api/chatbot"},
		{Method: http.MethodGet, Path: "/api/buy-properties/"},
		{Method: http.MethodGet, Path: "/api/rent-properties/"},

		{Path: "/api/ask-question", Roles: buyerOrSeller},
		{Path: "/api/like-property", Roles: buyerOrSeller},
		{Path: "/api/liked-properties/", Roles: buyerOrSeller},
		{Path: "/api/remove-liked-property/", Roles: buyerOrSeller},
		{Path: "/api/contact-seller", Roles: buyerOnly},
		{Path: "/api/chats/buyer", Roles: buyerOnly},
		{Path: "/api/chats/seller", Roles: sellerOnly},
		{Path: "/api/my-properties", Roles: sellerOnly},
		{Path: "/api/my-properties/", Roles: sellerOnly},
	}
}

type compiledRoute struct {
	apiRoute
	public bool
	req    guard.Requirement
}

// apiDispatcher serves /api/*path. gin cannot register static routes next to
// a catch-all, so per-endpoint gating happens here.
type apiDispatcher struct {
	routes   []compiledRoute
	fallback guard.Requirement
	forward  gin.HandlerFunc
	opts     []guard.MiddlewareOption
}

func newAPIDispatcher(routes []apiRoute, forward gin.HandlerFunc, opts ...guard.MiddlewareOption) *apiDispatcher {
	d := &apiDispatcher{
		fallback: guard.Require(everyone...),
		forward:  forward,
		opts:     opts,
	}
	for _, r := range routes {
		cr := compiledRoute{apiRoute: r, public: len(r.Roles) == 0}
		if !cr.public {
			cr.req = guard.Require(r.Roles...)
		}
		d.routes = append(d.routes, cr)
	}
	return d
}

// match returns the first route for method and p, or nil
func (d *apiDispatcher) match(method, p string) *compiledRoute {
	for i := range d.routes {
		r := &d.routes[i]
		if r.Method != "" && r.Method != method {
			continue
		}
		if strings.HasSuffix(r.Path, "/") {
			if strings.HasPrefix(p, r.Path) && len(p) > len(r.Path) {
				return r
			}
			continue
		}
		if p == r.Path {
			return r
		}
	}
	return nil
}

// Serve gates and answers one /api request
func (d *apiDispatcher) Serve(c *gin.Context) {
	// Match on the cleaned path and forward that same path, so "//" or "."
	// segments cannot route around a rule.
	clean := path.Clean(c.Request.URL.Path)
	c.Request.URL.Path = clean
	c.Request.URL.RawPath = ""

	route := d.match(c.Request.Method, clean)
	if route == nil {
		if !guard.Enforce(c, CurrentUser, d.fallback, d.opts...) {
			return
		}
		d.forward(c)
		return
	}

	if !route.public && !guard.Enforce(c, CurrentUser, route.req, d.opts...) {
		return
	}
	if route.Handle != nil {
		route.Handle(c)
		return
	}
	d.forward(c)
}
