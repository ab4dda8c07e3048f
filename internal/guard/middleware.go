package guard

import (
	"log/slog"
	"net/http"

	"estate/internal/session"

	"github.com/gin-gonic/gin"
)

// Lookup returns the session of the request, or nil when anonymous.
type Lookup func(c *gin.Context) *session.User

// DecisionObserver is told about every decision the middleware makes.
type DecisionObserver func(req Requirement, d Decision)

type middlewareConfig struct {
	api      bool
	observer DecisionObserver
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// AsAPI answers denied requests with 401/403 JSON instead of a redirect.
// The body still names the redirect target.
func AsAPI() MiddlewareOption {
	return func(c *middlewareConfig) {
		c.api = true
	}
}

// WithObserver reports each decision to observer.
func WithObserver(observer DecisionObserver) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.observer = observer
	}
}

// Middleware gates the following handlers on req.
func Middleware(lookup Lookup, req Requirement, opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := newConfig(opts)

	return func(c *gin.Context) {
		if cfg.enforce(c, lookup, req) {
			c.Next()
		}
	}
}

// Enforce applies req to the current request from inside a handler. It
// reports whether the request may proceed; when it may not, the response has
// been written and the context aborted.
func Enforce(c *gin.Context, lookup Lookup, req Requirement, opts ...MiddlewareOption) bool {
	cfg := newConfig(opts)
	return cfg.enforce(c, lookup, req)
}

func newConfig(opts []MiddlewareOption) middlewareConfig {
	cfg := middlewareConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (cfg middlewareConfig) enforce(c *gin.Context, lookup Lookup, req Requirement) bool {
	decision := Authorize(lookup(c), req)

	if cfg.observer != nil {
		cfg.observer(req, decision)
	}

	if decision == Render {
		return true
	}

	slog.Debug("Route guard denied request",
		"path", c.Request.URL.Path,
		"required_roles", req.String(),
		"decision", decision.String(),
		"request_id", c.GetString("request_id"),
	)

	if cfg.api {
		status := http.StatusForbidden
		msg := "forbidden: role not allowed"
		if decision == RedirectToLogin {
			status = http.StatusUnauthorized
			msg = "unauthorized: login required"
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":    msg,
			"redirect": decision.Target(),
		})
		return false
	}

	c.Redirect(http.StatusFound, decision.Target())
	c.Abort()
	return false
}
